package service

import (
	"errors"
	"regexp"
	"strconv"
	"strings"

	"github.com/ptdat4/stocktalk/internal/core/domain"
)

var ErrNoMatch = errors.New("no command pattern matched")

// Patterns are tried in order against the lowercased, trimmed transcript;
// the first hit wins and no cross-pattern scoring is attempted.
var commandPatterns = []struct {
	re          *regexp.Regexp
	direction   domain.Direction
	stripSuffix bool
}{
	{re: regexp.MustCompile(`^(?:i\s+)?used\s+(\d+)\s+(.+)$`), direction: domain.DirectionConsume},
	{re: regexp.MustCompile(`^remove\s+(\d+)\s+(.+)$`), direction: domain.DirectionConsume},
	{re: regexp.MustCompile(`^add\s+(\d+)\s+(.+)$`), direction: domain.DirectionAdd, stripSuffix: true},
	{re: regexp.MustCompile(`^(\d+)\s+(.+)\s+used$`), direction: domain.DirectionConsume},
}

var toInventorySuffix = regexp.MustCompile(`\s+to\s+inventory$`)

// Interpreter maps a free-form transcript to an Intent.
//
// Direction is decided by whether the literal substring "add" appears
// anywhere in the lowercased transcript, not by which pattern matched, so
// "used 3 adductor pads" parses as an add. This mirrors the behavior of the
// browser prototype this service replaced; set strictDirection to derive
// direction from the matched pattern instead.
type Interpreter struct {
	strictDirection bool
}

func NewInterpreter(strictDirection bool) *Interpreter {
	return &Interpreter{strictDirection: strictDirection}
}

// Parse returns ErrNoMatch when no pattern applies. It never panics on
// malformed input.
func (p *Interpreter) Parse(transcript string) (domain.Intent, error) {
	text := strings.TrimSpace(strings.ToLower(transcript))
	if text == "" {
		return domain.Intent{}, ErrNoMatch
	}

	for _, pat := range commandPatterns {
		m := pat.re.FindStringSubmatch(text)
		if m == nil {
			continue
		}

		delta, err := strconv.Atoi(m[1])
		if err != nil {
			// Numeral too large to represent; treat as unrecognized.
			return domain.Intent{}, ErrNoMatch
		}

		fragment := strings.TrimSpace(m[2])
		if pat.stripSuffix {
			fragment = strings.TrimSpace(toInventorySuffix.ReplaceAllString(fragment, ""))
		}

		direction := pat.direction
		if !p.strictDirection {
			direction = domain.DirectionConsume
			if strings.Contains(text, "add") {
				direction = domain.DirectionAdd
			}
		}

		return domain.Intent{Delta: delta, Fragment: fragment, Direction: direction}, nil
	}

	return domain.Intent{}, ErrNoMatch
}
