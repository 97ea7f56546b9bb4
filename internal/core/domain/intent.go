package domain

type Direction string

const (
	DirectionConsume Direction = "consume"
	DirectionAdd     Direction = "add"
)

// Intent is the structured form of one spoken command. It is ephemeral and
// never persisted.
type Intent struct {
	Delta     int    // positive magnitude
	Fragment  string // lowercased, trimmed item-name fragment
	Direction Direction
}
