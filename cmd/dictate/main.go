package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/ptdat4/stocktalk/internal/core/service"
)

// dictate feeds typed transcripts to a running stocktalk server, one
// capture session per line, standing in for the browser's speech engine.

// lineRecognizer yields one line of input as a final transcript. A single
// reader goroutine owns the scanner for the recognizer's whole lifetime, so
// a cancelled Listen never leaves a stray Scan racing the next call; the
// line it was waiting on is delivered to the next Listen instead.
type lineRecognizer struct {
	lines chan scanResult
}

type scanResult struct {
	text string
	err  error
}

func newLineRecognizer(in io.Reader) *lineRecognizer {
	r := &lineRecognizer{lines: make(chan scanResult)}
	go func() {
		defer close(r.lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			r.lines <- scanResult{text: scanner.Text()}
		}
		if err := scanner.Err(); err != nil {
			r.lines <- scanResult{err: err}
		}
	}()
	return r
}

func (r *lineRecognizer) Listen(ctx context.Context) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res, ok := <-r.lines:
		if !ok {
			return "", io.EOF
		}
		return res.text, res.err
	}
}

func (r *lineRecognizer) Stop() {}

func main() {
	addr := flag.String("addr", "http://localhost:8080", "stocktalk server address")
	flag.Parse()

	capture := service.NewCapture(newLineRecognizer(os.Stdin))
	client := &http.Client{Timeout: 10 * time.Second}

	fmt.Println(`Speak commands like "I used 5 syringes" or "add 10 gloves to inventory". Ctrl-D to quit.`)

	for {
		fmt.Print("listening> ")

		transcript, err := capture.Listen(context.Background())
		if err != nil {
			if errors.Is(err, io.EOF) {
				fmt.Println()
				return
			}
			log.Fatalf("capture failed: %v", err)
		}
		if transcript == "" {
			continue
		}

		status, err := send(client, *addr, transcript)
		if err != nil {
			log.Printf("send command: %v", err)
			continue
		}
		fmt.Println(status)
	}
}

func send(client *http.Client, addr, transcript string) (string, error) {
	body, err := json.Marshal(map[string]string{"transcript": transcript})
	if err != nil {
		return "", err
	}

	resp, err := client.Post(addr+"/api/command", "application/json", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var decoded struct {
		Status   string `json:"status"`
		Outcome  string `json:"outcome"`
		LowStock bool   `json:"low_stock"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}

	status := decoded.Status
	if decoded.Outcome == "applied" && decoded.LowStock {
		status += " (low stock)"
	}
	return status, nil
}
