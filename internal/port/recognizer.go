package port

import "context"

// Recognizer is the speech collaborator. One Listen call yields exactly one
// final transcript or an error; interim results and confidence scores are
// not part of the contract.
type Recognizer interface {
	// Listen blocks until a final transcript, an error, or ctx cancellation.
	Listen(ctx context.Context) (string, error)

	// Stop releases any capture resources held by the current session. It
	// is called on every session exit path and must be safe to call when
	// nothing is listening.
	Stop()
}
