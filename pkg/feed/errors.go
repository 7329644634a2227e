package feed

import "fmt"

// ErrorKind classifies a fetch/parse failure so the coordinator can report
// per-feed failures without inspecting error strings.
type ErrorKind string

// fetch error kinds
const (
	KindTimeout   ErrorKind = "timeout"   // request deadline exceeded
	KindNetwork   ErrorKind = "network"   // transport-level failure
	KindHTTP      ErrorKind = "http"      // non-200 response
	KindMalformed ErrorKind = "malformed" // document is not a valid feed
)

// FetchError is a feed retrieval or parse failure tagged with its kind.
// Always per-feed fatal, never run-fatal.
type FetchError struct {
	Kind ErrorKind
	URL  string
	Err  error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("%s error fetching %s: %v", e.Kind, e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }
