package ports

import "net/http"

// HTTPClient is the part of *http.Client the acquirer clients depend on.
// Tests replace it with a stub returning canned provider responses.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}
