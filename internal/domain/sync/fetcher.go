package sync

import (
	"context"
	"encoding/json"
)

// PageRequest asks the upstream provider for one page of sales. Only Offset
// varies between consecutive requests of a run.
type PageRequest struct {
	// Token is the normalized bearer token (no "Bearer " prefix)
	Token string
	// StoreID is the provider-side store to search
	StoreID string
	// Window bounds the upstream date filter
	Window Window
	// Limit is the fixed page size
	Limit int
	// Offset is the cursor, strictly increasing across a run
	Offset int
}

// Page is one fetched page. RawBody is kept verbatim for the raw-page
// archive; Items is the decoded record list (possibly empty).
type Page struct {
	// Items are the individual sale records of the page
	Items []json.RawMessage
	// RawBody is the exact response body as returned upstream
	RawBody []byte
	// URL is the request URL that produced this page
	URL string
}

// IsEmpty reports whether the page carried no records.
func (p *Page) IsEmpty() bool {
	return p == nil || len(p.Items) == 0
}

// PageFetcher is the port to the upstream provider's paginated search
// endpoint. Implementations own per-request retry and backoff; the errors
// they return are classified with the sync sentinel errors:
//
//   - ErrUpstreamDown wraps repeated 5xx and exhausted network failures and
//     aborts the whole run,
//   - ErrMalformedResponse wraps non-JSON bodies and aborts the run,
//   - ErrPageFailed wraps exhausted 4xx/429 retries and skips only the page.
//
// A non-nil Page may accompany an error when a body was read, so callers can
// still archive it.
type PageFetcher interface {
	FetchPage(ctx context.Context, req PageRequest) (*Page, error)
}
