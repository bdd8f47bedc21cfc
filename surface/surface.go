package surface

import (
	"context"

	"github.com/ysmood/gson"
)

// Surface is the rendered listing page the pipeline reads. The
// rod-backed Session is the production implementation; the extraction
// and pagination tests substitute scripted fakes.
//
// Every method takes a context because each one crosses the CDP wire.
type Surface interface {
	// Navigate loads the given URL and waits for the DOM to settle.
	// It does not wait for the listing itself; readiness polling is the
	// caller's job.
	Navigate(ctx context.Context, url string) error

	// Location returns the page's current URL, which may differ from
	// the navigated one after client-side redirects.
	Location(ctx context.Context) (string, error)

	// Eval runs a JS function in the page and returns its JSON value.
	Eval(ctx context.Context, js string, args ...any) (gson.JSON, error)

	// Content returns the current rendered HTML.
	Content(ctx context.Context) (string, error)

	// Click dispatches a real mouse click on the first element
	// matching the selector.
	Click(ctx context.Context, selector string) error

	// Screenshot captures the current viewport as PNG.
	Screenshot(ctx context.Context) ([]byte, error)
}
