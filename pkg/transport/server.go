package transport

import "context"

// Server is a running transport (stdio or HTTP). Serve blocks until ctx is
// canceled or the transport fails on its own; Shutdown requests an orderly
// stop.
type Server interface {
	Serve(ctx context.Context) error
	Shutdown(ctx context.Context) error
}
