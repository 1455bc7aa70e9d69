package resource

import (
	"context"
	"io"
)

// RateLimitedWriter charges every Write against the controller's IO budget
// before passing it through.
type RateLimitedWriter struct {
	ctx context.Context
	dst io.Writer
	rc  *Controller
}

// NewRateLimitedWriter wraps w so its throughput stays inside rc's IO limit.
func NewRateLimitedWriter(ctx context.Context, w io.Writer, rc *Controller) *RateLimitedWriter {
	return &RateLimitedWriter{ctx: ctx, dst: w, rc: rc}
}

func (w *RateLimitedWriter) Write(p []byte) (int, error) {
	if err := w.rc.AcquireIO(w.ctx, len(p)); err != nil {
		return 0, err
	}
	return w.dst.Write(p)
}

// RateLimitedReader charges every Read against the controller's IO budget
// before passing it through.
type RateLimitedReader struct {
	ctx context.Context
	src io.Reader
	rc  *Controller
}

// NewRateLimitedReader wraps r so its throughput stays inside rc's IO limit.
func NewRateLimitedReader(ctx context.Context, r io.Reader, rc *Controller) *RateLimitedReader {
	return &RateLimitedReader{ctx: ctx, src: r, rc: rc}
}

func (r *RateLimitedReader) Read(p []byte) (int, error) {
	// Charges len(p) up front, which over-reserves on short reads but keeps
	// the limiter conservative.
	if err := r.rc.AcquireIO(r.ctx, len(p)); err != nil {
		return 0, err
	}
	return r.src.Read(p)
}
