package client

import (
	"context"
	"errors"
	"sync"

	"github.com/fdg312/menu-batches/internal/batches"
)

// ErrSuperseded is returned to a caller whose request was replaced by a newer one.
var ErrSuperseded = errors.New("request superseded")

// IsSuperseded reports whether err should be dropped silently.
func IsSuperseded(err error) bool {
	return errors.Is(err, ErrSuperseded)
}

// Latest keeps at most one request in flight: starting a new one cancels the
// previous, and the previous caller gets ErrSuperseded whatever its outcome.
type Latest struct {
	mu     sync.Mutex
	seq    uint64
	cancel context.CancelFunc
}

func (l *Latest) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	l.mu.Lock()
	if l.cancel != nil {
		l.cancel()
	}
	l.seq++
	mine := l.seq
	l.cancel = cancel
	l.mu.Unlock()

	err := fn(ctx)

	l.mu.Lock()
	superseded := mine != l.seq
	if !superseded {
		l.cancel = nil
	}
	l.mu.Unlock()

	if superseded {
		return ErrSuperseded
	}
	return err
}

// ListLatest is ListBatches under Latest semantics.
func (c *Client) ListLatest(ctx context.Context, l *Latest, p ListParams) (*batches.ListBatchesResponse, error) {
	var resp *batches.ListBatchesResponse
	err := l.Do(ctx, func(ctx context.Context) error {
		var err error
		resp, err = c.ListBatches(ctx, p)
		return err
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}
