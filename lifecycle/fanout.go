package lifecycle

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// BatchResult pairs one request of ExecuteAll with its outcome.
type BatchResult struct {
	Result *Result
	Err    error
}

// ExecuteAll submits every request concurrently on a bounded pool, waits
// for all submissions to finish, then polls the admitted ones concurrently.
// Results are index-aligned with reqs. The returned error is set only when
// ctx ends before the batch completes.
func (c *Client) ExecuteAll(ctx context.Context, reqs []Request) ([]BatchResult, error) {
	out := make([]BatchResult, len(reqs))
	admitted := make([]*pending, len(reqs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.fanout)
	for i := range reqs {
		i := i
		g.Go(func() error {
			if c.limiter != nil {
				if err := c.limiter.Wait(gctx); err != nil {
					return err
				}
			}
			p, err := c.admit(gctx, reqs[i])
			if err != nil {
				out[i].Err = err
				return nil
			}
			admitted[i] = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return out, err
	}

	g, gctx = errgroup.WithContext(ctx)
	g.SetLimit(c.fanout)
	for i, p := range admitted {
		if p == nil {
			continue
		}
		i, p := i, p
		g.Go(func() error {
			res, err := c.confirm(gctx, p)
			out[i] = BatchResult{Result: res, Err: err}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return out, err
	}
	return out, ctx.Err()
}
