package service

import (
	"context"

	apperrors "assistant-workers/internal/common/errors"

	"golang.org/x/sync/errgroup"
)

// AnnotateBatch annotates reqs concurrently and returns responses in input
// order. The first failure cancels the remaining requests.
func (s *Service) AnnotateBatch(ctx context.Context, reqs []Request) ([]*Response, error) {
	if len(reqs) > s.cfg.MaxBatchSize {
		return nil, apperrors.NewBatchTooLargeError(len(reqs), s.cfg.MaxBatchSize)
	}

	out := make([]*Response, len(reqs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.BatchConcurrency)

	for i := range reqs {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			resp, err := s.Annotate(gctx, reqs[i])
			if err != nil {
				return err
			}
			out[i] = resp
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// MaxBatchSize is the largest batch AnnotateBatch accepts.
func (s *Service) MaxBatchSize() int { return s.cfg.MaxBatchSize }
