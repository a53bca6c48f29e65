package mock

import (
	"context"

	"github.com/docdex/docdex"
)

var _ docdex.VectorStore = (*VectorStore)(nil)

// VectorStore is a mock implementation of docdex.VectorStore.
type VectorStore struct {
	UpsertManyFn        func(ctx context.Context, records []*docdex.EmbeddingRecord) error
	DeleteByVectorIDsFn func(ctx context.Context, vectorIDs []string) error
	DeleteWhereFn       func(ctx context.Context, filter *docdex.VectorFilter) error
	SearchFn            func(ctx context.Context, query []float32, k int, filter *docdex.VectorFilter) ([]docdex.VectorMatch, error)
	ListVectorIDsFn     func(ctx context.Context, filter *docdex.VectorFilter) ([]string, error)
	CountFn             func() int
	DimensionFn         func() int
	CreateIndexFn       func(ctx context.Context) error
	OptimizeFn          func(ctx context.Context) error
	HealthCheckFn       func(ctx context.Context) error
	CloseFn             func() error
}

func (s *VectorStore) UpsertMany(ctx context.Context, records []*docdex.EmbeddingRecord) error {
	return s.UpsertManyFn(ctx, records)
}

func (s *VectorStore) DeleteByVectorIDs(ctx context.Context, vectorIDs []string) error {
	return s.DeleteByVectorIDsFn(ctx, vectorIDs)
}

func (s *VectorStore) DeleteWhere(ctx context.Context, filter *docdex.VectorFilter) error {
	return s.DeleteWhereFn(ctx, filter)
}

func (s *VectorStore) Search(ctx context.Context, query []float32, k int, filter *docdex.VectorFilter) ([]docdex.VectorMatch, error) {
	return s.SearchFn(ctx, query, k, filter)
}

func (s *VectorStore) ListVectorIDs(ctx context.Context, filter *docdex.VectorFilter) ([]string, error) {
	return s.ListVectorIDsFn(ctx, filter)
}

func (s *VectorStore) Count() int {
	if s.CountFn == nil {
		return 0
	}
	return s.CountFn()
}

func (s *VectorStore) Dimension() int {
	if s.DimensionFn == nil {
		return 0
	}
	return s.DimensionFn()
}

func (s *VectorStore) CreateIndex(ctx context.Context) error {
	if s.CreateIndexFn == nil {
		return nil
	}
	return s.CreateIndexFn(ctx)
}

func (s *VectorStore) Optimize(ctx context.Context) error {
	if s.OptimizeFn == nil {
		return nil
	}
	return s.OptimizeFn(ctx)
}

func (s *VectorStore) HealthCheck(ctx context.Context) error {
	if s.HealthCheckFn == nil {
		return nil
	}
	return s.HealthCheckFn(ctx)
}

func (s *VectorStore) Close() error {
	if s.CloseFn == nil {
		return nil
	}
	return s.CloseFn()
}
