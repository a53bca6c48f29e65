// Package mock provides function-field mock implementations of docdex
// interfaces for tests.
package mock

import (
	"context"

	"github.com/docdex/docdex"
)

var _ docdex.SiteService = (*SiteService)(nil)

// SiteService is a mock implementation of docdex.SiteService.
type SiteService struct {
	CreateSiteFn          func(ctx context.Context, site *docdex.Site) error
	FindSiteByIDFn        func(ctx context.Context, id int64) (*docdex.Site, error)
	FindSiteByNameFn      func(ctx context.Context, name string) (*docdex.Site, error)
	FindSitesFn           func(ctx context.Context) ([]*docdex.Site, error)
	UpdateSiteFn          func(ctx context.Context, id int64, upd docdex.SiteUpdate) (*docdex.Site, error)
	UpdateSiteProgressFn  func(ctx context.Context, id int64, indexedPages, totalPages int) error
	TouchSiteHeartbeatFn  func(ctx context.Context, id int64) error
	DeleteSiteFn          func(ctx context.Context, id int64) error
}

func (s *SiteService) CreateSite(ctx context.Context, site *docdex.Site) error {
	return s.CreateSiteFn(ctx, site)
}

func (s *SiteService) FindSiteByID(ctx context.Context, id int64) (*docdex.Site, error) {
	return s.FindSiteByIDFn(ctx, id)
}

func (s *SiteService) FindSiteByName(ctx context.Context, name string) (*docdex.Site, error) {
	return s.FindSiteByNameFn(ctx, name)
}

func (s *SiteService) FindSites(ctx context.Context) ([]*docdex.Site, error) {
	return s.FindSitesFn(ctx)
}

func (s *SiteService) UpdateSite(ctx context.Context, id int64, upd docdex.SiteUpdate) (*docdex.Site, error) {
	return s.UpdateSiteFn(ctx, id, upd)
}

func (s *SiteService) UpdateSiteProgress(ctx context.Context, id int64, indexedPages, totalPages int) error {
	return s.UpdateSiteProgressFn(ctx, id, indexedPages, totalPages)
}

func (s *SiteService) TouchSiteHeartbeat(ctx context.Context, id int64) error {
	return s.TouchSiteHeartbeatFn(ctx, id)
}

func (s *SiteService) DeleteSite(ctx context.Context, id int64) error {
	return s.DeleteSiteFn(ctx, id)
}

var _ docdex.QueueService = (*QueueService)(nil)

// QueueService is a mock implementation of docdex.QueueService.
type QueueService struct {
	EnqueueFn             func(ctx context.Context, siteID int64, url string) (bool, error)
	ClaimNextPendingFn    func(ctx context.Context, siteID int64) (*docdex.QueueEntry, error)
	MarkQueueEntryFn      func(ctx context.Context, entryID int64, status docdex.QueueStatus, errorMessage string) error
	RequeueEntryFn        func(ctx context.Context, entryID int64, errorMessage string) error
	ResetProcessingFn     func(ctx context.Context, siteID int64) (int64, error)
	ResetEntriesForURLsFn func(ctx context.Context, siteID int64, urls []string) error
	DeleteQueueBySiteFn   func(ctx context.Context, siteID int64) error
	CountQueueFn          func(ctx context.Context, siteID int64) (docdex.QueueCounts, error)
}

func (s *QueueService) Enqueue(ctx context.Context, siteID int64, url string) (bool, error) {
	return s.EnqueueFn(ctx, siteID, url)
}

func (s *QueueService) ClaimNextPending(ctx context.Context, siteID int64) (*docdex.QueueEntry, error) {
	return s.ClaimNextPendingFn(ctx, siteID)
}

func (s *QueueService) MarkQueueEntry(ctx context.Context, entryID int64, status docdex.QueueStatus, errorMessage string) error {
	return s.MarkQueueEntryFn(ctx, entryID, status, errorMessage)
}

func (s *QueueService) RequeueEntry(ctx context.Context, entryID int64, errorMessage string) error {
	return s.RequeueEntryFn(ctx, entryID, errorMessage)
}

func (s *QueueService) ResetProcessing(ctx context.Context, siteID int64) (int64, error) {
	return s.ResetProcessingFn(ctx, siteID)
}

func (s *QueueService) ResetEntriesForURLs(ctx context.Context, siteID int64, urls []string) error {
	return s.ResetEntriesForURLsFn(ctx, siteID, urls)
}

func (s *QueueService) DeleteQueueBySite(ctx context.Context, siteID int64) error {
	if s.DeleteQueueBySiteFn == nil {
		return nil
	}
	return s.DeleteQueueBySiteFn(ctx, siteID)
}

func (s *QueueService) CountQueue(ctx context.Context, siteID int64) (docdex.QueueCounts, error) {
	return s.CountQueueFn(ctx, siteID)
}

var _ docdex.ChunkService = (*ChunkService)(nil)

// ChunkService is a mock implementation of docdex.ChunkService.
type ChunkService struct {
	InsertChunksFn            func(ctx context.Context, chunks []*docdex.Chunk) error
	FindChunksBySiteFn        func(ctx context.Context, siteID int64) ([]*docdex.Chunk, error)
	ListVectorIDsBySiteFn     func(ctx context.Context, siteID int64) ([]string, error)
	ListVectorIDsByURLFn      func(ctx context.Context, siteID int64, url string) ([]string, error)
	DeleteChunksByVectorIDsFn func(ctx context.Context, siteID int64, vectorIDs []string) error
	DeleteChunksBySiteFn      func(ctx context.Context, siteID int64) error
	FindURLsByVectorIDsFn     func(ctx context.Context, siteID int64, vectorIDs []string) ([]string, error)
}

func (s *ChunkService) InsertChunks(ctx context.Context, chunks []*docdex.Chunk) error {
	return s.InsertChunksFn(ctx, chunks)
}

func (s *ChunkService) FindChunksBySite(ctx context.Context, siteID int64) ([]*docdex.Chunk, error) {
	return s.FindChunksBySiteFn(ctx, siteID)
}

func (s *ChunkService) ListVectorIDsBySite(ctx context.Context, siteID int64) ([]string, error) {
	return s.ListVectorIDsBySiteFn(ctx, siteID)
}

func (s *ChunkService) ListVectorIDsByURL(ctx context.Context, siteID int64, url string) ([]string, error) {
	if s.ListVectorIDsByURLFn == nil {
		return nil, nil
	}
	return s.ListVectorIDsByURLFn(ctx, siteID, url)
}

func (s *ChunkService) DeleteChunksByVectorIDs(ctx context.Context, siteID int64, vectorIDs []string) error {
	return s.DeleteChunksByVectorIDsFn(ctx, siteID, vectorIDs)
}

func (s *ChunkService) DeleteChunksBySite(ctx context.Context, siteID int64) error {
	return s.DeleteChunksBySiteFn(ctx, siteID)
}

func (s *ChunkService) FindURLsByVectorIDs(ctx context.Context, siteID int64, vectorIDs []string) ([]string, error) {
	return s.FindURLsByVectorIDsFn(ctx, siteID, vectorIDs)
}

var _ docdex.HeartbeatService = (*HeartbeatService)(nil)

// HeartbeatService is a mock implementation of docdex.HeartbeatService.
type HeartbeatService struct {
	SetHeartbeatFn  func(ctx context.Context, status docdex.IndexerStatus) error
	ReadHeartbeatFn func(ctx context.Context) (*docdex.IndexerHeartbeat, error)
}

func (s *HeartbeatService) SetHeartbeat(ctx context.Context, status docdex.IndexerStatus) error {
	return s.SetHeartbeatFn(ctx, status)
}

func (s *HeartbeatService) ReadHeartbeat(ctx context.Context) (*docdex.IndexerHeartbeat, error) {
	return s.ReadHeartbeatFn(ctx)
}
