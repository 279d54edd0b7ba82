// Package mocks provides mock implementations of the core ports for testing.
//
// This package uses go.uber.org/mock (gomock) to generate type-safe mocks for the optional
// integrations of the conversion service (status cache, archive store, event publisher).
//
// To regenerate mocks after interface changes, run:
//
//	go generate ./internal/mocks
//
// Usage in tests:
//
//	ctrl := gomock.NewController(t)
//	cache := mocks.NewMockCacheRepository(ctrl)
//	cache.EXPECT().Set(gomock.Any(), core.JobCacheKey(id), gomock.Any(), gomock.Any()).Return(nil)
package mocks

// Generate mock for CacheRepository interface from internal/core package.
// This creates MockCacheRepository with methods for all CacheRepository interface methods:
// Set, Get, Delete, Health
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=cache_repository_mock.go github.com/converti/converti-api/internal/core CacheRepository

// Generate mock for ArchiveStore interface from internal/core package.
// This creates MockArchiveStore with methods for all ArchiveStore interface methods:
// PutArchive, DeleteArchive
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=archive_store_mock.go github.com/converti/converti-api/internal/core ArchiveStore

// Generate mock for EventPublisher interface from internal/core package.
// This creates MockEventPublisher with methods for all EventPublisher interface methods:
// Publish
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=event_publisher_mock.go github.com/converti/converti-api/internal/core EventPublisher
