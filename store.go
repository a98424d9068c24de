package telemetry

import (
	"context"
	"fmt"
	"sync"

	"github.com/2saloni/agrolt-dashboard/model"
)

// VersionedStore enforces the one-current-record-per-topic-name
// invariant over TopicRecordRepository.
//
// Every commit is a demote-then-insert pair executed inside one
// repository transaction. The pair is additionally serialized per topic
// name with a keyed mutex: two concurrent commits for the same name
// cannot interleave their halves (which could otherwise yield two
// simultaneous current rows, or none), while commits for different
// names proceed in parallel. This is the single mandatory
// mutual-exclusion point in the pipeline.
//
// Thread safety: safe for concurrent use.
type VersionedStore struct {
	repo   TopicRecordRepository
	logger Logger

	mu    sync.Mutex
	locks map[string]*nameLock
}

// nameLock is a per-topic-name mutex with a reference count so idle
// entries can be evicted from the lock table.
type nameLock struct {
	sync.Mutex
	refs int
}

// StoreOption is a function that configures a VersionedStore.
type StoreOption func(*VersionedStore) error

// NewVersionedStore creates a new VersionedStore with the provided
// options.
//
// Required options:
//   - WithStoreRepository: topic record repository
//   - WithStoreLogger: logger instance
func NewVersionedStore(opts ...StoreOption) (*VersionedStore, error) {
	s := &VersionedStore{
		locks: make(map[string]*nameLock),
	}

	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, NewErrorWithCause(ErrCodeConfiguration, "failed to apply store option", err)
		}
	}

	// Validate required dependencies
	if s.repo == nil {
		return nil, NewError(ErrCodeConfiguration, "TopicRecordRepository is required (use WithStoreRepository)")
	}
	if s.logger == nil {
		return nil, NewError(ErrCodeConfiguration, "Logger is required (use WithStoreLogger)")
	}

	return s, nil
}

// WithStoreRepository sets the required topic record repository.
func WithStoreRepository(repo TopicRecordRepository) StoreOption {
	return func(s *VersionedStore) error {
		if repo == nil {
			return fmt.Errorf("repo cannot be nil")
		}
		s.repo = repo
		return nil
	}
}

// WithStoreLogger sets the logger instance.
func WithStoreLogger(logger Logger) StoreOption {
	return func(s *VersionedStore) error {
		if logger == nil {
			return fmt.Errorf("logger cannot be nil")
		}
		s.logger = logger
		return nil
	}
}

// Commit persists a new current record for the topic name.
//
// The previous current row for name (if any) is demoted and the new row
// inserted with the latest flag, atomically. A name never seen before
// simply inserts; the demotion half matches no row. On failure no
// partial state remains visible and the error carries the persistence
// code so the pipeline can skip fan-out for the message.
func (s *VersionedStore) Commit(
	ctx context.Context,
	name string,
	payload model.Payload,
	deviceID, zoneID int64,
) (model.TopicRecord, error) {
	if name == "" {
		return model.TopicRecord{}, NewError(ErrCodeValidation, "topic name is required")
	}

	lock := s.acquire(name)
	defer s.release(name, lock)

	rec, err := s.repo.Commit(ctx, model.NewTopicRecord(name, payload, deviceID, zoneID))
	if err != nil {
		return model.TopicRecord{}, NewErrorWithCause(
			ErrCodePersistence,
			fmt.Sprintf("failed to commit record for topic %s", name),
			err,
		)
	}

	s.logger.Debugf("Committed record id=%d topic=%s device=%d zone=%d", rec.ID, name, deviceID, zoneID)
	return rec, nil
}

// Latest returns the current record for a topic name.
// Returns ErrNoData when the name has never been committed.
func (s *VersionedStore) Latest(ctx context.Context, name string) (model.TopicRecord, error) {
	if name == "" {
		return model.TopicRecord{}, NewError(ErrCodeValidation, "topic name is required")
	}
	return s.repo.Latest(ctx, name)
}

// History returns up to limit historical records for a topic name,
// newest first. A non-positive limit falls back to 50.
func (s *VersionedStore) History(ctx context.Context, name string, limit int) ([]model.TopicRecord, error) {
	if name == "" {
		return nil, NewError(ErrCodeValidation, "topic name is required")
	}
	if limit <= 0 {
		limit = 50
	}
	return s.repo.History(ctx, name, limit)
}

// acquire locks the per-name mutex, creating the table entry on first
// use. The reference count keeps the entry alive while waiters exist.
func (s *VersionedStore) acquire(name string) *nameLock {
	s.mu.Lock()
	lock, ok := s.locks[name]
	if !ok {
		lock = &nameLock{}
		s.locks[name] = lock
	}
	lock.refs++
	s.mu.Unlock()

	lock.Lock()
	return lock
}

// release unlocks the per-name mutex and evicts the table entry once no
// commit holds or awaits it, keeping the lock table proportional to
// in-flight topic names rather than all names ever seen.
func (s *VersionedStore) release(name string, lock *nameLock) {
	lock.Unlock()

	s.mu.Lock()
	lock.refs--
	if lock.refs == 0 {
		delete(s.locks, name)
	}
	s.mu.Unlock()
}
