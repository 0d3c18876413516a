package dataset

import (
	"sync/atomic"

	"github.com/rs/zerolog"
)

// Store holds the current dataset snapshot. Publish swaps the snapshot
// atomically; readers that already hold the old snapshot keep using it, and
// their results are later discarded by the request sequencer as stale.
type Store struct {
	current atomic.Pointer[Dataset]
	logger  zerolog.Logger
}

// NewStore creates an empty store.
func NewStore(logger zerolog.Logger) *Store {
	return &Store{
		logger: logger.With().Str("component", "dataset-store").Logger(),
	}
}

// Publish installs a new snapshot as the current dataset.
func (s *Store) Publish(ds *Dataset) {
	old := s.current.Swap(ds)
	evt := s.logger.Info().
		Str("name", ds.Name()).
		Str("version", ds.Version()).
		Int("rows", ds.Rows()).
		Int("columns", len(ds.Columns()))
	if old != nil {
		evt = evt.Str("replaced_version", old.Version())
	}
	evt.Msg("Dataset published")
}

// Current returns the current snapshot, or false when no data is loaded.
func (s *Store) Current() (*Dataset, bool) {
	ds := s.current.Load()
	return ds, ds != nil
}

// Clear removes the current snapshot.
func (s *Store) Clear() {
	if old := s.current.Swap(nil); old != nil {
		s.logger.Info().Str("version", old.Version()).Msg("Dataset cleared")
	}
}
