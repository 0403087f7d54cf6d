package db

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/noot/xmrbtc-swap/protocol/swap"
)

// ErrSwapNotFound is returned when a swap ID has no record, on disk or in
// memory.
var ErrSwapNotFound = errors.New("no swap with given id")

// Store tracks every swap a node has participated in, backed by a
// Database, mirroring a swap manager's ongoing/past split: ongoing swaps
// stay fully loaded in memory for the lifetime of the process, completed
// swaps are loaded back from disk lazily on first access.
type Store struct {
	db Database

	mu      sync.RWMutex
	ongoing map[swap.ID]*Record
	past    map[swap.ID]*Record
}

// NewStore opens a Store against db, loading every persisted ongoing swap
// into memory so it's visible to GetOngoingSwaps immediately: a resumed
// process must be able to find every swap it left mid-flight.
func NewStore(database Database) (*Store, error) {
	all, err := database.ListAll()
	if err != nil {
		return nil, fmt.Errorf("failed to load swap records: %w", err)
	}

	ongoing := make(map[swap.ID]*Record)
	for id, blob := range all {
		rec, err := UnmarshalRecord(blob)
		if err != nil {
			return nil, fmt.Errorf("failed to load swap %x: %w", id, err)
		}
		if rec.Info.Status.IsOngoing() {
			ongoing[id] = rec
		}
	}

	return &Store{
		db:      database,
		ongoing: ongoing,
		past:    make(map[swap.ID]*Record),
	}, nil
}

// Put persists rec and indexes it under the in-memory ongoing or past map
// matching its current status.
func (s *Store) Put(rec *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec.Info.Status.IsOngoing() {
		s.ongoing[rec.Info.SwapID] = rec
	} else {
		delete(s.ongoing, rec.Info.SwapID)
		s.past[rec.Info.SwapID] = rec
	}

	return s.writeToDB(rec)
}

func (s *Store) writeToDB(rec *Record) error {
	blob, err := rec.Marshal()
	if err != nil {
		return err
	}
	return s.db.Put(rec.Info.SwapID, blob)
}

// Complete marks an ongoing swap finished (its status must already be a
// terminal one), stamps its end time,
// moves it from the ongoing to the past index, and re-persists it.
func (s *Store) Complete(rec *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, has := s.ongoing[rec.Info.SwapID]; !has {
		// Put has already moved a record with a terminal status to past.
		if _, has := s.past[rec.Info.SwapID]; !has {
			return ErrSwapNotFound
		}
	}

	now := time.Now()
	rec.Info.EndTime = &now

	delete(s.ongoing, rec.Info.SwapID)
	s.past[rec.Info.SwapID] = rec

	return s.writeToDB(rec)
}

// GetOngoing returns the in-memory record for an ongoing swap.
func (s *Store) GetOngoing(id swap.ID) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, has := s.ongoing[id]
	if !has {
		return nil, ErrSwapNotFound
	}
	return rec, nil
}

// GetOngoingSwaps returns every swap still in flight, the set a node's
// resume-on-startup logic iterates over.
func (s *Store) GetOngoingSwaps() []*Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Record, 0, len(s.ongoing))
	for _, rec := range s.ongoing {
		out = append(out, rec)
	}
	return out
}

// HasOngoing reports whether id names a swap still in flight.
func (s *Store) HasOngoing(id swap.ID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, has := s.ongoing[id]
	return has
}

// GetPast returns a completed swap's record, consulting disk on a cache
// miss.
func (s *Store) GetPast(id swap.ID) (*Record, error) {
	s.mu.RLock()
	rec, has := s.past[id]
	s.mu.RUnlock()
	if has {
		return rec, nil
	}

	blob, err := s.db.Get(id)
	if err != nil {
		return nil, ErrSwapNotFound
	}

	rec, err = UnmarshalRecord(blob)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.past[id] = rec
	s.mu.Unlock()

	return rec, nil
}

// Close closes the underlying Database.
func (s *Store) Close() error {
	return s.db.Close()
}
