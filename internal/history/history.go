// Package history keeps the bounded, newest-first log of past draws for one
// tenant and persists it to the tenant's storage slot.
package history

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/google/logger"

	"luckydraw/internal/models"
	"luckydraw/internal/storage"
)

const (
	// MaxRecords is the number of draws kept; older ones are evicted.
	MaxRecords = 10
	// PageSize is the number of records per history page.
	PageSize = 5
	// FilterAll selects every record regardless of prize.
	FilterAll = "全部"
)

// envelopeVersion is the only versioned layout understood on read.
const envelopeVersion = 1

type envelope struct {
	Version int                 `json:"version"`
	Records []models.DrawRecord `json:"records"`
}

// Store is the history log of a single tenant.
type Store struct {
	mu      sync.RWMutex
	slot    storage.Store
	records []models.DrawRecord
}

// New returns an empty Store bound to slot. Call Load to read persisted data.
func New(slot storage.Store) *Store {
	return &Store{slot: slot}
}

// Load replaces the in-memory log with the persisted one. Data that cannot be
// decoded resets the log to empty without an error; only a failing storage
// read is returned.
func (s *Store) Load(ctx context.Context) error {
	raw, ok, err := s.slot.Get(ctx, storage.KeyHistory)
	if err != nil {
		return fmt.Errorf("load history: %w", err)
	}

	var records []models.DrawRecord
	if ok {
		records, err = decode(raw)
		if err != nil {
			logger.Warningf("Discarding unreadable draw history: %v", err)
			records = nil
		}
	}

	s.mu.Lock()
	s.records = records
	s.mu.Unlock()
	return nil
}

// Append puts rec at the front of the log, evicts anything beyond
// MaxRecords and persists. If persisting fails the log is left unchanged.
func (s *Store) Append(ctx context.Context, rec models.DrawRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := make([]models.DrawRecord, 0, len(s.records)+1)
	next = append(next, rec)
	next = append(next, s.records...)
	if len(next) > MaxRecords {
		next = next[:MaxRecords]
	}

	if err := s.persist(ctx, next); err != nil {
		return err
	}
	s.records = next
	return nil
}

// Clear empties the log and persists. Asking the user first is the caller's job.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.persist(ctx, []models.DrawRecord{}); err != nil {
		return err
	}
	s.records = nil
	return nil
}

// Records returns a copy of the log, newest first.
func (s *Store) Records() []models.DrawRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.DrawRecord(nil), s.records...)
}

// Len returns the number of records held.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Filter returns the records whose prize equals label, or all records when
// label is FilterAll.
func (s *Store) Filter(label string) []models.DrawRecord {
	return Filter(s.Records(), label)
}

// Prizes returns the distinct prize labels in log order.
func (s *Store) Prizes() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]struct{}, len(s.records))
	prizes := make([]string, 0, len(s.records))
	for _, r := range s.records {
		if _, ok := seen[r.Prize]; ok {
			continue
		}
		seen[r.Prize] = struct{}{}
		prizes = append(prizes, r.Prize)
	}
	return prizes
}

// Page is one page of a filtered history view.
type Page struct {
	Records    []models.DrawRecord `json:"records"`
	Page       int                 `json:"page"`
	TotalPages int                 `json:"totalPages"`
	Total      int                 `json:"total"`
}

// SelectPage filters by label and returns the requested 1-based page.
// Pages below 1 are read as 1.
func (s *Store) SelectPage(label string, page int) Page {
	if page < 1 {
		page = 1
	}
	list := s.Filter(label)
	return Page{
		Records:    Paginate(list, page, PageSize),
		Page:       page,
		TotalPages: PageCount(len(list), PageSize),
		Total:      len(list),
	}
}

func (s *Store) persist(ctx context.Context, records []models.DrawRecord) error {
	raw, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("encode history: %w", err)
	}
	if err := s.slot.Set(ctx, storage.KeyHistory, string(raw)); err != nil {
		return fmt.Errorf("save history: %w", err)
	}
	return nil
}

// Filter is the non-mutating prize filter used by Store.Filter.
func Filter(list []models.DrawRecord, label string) []models.DrawRecord {
	if label == FilterAll {
		return list
	}
	filtered := make([]models.DrawRecord, 0, len(list))
	for _, r := range list {
		if r.Prize == label {
			filtered = append(filtered, r)
		}
	}
	return filtered
}

// Paginate returns list[(page-1)*size : page*size], clipped to the list.
// Out-of-range pages yield an empty slice.
func Paginate[T any](list []T, page, size int) []T {
	if page < 1 || size < 1 {
		return []T{}
	}
	start := (page - 1) * size
	if start >= len(list) {
		return []T{}
	}
	end := start + size
	if end > len(list) {
		end = len(list)
	}
	return list[start:end]
}

// PageCount is ceil(n/size).
func PageCount(n, size int) int {
	if size < 1 || n <= 0 {
		return 0
	}
	return (n + size - 1) / size
}

var errUnknownVersion = errors.New("unknown history version")

// decode reads the plain JSON array written by every release, and also the
// versioned envelope.
func decode(raw string) ([]models.DrawRecord, error) {
	data := bytes.TrimSpace([]byte(raw))
	if len(data) > 0 && data[0] == '{' {
		var env envelope
		if err := json.Unmarshal(data, &env); err != nil {
			return nil, err
		}
		if env.Version != envelopeVersion {
			return nil, fmt.Errorf("%w: %d", errUnknownVersion, env.Version)
		}
		return capped(env.Records), nil
	}

	var records []models.DrawRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, err
	}
	return capped(records), nil
}

func capped(records []models.DrawRecord) []models.DrawRecord {
	if len(records) > MaxRecords {
		return records[:MaxRecords]
	}
	return records
}
