// Package history keeps reports of finished runs in a bbolt database.
// Reports describe how each task went; generated content is not stored.
package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/cgast/gigsmith/pkg/orchestrator"
)

// DefaultMaxEntries bounds the number of stored reports.
const DefaultMaxEntries = 1000

var bucketRuns = []byte("runs")

var ErrNotFound = errors.New("run not found")

// TaskReport describes how one task of a run ended.
type TaskReport struct {
	ID              string        `json:"id"`
	Repaired        bool          `json:"repaired"`
	Normalized      bool          `json:"normalized"`
	Attempts        int           `json:"attempts"`
	Violations      []string      `json:"violations,omitempty"`
	GenerationError string        `json:"generation_error,omitempty"`
	Duration        time.Duration `json:"duration"`
}

// Report summarizes one run.
type Report struct {
	RunID    string         `json:"run_id"`
	Request  map[string]any `json:"request,omitempty"`
	Started  time.Time      `json:"started"`
	Finished time.Time      `json:"finished"`
	Repaired []string       `json:"repaired,omitempty"`
	Tasks    []TaskReport   `json:"tasks"`
}

// FromResult builds the report of a run. Tasks are listed in completion
// order.
func FromResult(res *orchestrator.Result) Report {
	r := Report{
		RunID:    res.RunID,
		Request:  res.Request,
		Started:  res.Started,
		Finished: res.Finished,
		Repaired: res.Repaired(),
		Tasks:    make([]TaskReport, 0, len(res.Order)),
	}
	for _, id := range res.Order {
		out := res.Outputs[id]
		tr := TaskReport{
			ID:              id,
			Repaired:        out.Repaired,
			Normalized:      out.Normalized,
			Attempts:        out.Attempts,
			GenerationError: out.GenerationError,
			Duration:        out.Duration,
		}
		for _, v := range out.Violations {
			tr.Violations = append(tr.Violations, v.Message)
		}
		r.Tasks = append(r.Tasks, tr)
	}
	return r
}

// Reader reads stored reports. *Store implements it.
type Reader interface {
	List(limit int) ([]Report, error)
	Get(runID string) (Report, error)
}

// Store is a bbolt-backed report store. Keys sort by start time, so the
// cursor walks runs oldest first.
type Store struct {
	db         *bolt.DB
	mu         sync.RWMutex
	maxEntries int
}

// Open opens or creates the store at path. maxEntries <= 0 selects
// DefaultMaxEntries.
func Open(path string, maxEntries int) (*Store, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketRuns); err != nil {
			return fmt.Errorf("create bucket %s: %w", bucketRuns, err)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init buckets: %w", err)
	}

	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	return &Store{db: db, maxEntries: maxEntries}, nil
}

func key(r Report) []byte {
	return []byte(r.Started.UTC().Format("20060102T150405.000000000Z") + "/" + r.RunID)
}

// Record stores the report of res and prunes the oldest reports beyond the
// configured maximum.
func (s *Store) Record(res *orchestrator.Result) error {
	return s.Put(FromResult(res))
}

// Put stores a report.
func (s *Store) Put(r Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketRuns)
		if err := b.Put(key(r), data); err != nil {
			return err
		}
		// Collect first: deleting while iterating skips keys.
		var keys [][]byte
		c := b.Cursor()
		for k, _ := c.First(); k != nil; k, _ = c.Next() {
			keys = append(keys, slices.Clone(k))
		}
		if len(keys) <= s.maxEntries {
			return nil
		}
		for _, k := range keys[:len(keys)-s.maxEntries] {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
}

// List returns up to limit reports, newest first. limit <= 0 returns all.
func (s *Store) List(limit int) ([]Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Report
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketRuns).Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			if limit > 0 && len(out) >= limit {
				break
			}
			var r Report
			if err := json.Unmarshal(v, &r); err != nil {
				return fmt.Errorf("unmarshal report %s: %w", string(k), err)
			}
			out = append(out, r)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Get returns the report of one run.
func (s *Store) Get(runID string) (Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		r     Report
		found bool
	)
	err := s.db.View(func(tx *bolt.Tx) error {
		suffix := "/" + runID
		return tx.Bucket(bucketRuns).ForEach(func(k, v []byte) error {
			if found || len(k) < len(suffix) || string(k[len(k)-len(suffix):]) != suffix {
				return nil
			}
			found = true
			return json.Unmarshal(v, &r)
		})
	})
	if err != nil {
		return Report{}, err
	}
	if !found {
		return Report{}, fmt.Errorf("%s: %w", runID, ErrNotFound)
	}
	return r, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}
