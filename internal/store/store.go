// Package store persists completed run summaries to BoltDB for later
// retrieval. It never persists in-flight task state: the scheduler's
// Non-goals explicitly exclude crash recovery of a run in progress, so
// the only durable record is the final artron.Summary produced once
// Manager.Start returns.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.etcd.io/bbolt"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	noopmetric "go.opentelemetry.io/otel/metric/noop"

	artron "github.com/ahmet2mir/go-artron"
)

var bucketSummaries = []byte("summaries")

// SummaryStore is a BoltDB-backed archive of completed run summaries,
// keyed by a caller-supplied run id.
type SummaryStore struct {
	db *bbolt.DB

	mu    sync.RWMutex
	cache map[string]artron.Summary

	writeLatency metric.Float64Histogram
	readLatency  metric.Float64Histogram
}

// Open opens (creating if necessary) a BoltDB file at path and ensures
// the summaries bucket exists.
func Open(path string, meter metric.Meter) (*SummaryStore, error) {
	if meter == nil {
		meter = noopmetric.MeterProvider{}.Meter("artron-store")
	}

	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open boltdb: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketSummaries)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create summaries bucket: %w", err)
	}

	writeLatency, _ := meter.Float64Histogram("artron_store_write_ms")
	readLatency, _ := meter.Float64Histogram("artron_store_read_ms")

	return &SummaryStore{
		db:           db,
		cache:        make(map[string]artron.Summary),
		writeLatency: writeLatency,
		readLatency:  readLatency,
	}, nil
}

// Close closes the underlying database.
func (s *SummaryStore) Close() error {
	return s.db.Close()
}

// Put records summary under runID, overwriting any prior record.
func (s *SummaryStore) Put(ctx context.Context, runID string, summary artron.Summary) error {
	start := time.Now()
	defer func() {
		s.writeLatency.Record(ctx, float64(time.Since(start).Milliseconds()),
			metric.WithAttributes(attribute.String("op", "put")))
	}()

	data, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("marshal summary: %w", err)
	}

	err = s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketSummaries).Put([]byte(runID), data)
	})
	if err != nil {
		return fmt.Errorf("store summary %q: %w", runID, err)
	}

	s.mu.Lock()
	s.cache[runID] = summary
	s.mu.Unlock()
	return nil
}

// Get retrieves the summary stored under runID.
func (s *SummaryStore) Get(ctx context.Context, runID string) (artron.Summary, bool, error) {
	start := time.Now()
	defer func() {
		s.readLatency.Record(ctx, float64(time.Since(start).Milliseconds()),
			metric.WithAttributes(attribute.String("op", "get")))
	}()

	s.mu.RLock()
	if cached, ok := s.cache[runID]; ok {
		s.mu.RUnlock()
		return cached, true, nil
	}
	s.mu.RUnlock()

	var summary artron.Summary
	found := false
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketSummaries).Get([]byte(runID))
		if data == nil {
			return nil
		}
		found = true
		return json.Unmarshal(data, &summary)
	})
	if err != nil {
		return artron.Summary{}, false, fmt.Errorf("load summary %q: %w", runID, err)
	}
	if !found {
		return artron.Summary{}, false, nil
	}

	s.mu.Lock()
	s.cache[runID] = summary
	s.mu.Unlock()
	return summary, true, nil
}

// List returns every stored run id, sorted.
func (s *SummaryStore) List() ([]string, error) {
	var ids []string
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketSummaries).ForEach(func(k, _ []byte) error {
			ids = append(ids, string(k))
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("list summaries: %w", err)
	}
	sort.Strings(ids)
	return ids, nil
}
