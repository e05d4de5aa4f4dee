// Package registry tracks the documents rendered during the lifetime of the
// process. Records are held in memory only: a restart forgets them, the
// files stay on disk.
package registry

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/hazyhaar/docmcp/idgen"
)

// ErrNotFound is returned for an id with no record.
var ErrNotFound = errors.New("registry: document not found")

// Record describes one rendered document. Path is never reassigned.
type Record struct {
	ID       string    `json:"id"`
	Filename string    `json:"filename"`
	Path     string    `json:"path"`
	Template string    `json:"template"`
	Created  time.Time `json:"created"`
	Size     int64     `json:"size"`
}

// Option configures a Registry.
type Option func(*Registry)

// WithIDGenerator replaces the default 8-character hex generator.
func WithIDGenerator(gen idgen.Generator) Option {
	return func(r *Registry) { r.newID = gen }
}

// WithClock overrides time.Now for record creation.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

// Registry maps short ids to records, in insertion order.
type Registry struct {
	mu      sync.RWMutex
	records map[string]*Record
	issued  map[string]struct{} // every id ever minted, deleted ones included
	order   []string
	newID   idgen.Generator
	now     func() time.Time
}

// New returns an empty registry.
func New(opts ...Option) *Registry {
	r := &Registry{
		records: make(map[string]*Record),
		issued:  make(map[string]struct{}),
		newID:   idgen.ShortHex(8),
		now:     time.Now,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// maxIDAttempts bounds regeneration on collision.
const maxIDAttempts = 16

// Add mints an id never issued before by this registry, stamps the creation time
// and stores rec. ID and Created on the argument are ignored.
func (r *Registry) Add(rec Record) (Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := 0; i < maxIDAttempts; i++ {
		id := r.newID()
		if _, taken := r.issued[id]; taken {
			continue
		}
		r.issued[id] = struct{}{}
		rec.ID = id
		rec.Created = r.now()
		stored := rec
		r.records[id] = &stored
		r.order = append(r.order, id)
		return rec, nil
	}
	return Record{}, fmt.Errorf("registry: no free id after %d attempts", maxIDAttempts)
}

// Get returns the record for id.
func (r *Registry) Get(id string) (Record, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[id]
	if !ok {
		return Record{}, false
	}
	return *rec, true
}

// Len counts every record, including those whose file has gone.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.records)
}

// All returns every record in insertion order.
func (r *Registry) All() []Record {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Record, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, *r.records[id])
	}
	return out
}

// List returns the records whose backing file still exists. Stale records
// are skipped, not purged.
func (r *Registry) List() []Record {
	all := r.All()
	out := all[:0]
	for _, rec := range all {
		if _, err := os.Stat(rec.Path); err == nil {
			out = append(out, rec)
		}
	}
	return out
}

// Delete removes the backing file (absent is fine) and the record. The
// record is dropped even when removing the file fails; that error is
// returned alongside it.
func (r *Registry) Delete(id string) (Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[id]
	if !ok {
		return Record{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	delete(r.records, id)
	for i, v := range r.order {
		if v == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	if err := os.Remove(rec.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return *rec, fmt.Errorf("registry: remove %s: %w", rec.Path, err)
	}
	return *rec, nil
}
