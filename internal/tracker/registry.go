package tracker

import (
	"context"
	"log"
	"sort"
	"sync"

	"github.com/hpungsan/revise/internal/db"
	"github.com/hpungsan/revise/internal/events"
)

// Registry owns the live trackers of a server and their checkpoint loops.
type Registry struct {
	store   db.Backend
	events  events.Publisher
	logger  *log.Logger
	verbose bool

	mu       sync.Mutex
	trackers map[string]*entry
	wg       sync.WaitGroup
}

type entry struct {
	tracker *Tracker
	cancel  context.CancelFunc
}

// NewRegistry creates an empty registry. Trackers it starts publish to pub.
func NewRegistry(store db.Backend, pub events.Publisher, logger *log.Logger, verbose bool) *Registry {
	if logger == nil {
		logger = log.Default()
	}
	return &Registry{
		store:    store,
		events:   pub,
		logger:   logger,
		verbose:  verbose,
		trackers: make(map[string]*entry),
	}
}

// Start creates a tracker and runs its scheduled checkpoints until the
// tracker is removed.
func (r *Registry) Start(opts Options) (*Tracker, error) {
	if opts.Events == nil {
		opts.Events = r.events
	}
	if opts.Logger == nil {
		opts.Logger = r.logger
	}
	opts.Verbose = opts.Verbose || r.verbose

	t, err := New(r.store, opts)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	r.mu.Lock()
	r.trackers[t.ID()] = &entry{tracker: t, cancel: cancel}
	r.mu.Unlock()

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		if err := t.RunAutoCheckpoints(ctx); err != nil {
			r.logger.Printf("[tracker] %s checkpoint loop stopped: %v", t.ID(), err)
		}
	}()
	return t, nil
}

// Get returns the tracker with the given id.
func (r *Registry) Get(id string) (*Tracker, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.trackers[id]
	if !ok {
		return nil, false
	}
	return e.tracker, true
}

// List returns snapshots of every tracker ordered by id.
func (r *Registry) List() []State {
	r.mu.Lock()
	trackers := make([]*Tracker, 0, len(r.trackers))
	for _, e := range r.trackers {
		trackers = append(trackers, e.tracker)
	}
	r.mu.Unlock()

	out := make([]State, 0, len(trackers))
	for _, t := range trackers {
		out = append(out, t.State())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Remove stops and forgets a tracker. It reports whether the id existed.
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	e, ok := r.trackers[id]
	delete(r.trackers, id)
	r.mu.Unlock()
	if !ok {
		return false
	}
	e.cancel()
	e.tracker.Stop()
	return true
}

// Close stops every tracker and waits for their loops to exit.
func (r *Registry) Close() {
	r.mu.Lock()
	entries := r.trackers
	r.trackers = make(map[string]*entry)
	r.mu.Unlock()

	for _, e := range entries {
		e.cancel()
		e.tracker.Stop()
	}
	r.wg.Wait()
}
