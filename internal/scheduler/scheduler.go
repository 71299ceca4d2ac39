// Package scheduler owns the process-lifetime registry of named sync
// triggers. No ambient state: whoever composes a trigger with the sync
// entry point holds the registry.
package scheduler

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

type Status struct {
	Name    string    `json:"name"`
	Spec    string    `json:"spec"`
	NextRun time.Time `json:"nextRun"`
	PrevRun time.Time `json:"prevRun,omitempty"`
}

type entry struct {
	id   cron.EntryID
	spec string
}

// Registry maps trigger names to cron entries. Registering an existing name
// replaces its schedule; stopping a name unregisters it without touching a
// run already in flight.
type Registry struct {
	mu      sync.Mutex
	cron    *cron.Cron
	entries map[string]entry
}

func NewRegistry() *Registry {
	r := &Registry{
		cron:    cron.New(),
		entries: map[string]entry{},
	}
	r.cron.Start()
	return r
}

func (r *Registry) Register(name, spec string, task func()) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if old, ok := r.entries[name]; ok {
		r.cron.Remove(old.id)
	}
	id, err := r.cron.AddFunc(spec, task)
	if err != nil {
		return fmt.Errorf("register trigger %q: %w", name, err)
	}
	r.entries[name] = entry{id: id, spec: spec}
	log.Info().Str("trigger", name).Str("spec", spec).Msg("trigger registered")
	return nil
}

// Stop unregisters one trigger. Reports whether it existed.
func (r *Registry) Stop(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[name]
	if !ok {
		return false
	}
	r.cron.Remove(e.id)
	delete(r.entries, name)
	log.Info().Str("trigger", name).Msg("trigger stopped")
	return true
}

// StopAll unregisters every trigger and halts the underlying cron. Jobs in
// flight finish; nothing further is scheduled.
func (r *Registry) StopAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for name, e := range r.entries {
		r.cron.Remove(e.id)
		delete(r.entries, name)
	}
	<-r.cron.Stop().Done()
	log.Info().Msg("all triggers stopped")
}

func (r *Registry) Statuses() []Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Status, 0, len(r.entries))
	for name, e := range r.entries {
		ce := r.cron.Entry(e.id)
		out = append(out, Status{Name: name, Spec: e.spec, NextRun: ce.Next, PrevRun: ce.Prev})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
