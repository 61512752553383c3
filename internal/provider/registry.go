package provider

import (
	"fmt"
	"sort"
	"sync"
)

// Registry holds the configured source adapters keyed by name. It is filled
// during startup and only read afterwards.
type Registry struct {
	mu         sync.RWMutex
	exact      map[SourceName]ExactSource
	candidates map[SourceName]CandidateSource
}

// NewRegistry creates an empty source registry.
func NewRegistry() *Registry {
	return &Registry{
		exact:      make(map[SourceName]ExactSource),
		candidates: make(map[SourceName]CandidateSource),
	}
}

// RegisterExact adds an exact-match source.
func (r *Registry) RegisterExact(s ExactSource) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.exact[s.Name()] = s
}

// RegisterCandidate adds a candidate source.
func (r *Registry) RegisterCandidate(s CandidateSource) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.candidates[s.Name()] = s
}

// Exact returns the exact source registered under name.
func (r *Registry) Exact(name SourceName) (ExactSource, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.exact[name]
	if !ok {
		return nil, fmt.Errorf("exact source %q not registered", name)
	}
	return s, nil
}

// Candidate returns the candidate source registered under name.
func (r *Registry) Candidate(name SourceName) (CandidateSource, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.candidates[name]
	if !ok {
		return nil, fmt.Errorf("candidate source %q not registered", name)
	}
	return s, nil
}

// PlaylistWriter returns the candidate source under name if it can also
// write playlists.
func (r *Registry) PlaylistWriter(name SourceName) (PlaylistWriter, error) {
	s, err := r.Candidate(name)
	if err != nil {
		return nil, err
	}
	w, ok := s.(PlaylistWriter)
	if !ok {
		return nil, fmt.Errorf("source %q cannot write playlists", name)
	}
	return w, nil
}

// Names returns all registered source names, sorted.
func (r *Registry) Names() []SourceName {
	r.mu.RLock()
	defer r.mu.RUnlock()
	seen := make(map[SourceName]bool)
	for n := range r.exact {
		seen[n] = true
	}
	for n := range r.candidates {
		seen[n] = true
	}
	names := make([]SourceName, 0, len(seen))
	for n := range seen {
		names = append(names, n)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names
}
