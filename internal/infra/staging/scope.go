package staging

import (
	"errors"
	"sync"
)

// Scope allocates artifacts on behalf of one request and releases all of
// them on Close. Callers defer Close right after creating the scope.
type Scope struct {
	store     *Store
	requestID string

	mu        sync.Mutex
	artifacts []*Artifact
	closed    bool
}

// Scope opens a request-scoped allocator.
func (s *Store) Scope(requestID string) *Scope {
	return &Scope{store: s, requestID: requestID}
}

// Acquire allocates a new artifact tied to the scope.
func (sc *Scope) Acquire(role Role) (*Artifact, error) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	if sc.closed {
		return nil, ErrScopeClosed
	}
	a, err := sc.store.Acquire(sc.requestID, role)
	if err != nil {
		return nil, err
	}
	sc.artifacts = append(sc.artifacts, a)
	return a, nil
}

// Len is the number of artifacts acquired through the scope.
func (sc *Scope) Len() int {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return len(sc.artifacts)
}

// Close releases every artifact. It is safe to call more than once.
func (sc *Scope) Close() error {
	sc.mu.Lock()
	if sc.closed {
		sc.mu.Unlock()
		return nil
	}
	sc.closed = true
	artifacts := sc.artifacts
	sc.artifacts = nil
	sc.mu.Unlock()

	var errs []error
	for _, a := range artifacts {
		if err := sc.store.Release(a); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
