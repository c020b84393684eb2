// Package store provides the client-side fetch-and-cache layer. The generic
// Store holds an ordered collection plus an id lookup, tracks fetch state,
// re-fetches on authentication transitions, and funnels every mutation
// through the API followed by exactly one re-fetch for read-after-write
// consistency.
package store

import (
	"context"
	"sync"

	"github.com/insrapperswil/antimony/internal/api"
	"github.com/insrapperswil/antimony/internal/model"
)

// FetchState is the coarse state of the last fetch.
type FetchState int

const (
	// StatusPending covers both "fetch in flight" and "waiting for login".
	StatusPending FetchState = iota
	StatusDone
	StatusError
)

// FetchStatus carries the fetch state plus the server-supplied error when
// State is StatusError.
type FetchStatus struct {
	State   FetchState
	Code    int
	Message string
}

// Transform converts the raw wire records of a fetch into the stored item
// type. Specializations use it to parse, filter and sort; identity stores
// use Identity.
type Transform[R, T any] func(ctx context.Context, raw []R) []T

// Identity returns a transform that stores the wire records unchanged.
func Identity[T any]() Transform[T, T] {
	return func(_ context.Context, raw []T) []T { return raw }
}

// Store is a generic fetch-and-cache resource store over one REST path.
// R is the wire record type, T the stored item type.
type Store[R, T any] struct {
	client    *api.Client
	path      string
	idOf      func(T) string
	transform Transform[R, T]

	mu     sync.RWMutex
	data   []T
	lookup map[string]T
	status FetchStatus
}

// New creates a store for the given resource path. idOf extracts the lookup
// key from a stored item.
func New[R, T any](client *api.Client, path string, idOf func(T) string, transform Transform[R, T]) *Store[R, T] {
	return &Store[R, T]{
		client:    client,
		path:      path,
		idOf:      idOf,
		transform: transform,
		lookup:    map[string]T{},
		status:    FetchStatus{State: StatusPending},
	}
}

// Data returns a snapshot of the ordered collection.
func (s *Store[R, T]) Data() []T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]T, len(s.data))
	copy(out, s.data)
	return out
}

// Lookup returns the item with the given id.
func (s *Store[R, T]) Lookup(id string) (T, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	item, ok := s.lookup[id]
	return item, ok
}

// Status returns the current fetch status.
func (s *Store[R, T]) Status() FetchStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// Fetch refreshes the collection from the API. When not authenticated it
// sets the status to Pending and returns without a network call: this is
// "waiting for login", not an error. A failed fetch leaves the last known
// good data in place; a successful fetch replaces data and lookup
// atomically.
func (s *Store[R, T]) Fetch(ctx context.Context) *model.ErrorResponse {
	if !s.client.Authenticated() {
		s.setStatus(FetchStatus{State: StatusPending})
		return nil
	}

	var raw []R
	if errRes := s.client.Get(ctx, s.path, &raw); errRes != nil {
		if errRes.Code == model.CodeUnauthorized {
			// An expired or revoked token is not a fetch failure: the store
			// goes back to waiting for login.
			s.setStatus(FetchStatus{State: StatusPending})
			return errRes
		}
		s.setStatus(FetchStatus{State: StatusError, Code: errRes.Code, Message: errRes.Message})
		return errRes
	}

	items := s.transform(ctx, raw)
	lookup := make(map[string]T, len(items))
	for _, item := range items {
		lookup[s.idOf(item)] = item
	}

	s.mu.Lock()
	s.data = items
	s.lookup = lookup
	s.status = FetchStatus{State: StatusDone}
	s.mu.Unlock()
	return nil
}

// Add POSTs a new record and, on success, re-fetches before returning the
// created id so the caller observes its own write.
func (s *Store[R, T]) Add(ctx context.Context, in any) (string, *model.ErrorResponse) {
	var created model.CreatedResponse
	if errRes := s.client.Post(ctx, s.path, in, &created); errRes != nil {
		return "", errRes
	}
	if errRes := s.Fetch(ctx); errRes != nil {
		return created.ID, errRes
	}
	return created.ID, nil
}

// Update PATCHes a record by id and re-fetches on success.
func (s *Store[R, T]) Update(ctx context.Context, id string, in any) *model.ErrorResponse {
	if errRes := s.client.Patch(ctx, s.path+"/"+id, in); errRes != nil {
		return errRes
	}
	return s.Fetch(ctx)
}

// Delete removes a record by id and re-fetches on success.
func (s *Store[R, T]) Delete(ctx context.Context, id string) *model.ErrorResponse {
	if errRes := s.client.Delete(ctx, s.path+"/"+id); errRes != nil {
		return errRes
	}
	return s.Fetch(ctx)
}

// OnAuthChange reacts to an authentication-state transition: login triggers
// a fetch, logout resets the status to Pending while keeping stale data
// visible (stale-but-present beats empty).
func (s *Store[R, T]) OnAuthChange(ctx context.Context, loggedIn bool) {
	if loggedIn {
		s.Fetch(ctx)
		return
	}
	s.setStatus(FetchStatus{State: StatusPending})
}

func (s *Store[R, T]) setStatus(status FetchStatus) {
	s.mu.Lock()
	s.status = status
	s.mu.Unlock()
}
