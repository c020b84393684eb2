package store

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/insrapperswil/antimony/internal/api"
	"github.com/insrapperswil/antimony/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type thing struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// scriptedBackend serves canned envelope responses and counts requests.
// GET requests answer with the list payload, everything else with the
// mutation payload.
type scriptedBackend struct {
	mu       sync.Mutex
	list     any
	mutation any
	failWith *model.ErrorResponse
	requests []string
}

func (b *scriptedBackend) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		b.requests = append(b.requests, r.Method+" "+r.URL.Path)
		payload, fail := b.mutation, b.failWith
		if r.Method == http.MethodGet {
			payload = b.list
		}
		b.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		if fail != nil {
			w.WriteHeader(fail.Code)
			json.NewEncoder(w).Encode(fail)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"payload": payload})
	})
}

func (b *scriptedBackend) set(list any, fail *model.ErrorResponse) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.list, b.failWith = list, fail
}

func (b *scriptedBackend) setMutation(payload any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.mutation = payload
}

func (b *scriptedBackend) requestLog() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.requests...)
}

func newTestStore(t *testing.T) (*Store[thing, thing], *scriptedBackend, *api.Client) {
	t.Helper()
	backend := &scriptedBackend{}
	srv := httptest.NewServer(backend.handler())
	t.Cleanup(srv.Close)

	client := api.New(srv.URL)
	s := New(client, "/things", func(v thing) string { return v.ID }, Identity[thing]())
	return s, backend, client
}

func TestFetchWithoutAuthIsPendingNotError(t *testing.T) {
	s, backend, _ := newTestStore(t)

	require.Nil(t, s.Fetch(context.Background()))
	assert.Equal(t, StatusPending, s.Status().State)
	// No network call happened: this is "waiting for login".
	assert.Empty(t, backend.requestLog())
}

func TestFetchReplacesDataAndLookup(t *testing.T) {
	s, backend, client := newTestStore(t)
	client.SetToken("tok")
	backend.set([]thing{{ID: "b", Name: "second"}, {ID: "a", Name: "first"}}, nil)

	require.Nil(t, s.Fetch(context.Background()))
	assert.Equal(t, StatusDone, s.Status().State)
	assert.Len(t, s.Data(), 2)

	got, ok := s.Lookup("a")
	require.True(t, ok)
	assert.Equal(t, "first", got.Name)

	// A second fetch fully replaces data and lookup.
	backend.set([]thing{{ID: "c", Name: "third"}}, nil)
	require.Nil(t, s.Fetch(context.Background()))
	assert.Len(t, s.Data(), 1)
	_, ok = s.Lookup("a")
	assert.False(t, ok)
	_, ok = s.Lookup("c")
	assert.True(t, ok)
}

func TestFailedFetchKeepsLastKnownGoodData(t *testing.T) {
	s, backend, client := newTestStore(t)
	client.SetToken("tok")
	backend.set([]thing{{ID: "a"}}, nil)
	require.Nil(t, s.Fetch(context.Background()))

	backend.set(nil, &model.ErrorResponse{Code: 500, Message: "boom"})
	errRes := s.Fetch(context.Background())
	require.NotNil(t, errRes)

	status := s.Status()
	assert.Equal(t, StatusError, status.State)
	assert.Equal(t, 500, status.Code)
	assert.Equal(t, "boom", status.Message)

	// Stale-but-present beats empty.
	assert.Len(t, s.Data(), 1)
	_, ok := s.Lookup("a")
	assert.True(t, ok)
}

func TestMutationsTriggerExactlyOneRefetch(t *testing.T) {
	s, backend, client := newTestStore(t)
	client.SetToken("tok")
	backend.set([]thing{{ID: "new-id"}}, nil)

	t.Run("add", func(t *testing.T) {
		backend.setMutation(model.CreatedResponse{ID: "new-id"})
		id, errRes := s.Add(context.Background(), thing{Name: "x"})
		require.Nil(t, errRes)
		assert.Equal(t, "new-id", id)
		assert.Equal(t, []string{"POST /things", "GET /things"}, backend.requestLog())
	})

	t.Run("update", func(t *testing.T) {
		before := len(backend.requestLog())
		require.Nil(t, s.Update(context.Background(), "new-id", thing{Name: "y"}))
		log := backend.requestLog()[before:]
		assert.Equal(t, []string{"PATCH /things/new-id", "GET /things"}, log)
	})

	t.Run("delete", func(t *testing.T) {
		before := len(backend.requestLog())
		require.Nil(t, s.Delete(context.Background(), "new-id"))
		log := backend.requestLog()[before:]
		assert.Equal(t, []string{"DELETE /things/new-id", "GET /things"}, log)
	})

	t.Run("failed mutation does not refetch", func(t *testing.T) {
		backend.set(nil, &model.ErrorResponse{Code: 400, Message: "nope"})
		before := len(backend.requestLog())
		_, errRes := s.Add(context.Background(), thing{})
		require.NotNil(t, errRes)
		assert.Len(t, backend.requestLog()[before:], 1)
	})
}

func TestOnAuthChange(t *testing.T) {
	s, backend, client := newTestStore(t)
	backend.set([]thing{{ID: "a"}}, nil)

	t.Run("login fetches", func(t *testing.T) {
		client.SetToken("tok")
		s.OnAuthChange(context.Background(), true)
		assert.Equal(t, StatusDone, s.Status().State)
		assert.Len(t, s.Data(), 1)
	})

	t.Run("logout resets to pending, data stays", func(t *testing.T) {
		client.Logout()
		s.OnAuthChange(context.Background(), false)
		assert.Equal(t, StatusPending, s.Status().State)
		assert.Len(t, s.Data(), 1)
	})
}
