package store

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/insrapperswil/antimony/internal/api"
	"github.com/insrapperswil/antimony/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTopologyStoreParsesSkipsAndSorts(t *testing.T) {
	records := []model.Topology{
		{ID: "t-1", GroupID: "g1", Definition: "name: zebra\ntopology:\n  nodes: {}\n"},
		{ID: "t-2", GroupID: "g1", Definition: "name: [broken"},
		{ID: "t-3", GroupID: "g2", Definition: "name: alpha\ntopology:\n  nodes: {}\n"},
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"payload": records})
	}))
	defer srv.Close()

	client := api.New(srv.URL)
	client.SetToken("tok")
	s := NewTopologyStore(client)

	require.Nil(t, s.Fetch(context.Background()))

	// The unparsable record is skipped, not fatal, and the rest is sorted
	// by topology name.
	data := s.Data()
	require.Len(t, data, 2)
	assert.Equal(t, "alpha", data[0].Document.Name())
	assert.Equal(t, "zebra", data[1].Document.Name())

	_, ok := s.Lookup("t-2")
	assert.False(t, ok)

	rec, ok := s.Lookup("t-1")
	require.True(t, ok)
	assert.Equal(t, "g1", rec.GroupID)
}

func TestTopologyStoreSavesThroughEditor(t *testing.T) {
	var patched string
	definition := "name: alpha\ntopology:\n  nodes:\n    srl1:\n      kind: nokia_srlinux\n"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPatch {
			var in model.TopologyUpdate
			require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
			patched = in.Definition
		}
		json.NewEncoder(w).Encode(map[string]any{"payload": []model.Topology{
			{ID: "t-1", GroupID: "g1", Definition: definition},
		}})
	}))
	defer srv.Close()

	client := api.New(srv.URL)
	client.SetToken("tok")
	s := NewTopologyStore(client)
	require.Nil(t, s.Fetch(context.Background()))

	rec, ok := s.Lookup("t-1")
	require.True(t, ok)

	s.Editor.Open(rec.ID, rec.Document)
	s.Editor.DeleteNode("srl1")
	require.True(t, s.Editor.HasEdits())

	require.Nil(t, s.Editor.Save(context.Background()))
	assert.False(t, s.Editor.HasEdits())
	assert.NotContains(t, patched, "srl1")
}
