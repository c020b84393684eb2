package store

import (
	"context"
	"slices"
	"strings"

	"github.com/insrapperswil/antimony/internal/api"
	"github.com/insrapperswil/antimony/internal/ctxlog"
	"github.com/insrapperswil/antimony/internal/editor"
	"github.com/insrapperswil/antimony/internal/model"
	"github.com/insrapperswil/antimony/internal/topology"
)

// TopologyRecord is a stored topology with its definition parsed into a
// document and position metadata recovered.
type TopologyRecord struct {
	ID        string
	GroupID   string
	CreatorID string
	Document  *topology.Document
}

// TopologyStore specializes the generic store for topologies: raw
// definitions are parsed on receipt, unparsable records are logged and
// skipped rather than failing the whole fetch, and the collection is kept
// sorted by topology name for a stable listing order. It also owns the
// single topology manager mediating edits.
type TopologyStore struct {
	*Store[model.Topology, TopologyRecord]

	// Editor is the manager for the at-most-one open edit session.
	Editor *editor.Manager
}

// NewTopologyStore creates the topology store and its edit manager.
func NewTopologyStore(client *api.Client, opts ...editor.Option) *TopologyStore {
	s := &TopologyStore{}
	s.Store = New(client, "/topologies",
		func(r TopologyRecord) string { return r.ID },
		parseTopologies,
	)
	s.Editor = editor.New(s, opts...)
	return s
}

// UpdateDefinition saves an edited definition through the store's update
// call; the edit manager delegates here on save.
func (s *TopologyStore) UpdateDefinition(ctx context.Context, id, definition string) *model.ErrorResponse {
	return s.Update(ctx, id, model.TopologyUpdate{Definition: definition})
}

func parseTopologies(ctx context.Context, raw []model.Topology) []TopologyRecord {
	logger := ctxlog.FromContext(ctx)
	records := make([]TopologyRecord, 0, len(raw))
	for _, r := range raw {
		doc, err := topology.Parse(r.Definition)
		if err != nil {
			logger.Warn("Skipping topology with unparsable definition.", "id", r.ID, "error", err)
			continue
		}
		records = append(records, TopologyRecord{
			ID:        r.ID,
			GroupID:   r.GroupID,
			CreatorID: r.CreatorID,
			Document:  doc,
		})
	}
	slices.SortStableFunc(records, func(a, b TopologyRecord) int {
		return strings.Compare(a.Document.Name(), b.Document.Name())
	})
	return records
}

// NewLabStore creates an identity store over /labs.
func NewLabStore(client *api.Client) *Store[model.Lab, model.Lab] {
	return New(client, "/labs",
		func(l model.Lab) string { return l.ID },
		Identity[model.Lab](),
	)
}

// NewNotificationStore creates an identity store over /notifications.
func NewNotificationStore(client *api.Client) *Store[model.Notification, model.Notification] {
	return New(client, "/notifications",
		func(n model.Notification) string { return n.ID },
		Identity[model.Notification](),
	)
}

// NewGroupStore creates an identity store over /groups.
func NewGroupStore(client *api.Client) *Store[model.Group, model.Group] {
	return New(client, "/groups",
		func(g model.Group) string { return g.ID },
		Identity[model.Group](),
	)
}

// NewDeviceStore creates an identity store over /devices, keyed by name.
func NewDeviceStore(client *api.Client) *Store[model.Device, model.Device] {
	return New(client, "/devices",
		func(d model.Device) string { return d.Name },
		Identity[model.Device](),
	)
}
