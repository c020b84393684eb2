// Package editor implements the topology edit manager: the client-side state
// machine owning the single "currently open for editing" topology. All
// structural edits are mediated here and broadcast as tagged edit events so
// that the text editor and graph editor can resynchronize from the same
// document without re-applying each other's output.
package editor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/insrapperswil/antimony/internal/event"
	"github.com/insrapperswil/antimony/internal/model"
	"github.com/insrapperswil/antimony/internal/topology"
)

// EditSource tags where an edit originated. Subscribers use it to skip
// re-renders they themselves triggered; without the tag the text editor and
// graph editor would feed each other's output back in a loop.
type EditSource int

const (
	SourceTextEditor EditSource = iota
	SourceNodeEditor
	SourceSystem
)

// String returns the source name for logging.
func (s EditSource) String() string {
	switch s {
	case SourceTextEditor:
		return "textEditor"
	case SourceNodeEditor:
		return "nodeEditor"
	case SourceSystem:
		return "system"
	default:
		return "unknown"
	}
}

// EditEvent is broadcast after every applied edit.
type EditEvent struct {
	Topology *topology.Document
	IsEdited bool
	Source   EditSource
}

// Updater saves an edited definition; implemented by the topology store.
type Updater interface {
	UpdateDefinition(ctx context.Context, id, definition string) *model.ErrorResponse
}

// Validator checks a document against the externally supplied schema. The
// manager consumes it as a black box.
type Validator interface {
	Validate(doc *topology.Document) error
}

// Notifier delivers user-facing messages; consumed as a capability so the
// manager stays independent of any toast/dialog implementation.
type Notifier interface {
	Notify(severity model.Severity, summary, detail string)
}

// session is one open edit: the last-saved snapshot plus the working copy.
type session struct {
	id       string
	original *topology.Document
	editing  *topology.Document
	dirty    bool
}

// Manager owns at most one edit session at a time. Every operation invoked
// while no session is open is a silent no-op; UI components are expected to
// guard via IsOpen, but the manager stays defensive regardless.
type Manager struct {
	updater   Updater
	validator Validator
	notifier  Notifier
	debounce  time.Duration

	mu      sync.Mutex
	session *session
	timer   *time.Timer

	// OnOpen fires with the editing document when a topology is opened.
	OnOpen *event.Broadcaster[*topology.Document]
	// OnEdit fires after every applied edit, including the save commit.
	OnEdit *event.Broadcaster[EditEvent]
	// OnClose fires when the session is discarded.
	OnClose *event.Broadcaster[struct{}]
	// OnValidation fires with the debounced validation result; nil means
	// the document is valid.
	OnValidation *event.Broadcaster[error]
}

// Option configures a Manager.
type Option func(*Manager)

// WithValidator installs the schema-validation capability.
func WithValidator(v Validator) Option {
	return func(m *Manager) { m.validator = v }
}

// WithNotifier installs the notification capability.
func WithNotifier(n Notifier) Option {
	return func(m *Manager) { m.notifier = n }
}

// WithDebounce overrides the validation debounce interval.
func WithDebounce(d time.Duration) Option {
	return func(m *Manager) { m.debounce = d }
}

// New creates a closed manager saving through the given updater.
func New(updater Updater, opts ...Option) *Manager {
	m := &Manager{
		updater:      updater,
		debounce:     400 * time.Millisecond,
		OnOpen:       event.NewBroadcaster[*topology.Document](),
		OnEdit:       event.NewBroadcaster[EditEvent](),
		OnClose:      event.NewBroadcaster[struct{}](),
		OnValidation: event.NewBroadcaster[error](),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// IsOpen reports whether an edit session is active.
func (m *Manager) IsOpen() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session != nil
}

// OpenID returns the id of the open topology, or "".
func (m *Manager) OpenID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil {
		return ""
	}
	return m.session.id
}

// Editing returns the current working document, or nil when closed.
func (m *Manager) Editing() *topology.Document {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil {
		return nil
	}
	return m.session.editing
}

// HasEdits reports whether the working copy differs meaningfully from the
// last-saved snapshot.
func (m *Manager) HasEdits() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session != nil && m.session.dirty
}

// Open starts an edit session for the given topology, replacing any session
// already open. The document is snapshotted into both the original and the
// working copy; dependent views resynchronize from the OnOpen event.
func (m *Manager) Open(id string, doc *topology.Document) {
	if doc == nil {
		return
	}
	m.mu.Lock()
	m.stopValidationLocked()
	m.session = &session{
		id:       id,
		original: doc.Clone(),
		editing:  doc.Clone(),
	}
	editing := m.session.editing
	m.mu.Unlock()

	m.OnOpen.Publish(editing)
}

// Apply replaces the working document and recomputes the dirty flag,
// broadcasting the edit tagged with its source. No-op while closed.
func (m *Manager) Apply(doc *topology.Document, source EditSource) {
	if doc == nil {
		return
	}
	m.mu.Lock()
	if m.session == nil {
		m.mu.Unlock()
		return
	}
	m.session.editing = doc
	m.session.dirty = topology.HasEdits(m.session.original, doc)
	ev := EditEvent{Topology: doc, IsEdited: m.session.dirty, Source: source}
	m.scheduleValidationLocked(doc)
	m.mu.Unlock()

	m.OnEdit.Publish(ev)
}

// Save persists the working copy through the updater. On success the
// working copy becomes the new original (the session is clean) and an edit
// event with source System is broadcast. On failure the error is returned
// untouched and the session keeps the user's edits.
func (m *Manager) Save(ctx context.Context) *model.ErrorResponse {
	m.mu.Lock()
	if m.session == nil {
		m.mu.Unlock()
		return nil
	}
	sess := m.session
	definition, err := sess.editing.Serialize()
	m.mu.Unlock()
	if err != nil {
		return &model.ErrorResponse{Code: model.CodeBadRequest, Message: err.Error()}
	}
	if m.validator != nil {
		if err := m.validator.Validate(sess.editing); err != nil {
			return &model.ErrorResponse{Code: model.CodeBadRequest, Message: err.Error()}
		}
	}

	if errRes := m.updater.UpdateDefinition(ctx, sess.id, definition); errRes != nil {
		return errRes
	}

	m.mu.Lock()
	var ev *EditEvent
	if m.session == sess {
		sess.original = sess.editing.Clone()
		sess.dirty = false
		ev = &EditEvent{Topology: sess.editing, IsEdited: false, Source: SourceSystem}
	}
	m.mu.Unlock()

	if ev != nil {
		m.OnEdit.Publish(*ev)
	}
	return nil
}

// Close discards the session. No-op while closed.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.session == nil {
		m.mu.Unlock()
		return
	}
	m.stopValidationLocked()
	m.session = nil
	m.mu.Unlock()

	m.OnClose.Publish(struct{}{})
}

// Clear removes every node and link from the working copy.
func (m *Manager) Clear() {
	doc := m.cloneEditing()
	if doc == nil {
		return
	}
	doc.ClearTopology()
	m.Apply(doc, SourceNodeEditor)
}

// DeleteNode removes a node. Deleting a node that does not exist is
// idempotent: the session stays byte-for-byte unchanged and no edit event
// fires.
func (m *Manager) DeleteNode(name string) {
	m.mu.Lock()
	if m.session == nil || !m.session.editing.HasNode(name) {
		m.mu.Unlock()
		return
	}
	doc := m.session.editing.Clone()
	m.mu.Unlock()

	doc.DeleteNode(name)
	m.Apply(doc, SourceNodeEditor)
}

// ConnectNodes links two existing nodes in the working copy.
func (m *Manager) ConnectNodes(a, b string) error {
	doc := m.cloneEditing()
	if doc == nil {
		return nil
	}
	if err := doc.ConnectNodes(a, b); err != nil {
		m.notify(model.SeverityWarning, "Cannot connect nodes", err.Error())
		return err
	}
	m.Apply(doc, SourceNodeEditor)
	return nil
}

// AddNode adds a node of the given kind under a generated unique name and
// returns that name.
func (m *Manager) AddNode(kind, image string) (string, error) {
	doc := m.cloneEditing()
	if doc == nil {
		return "", nil
	}
	name := ""
	for i := 1; ; i++ {
		name = fmt.Sprintf("node%d", i)
		if !doc.HasNode(name) {
			break
		}
	}
	if err := doc.AddNode(name, kind, image); err != nil {
		return "", err
	}
	m.Apply(doc, SourceNodeEditor)
	return name, nil
}

func (m *Manager) cloneEditing() *topology.Document {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil {
		return nil
	}
	return m.session.editing.Clone()
}

func (m *Manager) notify(severity model.Severity, summary, detail string) {
	if m.notifier != nil {
		m.notifier.Notify(severity, summary, detail)
	}
}

// scheduleValidationLocked debounces validation of the working copy: a
// superseding edit cancels the pending timer, so only the latest edit's
// result is ever published.
func (m *Manager) scheduleValidationLocked(doc *topology.Document) {
	if m.validator == nil {
		return
	}
	m.stopValidationLocked()
	m.timer = time.AfterFunc(m.debounce, func() {
		m.OnValidation.Publish(m.validator.Validate(doc))
	})
}

func (m *Manager) stopValidationLocked() {
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
}
