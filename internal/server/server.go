// Package server implements the Antimony mock server: REST endpoints backed
// by in-memory fixture data, the lab lifecycle engine advancing lab state in
// the background, and a socket.io push channel notifying connected clients
// of state changes.
package server

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/insrapperswil/antimony/internal/fanout"
	"github.com/insrapperswil/antimony/internal/model"
	"github.com/insrapperswil/antimony/internal/scheduler"
	"github.com/insrapperswil/antimony/internal/topology"
)

// Push event names consumed by clients.
const (
	EventLabsUpdate   = "labsUpdate"
	EventNotification = "notification"
)

// Config bundles the server's construction parameters.
type Config struct {
	Fixtures        *Fixtures
	NotificationCap int
	Clock           scheduler.Clock
	SchedulerOpts   []scheduler.Option
}

// Server holds the mock backend's whole state. All record maps are guarded
// by one mutex; ordered id slices keep listing order deterministic.
type Server struct {
	logger   *slog.Logger
	registry *fanout.Registry
	history  *fanout.History
	sched    *scheduler.Scheduler
	clock    scheduler.Clock

	mu            sync.RWMutex
	users         map[string]model.User // by username
	tokens        map[string]string     // token -> user id
	groups        []model.Group
	devices       []model.Device
	topologies    map[string]*model.Topology
	topologyOrder []string
	labs          map[string]*model.Lab
	labOrder      []string
}

// New builds a server from fixture data. The lifecycle engine is created
// here with the server as its transition sink; callers start it via
// Scheduler().Run.
func New(logger *slog.Logger, cfg Config) *Server {
	fx := cfg.Fixtures
	if fx == nil {
		fx = DefaultFixtures()
	}

	clock := cfg.Clock
	if clock == nil {
		clock = scheduler.SystemClock{}
	}

	s := &Server{
		logger:     logger,
		registry:   fanout.NewRegistry(logger),
		history:    fanout.NewHistory(cfg.NotificationCap),
		clock:      clock,
		users:      map[string]model.User{},
		tokens:     map[string]string{},
		groups:     fx.Groups,
		devices:    fx.Devices,
		topologies: map[string]*model.Topology{},
		labs:       map[string]*model.Lab{},
	}
	for _, u := range fx.Users {
		s.users[u.Username] = u
	}
	for _, seed := range fx.Topologies {
		t := model.Topology{
			ID:         uuid.NewString(),
			GroupID:    seed.GroupID,
			CreatorID:  seed.CreatorID,
			Definition: seed.Definition,
		}
		s.topologies[t.ID] = &t
		s.topologyOrder = append(s.topologyOrder, t.ID)
	}

	opts := append([]scheduler.Option{scheduler.WithLogger(logger)}, cfg.SchedulerOpts...)
	s.sched = scheduler.New(s.applyTransition, opts...)
	return s
}

// Scheduler exposes the lifecycle engine for the run loop and for tests.
func (s *Server) Scheduler() *scheduler.Scheduler {
	return s.sched
}

// Registry exposes the push connection registry.
func (s *Server) Registry() *fanout.Registry {
	return s.registry
}

// applyTransition is the lifecycle engine's sink: it mutates the lab record,
// appends the notification to the owner's history, and pushes both the
// notification and a labsUpdate hint to live connections.
func (s *Server) applyTransition(t scheduler.Transition) {
	s.mu.Lock()
	lab, ok := s.labs[t.LabID]
	if !ok {
		s.mu.Unlock()
		s.sched.Cancel(t.LabID)
		return
	}
	lab.State = t.To
	lab.LatestStateChange = t.At
	if t.To == model.LabStateRunning {
		lab.Nodes = s.labNodesLocked(lab)
	}
	runnerID := lab.RunnerID
	labName := lab.Name
	s.mu.Unlock()

	n := s.transitionNotification(t, labName, runnerID)
	s.history.Append(runnerID, n)
	s.registry.Send(runnerID, EventNotification, n)
	s.registry.Broadcast(EventLabsUpdate, nil)
}

func (s *Server) transitionNotification(t scheduler.Transition, labName, runnerID string) model.Notification {
	n := model.Notification{
		ID:        uuid.NewString(),
		Timestamp: t.At,
		UserID:    runnerID,
	}
	switch t.To {
	case model.LabStateDeploying:
		n.Severity = model.SeverityInfo
		n.Summary = "Deployment started"
		n.Detail = fmt.Sprintf("Lab %q is being deployed.", labName)
	case model.LabStateRunning:
		n.Severity = model.SeveritySuccess
		n.Summary = "Deployment succeeded"
		n.Detail = fmt.Sprintf("Lab %q is up and running.", labName)
	case model.LabStateFailed:
		n.Severity = model.SeverityError
		n.Summary = "Deployment failed"
		n.Detail = fmt.Sprintf("Lab %q failed to deploy.", labName)
	default:
		n.Severity = model.SeverityInfo
		n.Summary = fmt.Sprintf("Lab state changed to %s", t.To)
		n.Detail = fmt.Sprintf("Lab %q changed state.", labName)
	}
	return n
}

// labNodesLocked derives per-node connection metadata from the lab's
// topology definition once the lab is running.
func (s *Server) labNodesLocked(lab *model.Lab) map[string]model.LabNode {
	topo, ok := s.topologies[lab.TopologyID]
	if !ok {
		return nil
	}
	doc, err := topology.Parse(topo.Definition)
	if err != nil {
		return nil
	}
	nodes := map[string]model.LabNode{}
	port := 50000
	for _, name := range doc.NodeNames() {
		host := fmt.Sprintf("clab-%s-%s", doc.Name(), name)
		nodes[name] = model.LabNode{
			Host:   host,
			Port:   port,
			WebSSH: fmt.Sprintf("/ssh/%s:%d", host, port),
		}
		port++
	}
	return nodes
}

// authenticate resolves a bearer token to a user id.
func (s *Server) authenticate(token string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	userID, ok := s.tokens[token]
	return userID, ok
}

// login validates credentials and issues a fresh opaque token.
func (s *Server) login(username, password string) (*model.AuthResponse, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[username]
	if !ok || user.Password != password {
		return nil, false
	}
	token := uuid.NewString()
	s.tokens[token] = user.ID
	return &model.AuthResponse{Token: token, IsAdmin: user.IsAdmin}, true
}

func (s *Server) listTopologies() []model.Topology {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Topology, 0, len(s.topologyOrder))
	for _, id := range s.topologyOrder {
		out = append(out, *s.topologies[id])
	}
	return out
}

func (s *Server) listLabs() []model.Lab {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Lab, 0, len(s.labOrder))
	for _, id := range s.labOrder {
		out = append(out, *s.labs[id])
	}
	return out
}

func (s *Server) createTopology(in model.TopologyIn, creatorID string) (*model.Topology, error) {
	if _, err := topology.Parse(in.Definition); err != nil {
		return nil, err
	}
	t := model.Topology{
		ID:         uuid.NewString(),
		GroupID:    in.GroupID,
		CreatorID:  creatorID,
		Definition: in.Definition,
	}
	s.mu.Lock()
	s.topologies[t.ID] = &t
	s.topologyOrder = append(s.topologyOrder, t.ID)
	s.mu.Unlock()
	return &t, nil
}

func (s *Server) updateTopology(id string, in model.TopologyUpdate) (bool, error) {
	if _, err := topology.Parse(in.Definition); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.topologies[id]
	if !ok {
		return false, nil
	}
	t.Definition = in.Definition
	return true, nil
}

func (s *Server) deleteTopology(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.topologies[id]; !ok {
		return false
	}
	delete(s.topologies, id)
	for i, oid := range s.topologyOrder {
		if oid == id {
			s.topologyOrder = append(s.topologyOrder[:i], s.topologyOrder[i+1:]...)
			break
		}
	}
	return true
}

// createLab registers a lab at state Scheduled and enqueues it into the
// lifecycle engine.
func (s *Server) createLab(in model.LabIn, runnerID string) (*model.Lab, bool) {
	s.mu.Lock()
	topo, ok := s.topologies[in.TopologyID]
	if !ok {
		s.mu.Unlock()
		return nil, false
	}
	lab := model.Lab{
		ID:                uuid.NewString(),
		Name:              in.Name,
		StartDate:         in.StartDate,
		EndDate:           in.EndDate,
		GroupID:           topo.GroupID,
		TopologyID:        in.TopologyID,
		RunnerID:          runnerID,
		State:             model.LabStateScheduled,
		LatestStateChange: s.clock.Now(),
	}
	s.labs[lab.ID] = &lab
	s.labOrder = append(s.labOrder, lab.ID)
	s.mu.Unlock()

	s.sched.Enqueue(lab.ID)
	return &lab, true
}

// rescheduleLab patches the lab window and re-enqueues it.
func (s *Server) rescheduleLab(id string, in model.LabUpdate) bool {
	s.mu.Lock()
	lab, ok := s.labs[id]
	if !ok {
		s.mu.Unlock()
		return false
	}
	if in.StartDate != nil {
		lab.StartDate = *in.StartDate
	}
	if in.EndDate != nil {
		lab.EndDate = *in.EndDate
	}
	lab.State = model.LabStateScheduled
	lab.LatestStateChange = s.clock.Now()
	s.mu.Unlock()

	s.sched.Enqueue(id)
	return true
}
