// Package model defines the wire types exchanged between the Antimony
// client stores and the mock server. Every payload crossing the REST or
// push boundary is declared here so that unknown shapes are rejected at
// the edge instead of leaking into state-machine code.
package model

import "time"

// LabState is the lifecycle state of a scheduled lab deployment.
type LabState string

const (
	LabStateScheduled LabState = "scheduled"
	LabStateDeploying LabState = "deploying"
	LabStateRunning   LabState = "running"
	LabStateFailed    LabState = "failed"
	LabStateDone      LabState = "done"
)

// Terminal reports whether the lifecycle engine has finished with a lab in
// this state. Done is reached only through an external action, never by the
// engine itself, but it is terminal all the same.
func (s LabState) Terminal() bool {
	return s == LabStateRunning || s == LabStateFailed || s == LabStateDone
}

// Severity classifies a notification.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeveritySuccess Severity = "success"
	SeverityInfo    Severity = "info"
)

// Topology is a stored topology record. The Definition field carries the
// container-lab YAML as an opaque string; parsing happens client-side.
type Topology struct {
	ID         string `json:"id"`
	GroupID    string `json:"groupId"`
	CreatorID  string `json:"creatorId"`
	Definition string `json:"definition"`
}

// TopologyIn is the creation payload for POST /topologies.
type TopologyIn struct {
	GroupID    string `json:"groupId"`
	Definition string `json:"definition"`
}

// TopologyUpdate is the PATCH payload for an existing topology.
type TopologyUpdate struct {
	Definition string `json:"definition"`
}

// LabNode carries per-node connection metadata for a deployed lab.
type LabNode struct {
	Host string `json:"host"`
	Port int    `json:"port"`
	// WebSSH is the browser SSH link for the node, empty until deployed.
	WebSSH string `json:"webSsh,omitempty"`
}

// Lab is a scheduled deployment instance of a topology.
type Lab struct {
	ID                string             `json:"id"`
	Name              string             `json:"name"`
	StartDate         time.Time          `json:"startDate"`
	EndDate           time.Time          `json:"endDate"`
	GroupID           string             `json:"groupId"`
	TopologyID        string             `json:"topologyId"`
	RunnerID          string             `json:"runnerId"`
	State             LabState           `json:"state"`
	LatestStateChange time.Time          `json:"latestStateChange"`
	Nodes             map[string]LabNode `json:"nodes,omitempty"`
}

// LabIn is the creation payload for POST /labs.
type LabIn struct {
	Name       string    `json:"name"`
	StartDate  time.Time `json:"startDate"`
	EndDate    time.Time `json:"endDate"`
	TopologyID string    `json:"topologyId"`
}

// LabUpdate is the PATCH payload for rescheduling a lab. Nil fields are
// left unchanged.
type LabUpdate struct {
	StartDate *time.Time `json:"startDate,omitempty"`
	EndDate   *time.Time `json:"endDate,omitempty"`
}

// Notification is a per-user event record; delivered once over the push
// channel when the user is connected and kept in capped history regardless.
type Notification struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Severity  Severity  `json:"severity"`
	Summary   string    `json:"summary"`
	Detail    string    `json:"detail"`
	Read      bool      `json:"read"`
	UserID    string    `json:"userId"`
}

// Group is a permission scope owning topologies.
type Group struct {
	ID       string `json:"id" yaml:"id"`
	Name     string `json:"name" yaml:"name"`
	CanWrite bool   `json:"canWrite" yaml:"canWrite"`
	CanRun   bool   `json:"canRun" yaml:"canRun"`
}

// Device describes a node kind selectable in the editor.
type Device struct {
	Name             string   `json:"name" yaml:"name"`
	Kind             string   `json:"kind" yaml:"kind"`
	InterfacePattern string   `json:"interfacePattern" yaml:"interfacePattern"`
	Images           []string `json:"images,omitempty" yaml:"images"`
}

// AuthRequest is the login payload for POST /users/auth.
type AuthRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// AuthResponse carries the opaque bearer token issued on successful login.
type AuthResponse struct {
	Token   string `json:"token"`
	IsAdmin bool   `json:"isAdmin"`
}

// User is a server-side account record, fixture data only.
type User struct {
	ID       string `json:"id" yaml:"id"`
	Username string `json:"username" yaml:"username"`
	Password string `json:"-" yaml:"password"`
	IsAdmin  bool   `json:"isAdmin" yaml:"isAdmin"`
}

// CreatedResponse is the success payload of a create call.
type CreatedResponse struct {
	ID string `json:"id"`
}
