package server

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/insrapperswil/antimony/internal/model"
)

// Handler builds the REST mux, including the push channel endpoint.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /users/auth", s.handleAuth)

	mux.Handle("GET /topologies", s.auth(s.handleListTopologies))
	mux.Handle("POST /topologies", s.auth(s.handleCreateTopology))
	mux.Handle("PATCH /topologies/{id}", s.auth(s.handleUpdateTopology))
	mux.Handle("DELETE /topologies/{id}", s.auth(s.handleDeleteTopology))

	mux.Handle("GET /labs", s.auth(s.handleListLabs))
	mux.Handle("POST /labs", s.auth(s.handleCreateLab))
	mux.Handle("PATCH /labs/{id}", s.auth(s.handleRescheduleLab))

	mux.Handle("GET /groups", s.auth(s.handleListGroups))
	mux.Handle("GET /devices", s.auth(s.handleListDevices))
	mux.Handle("GET /notifications", s.auth(s.handleListNotifications))
	mux.Handle("PATCH /notifications/{id}", s.auth(s.handleMarkNotificationRead))

	mux.Handle("/socket.io/", s.pushHandler())

	return mux
}

// authedHandler is a request handler with the caller already resolved.
type authedHandler func(w http.ResponseWriter, r *http.Request, userID string)

// auth enforces the bearer token and passes the resolved user id through.
func (s *Server) auth(next authedHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			writeError(w, model.CodeUnauthorized, "missing bearer token")
			return
		}
		userID, ok := s.authenticate(token)
		if !ok {
			writeError(w, model.CodeUnauthorized, "invalid token")
			return
		}
		next(w, r, userID)
	})
}

func (s *Server) handleAuth(w http.ResponseWriter, r *http.Request) {
	var in model.AuthRequest
	if !decodeBody(w, r, &in) {
		return
	}
	res, ok := s.login(in.Username, in.Password)
	if !ok {
		writeError(w, model.CodeUnauthorized, "invalid credentials")
		return
	}
	s.logger.Info("User logged in.", "username", in.Username)
	writePayload(w, res)
}

func (s *Server) handleListTopologies(w http.ResponseWriter, _ *http.Request, _ string) {
	writePayload(w, s.listTopologies())
}

func (s *Server) handleCreateTopology(w http.ResponseWriter, r *http.Request, userID string) {
	var in model.TopologyIn
	if !decodeBody(w, r, &in) {
		return
	}
	t, err := s.createTopology(in, userID)
	if err != nil {
		writeError(w, model.CodeBadRequest, err.Error())
		return
	}
	s.logger.Info("Topology created.", "id", t.ID, "groupId", t.GroupID)
	writePayload(w, model.CreatedResponse{ID: t.ID})
}

func (s *Server) handleUpdateTopology(w http.ResponseWriter, r *http.Request, _ string) {
	var in model.TopologyUpdate
	if !decodeBody(w, r, &in) {
		return
	}
	ok, err := s.updateTopology(r.PathValue("id"), in)
	if err != nil {
		writeError(w, model.CodeBadRequest, err.Error())
		return
	}
	if !ok {
		writeError(w, model.CodeNotFound, "no such topology")
		return
	}
	writePayload(w, nil)
}

func (s *Server) handleDeleteTopology(w http.ResponseWriter, r *http.Request, _ string) {
	if !s.deleteTopology(r.PathValue("id")) {
		writeError(w, model.CodeNotFound, "no such topology")
		return
	}
	writePayload(w, nil)
}

func (s *Server) handleListLabs(w http.ResponseWriter, _ *http.Request, _ string) {
	writePayload(w, s.listLabs())
}

func (s *Server) handleCreateLab(w http.ResponseWriter, r *http.Request, userID string) {
	var in model.LabIn
	if !decodeBody(w, r, &in) {
		return
	}
	lab, ok := s.createLab(in, userID)
	if !ok {
		writeError(w, model.CodeBadRequest, "unknown topologyId")
		return
	}
	s.logger.Info("Lab scheduled.", "id", lab.ID, "name", lab.Name, "topologyId", lab.TopologyID)
	writePayload(w, model.CreatedResponse{ID: lab.ID})
}

func (s *Server) handleRescheduleLab(w http.ResponseWriter, r *http.Request, _ string) {
	var in model.LabUpdate
	if !decodeBody(w, r, &in) {
		return
	}
	if !s.rescheduleLab(r.PathValue("id"), in) {
		writeError(w, model.CodeNotFound, "no such lab")
		return
	}
	writePayload(w, nil)
}

func (s *Server) handleListGroups(w http.ResponseWriter, _ *http.Request, _ string) {
	writePayload(w, s.groups)
}

func (s *Server) handleListDevices(w http.ResponseWriter, _ *http.Request, _ string) {
	writePayload(w, s.devices)
}

func (s *Server) handleListNotifications(w http.ResponseWriter, _ *http.Request, userID string) {
	writePayload(w, s.history.For(userID))
}

func (s *Server) handleMarkNotificationRead(w http.ResponseWriter, r *http.Request, userID string) {
	if !s.history.MarkRead(userID, r.PathValue("id")) {
		writeError(w, model.CodeNotFound, "no such notification")
		return
	}
	writePayload(w, nil)
}

// decodeBody decodes the JSON body into in, answering a 400 on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, in any) bool {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(in); err != nil {
		writeError(w, model.CodeBadRequest, "malformed request body: "+err.Error())
		return false
	}
	return true
}

// writePayload writes the success envelope {payload: v}.
func writePayload(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"payload": v})
}

// writeError writes the failure envelope {code, message}. Client-side codes
// never reach this path, so code doubles as the HTTP status.
func writeError(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(model.ErrorResponse{Code: code, Message: message})
}
