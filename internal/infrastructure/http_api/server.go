package http_api

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/davarch/pipedash/internal/domain"
	"github.com/davarch/pipedash/internal/infrastructure/progress"
	"github.com/gorilla/mux"
	"github.com/urfave/negroni/v3"
	"go.uber.org/zap"
)

type Service interface {
	GetDashboard(ctx context.Context, creds domain.Credentials, org, project, connectionID string) (domain.DashboardResult, error)
	GetRecentRuns(ctx context.Context, creds domain.Credentials, org, project string, pipelineID int64, top int) (domain.RunsResult, error)
	GetConfigText(ctx context.Context, creds domain.Credentials, org, project string, pipelineID int64) (domain.ConfigTextResult, error)
	ParseConfig(text string, pipelineID int64, name, path string) domain.ParsedPipelineSettings
}

type Server struct {
	log        *zap.Logger
	svc        Service
	hub        *progress.Hub
	defaultTop int
	timeout    time.Duration
}

// New builds the API. timeout bounds each upstream-backed request; zero
// leaves only the client's own deadline.
func New(l *zap.Logger, svc Service, hub *progress.Hub, defaultTop int, timeout time.Duration) *Server {
	return &Server{log: l, svc: svc, hub: hub, defaultTop: defaultTop, timeout: timeout}
}

func (s *Server) requestContext(r *http.Request) (context.Context, context.CancelFunc) {
	if s.timeout > 0 {
		return context.WithTimeout(r.Context(), s.timeout)
	}
	return context.WithCancel(r.Context())
}

func (s *Server) Handler() http.Handler {
	r := mux.NewRouter().StrictSlash(true)
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) }).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/parse", s.parse).Methods(http.MethodPost)
	api.HandleFunc("/progress", s.progressStream).Methods(http.MethodGet)
	api.HandleFunc("/progress/{connectionId}", s.progressStream).Methods(http.MethodGet)
	api.HandleFunc("/{org}/{project}/dashboard", s.dashboard).Methods(http.MethodGet)
	api.HandleFunc("/{org}/{project}/pipelines/{id:[0-9]+}/runs", s.runs).Methods(http.MethodGet)
	api.HandleFunc("/{org}/{project}/pipelines/{id:[0-9]+}/config", s.configText).Methods(http.MethodGet)

	n := negroni.New(negroni.NewRecovery(), requestLogger(s.log))
	n.UseHandler(r)
	return n
}

func (s *Server) dashboard(w http.ResponseWriter, r *http.Request) {
	v := mux.Vars(r)
	ctx, cancel := s.requestContext(r)
	defer cancel()

	res, err := s.svc.GetDashboard(ctx, credentials(r), v["org"], v["project"], r.URL.Query().Get("connectionId"))
	writeJSON(w, statusFor(err), res)
}

func (s *Server) runs(w http.ResponseWriter, r *http.Request) {
	v := mux.Vars(r)
	id, _ := strconv.ParseInt(v["id"], 10, 64)

	top := s.defaultTop
	if q := r.URL.Query().Get("top"); q != "" {
		n, err := strconv.Atoi(q)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, domain.RunsResult{Runs: []domain.RunInfo{}, ErrorMessage: fmt.Sprintf("invalid top %q", q)})
			return
		}
		top = n
	}

	ctx, cancel := s.requestContext(r)
	defer cancel()

	res, err := s.svc.GetRecentRuns(ctx, credentials(r), v["org"], v["project"], id, top)
	writeJSON(w, statusFor(err), res)
}

func (s *Server) configText(w http.ResponseWriter, r *http.Request) {
	v := mux.Vars(r)
	id, _ := strconv.ParseInt(v["id"], 10, 64)

	ctx, cancel := s.requestContext(r)
	defer cancel()

	res, err := s.svc.GetConfigText(ctx, credentials(r), v["org"], v["project"], id)
	writeJSON(w, statusFor(err), res)
}

type parseRequest struct {
	Text       string `json:"text"`
	PipelineID int64  `json:"pipelineId"`
	Name       string `json:"name"`
	Path       string `json:"path"`
}

func (s *Server) parse(w http.ResponseWriter, r *http.Request) {
	var req parseRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		loggerFrom(r.Context(), s.log).Debug("bad parse request", zap.Error(err))
		writeJSON(w, http.StatusBadRequest, map[string]string{"errorMessage": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, s.svc.ParseConfig(req.Text, req.PipelineID, req.Name, req.Path))
}

// progressStream serves server-sent events for one connection id. Without an
// id in the path a new one is assigned and sent as the first event.
func (s *Server) progressStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	id := mux.Vars(r)["connectionId"]
	if id == "" {
		id = progress.NewConnectionID()
	}

	log := loggerFrom(r.Context(), s.log).With(zap.String("connection_id", id))
	msgs, release := s.hub.Subscribe(id)
	defer release()
	log.Debug("progress stream opened")
	defer log.Debug("progress stream closed")

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	_, _ = fmt.Fprintf(w, "event: connected\ndata: %s\n\n", id)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case m, ok := <-msgs:
			if !ok {
				return
			}
			_, _ = fmt.Fprintf(w, "event: progress\ndata: %s\n\n", strings.ReplaceAll(m, "\n", " "))
			flusher.Flush()
		}
	}
}

// credentials reads a PAT from "Bearer <pat>" or "Basic base64(:<pat>)".
// Missing credentials fall through to the configured token.
func credentials(r *http.Request) domain.Credentials {
	h := r.Header.Get("Authorization")
	scheme, value, ok := strings.Cut(h, " ")
	if !ok {
		return domain.Credentials{}
	}

	switch strings.ToLower(scheme) {
	case "bearer":
		return domain.Credentials{Token: strings.TrimSpace(value)}
	case "basic":
		raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(value))
		if err != nil {
			return domain.Credentials{}
		}
		_, pass, _ := strings.Cut(string(raw), ":")
		return domain.Credentials{Token: pass}
	}
	return domain.Credentials{}
}

func statusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrNotYAMLPipeline):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
