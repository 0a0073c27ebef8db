// Command flexdetect wires the facility registry core behind a small JSON
// HTTP surface for the dashboard UI: facility cards, the single create/edit
// form session, dataset attachment, and session authentication.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"flexdetect/internal/auth"
	"flexdetect/internal/blob"
	"flexdetect/internal/browser"
	"flexdetect/internal/form"
	"flexdetect/internal/ingest"
	"flexdetect/internal/registry"
	"flexdetect/pkg/domain"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	store, err := registry.OpenPersistentStore()
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}

	promReg := prometheus.NewRegistry()
	metrics, err := registry.NewPrometheusMetricsRecorder(promReg)
	if err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}
	audit := registry.NewJSONAuditRecorder(os.Stderr)
	svc := registry.NewService(store,
		registry.WithMetricsRecorder(metrics),
		registry.WithAuditRecorder(audit),
	)

	blobStore, err := blob.OpenFromEnv(context.Background())
	if err != nil {
		return fmt.Errorf("open blob store: %w", err)
	}
	forms := form.NewManager(svc, ingest.NewIngestor(),
		form.WithDatasetArchive(blob.NewDatasetArchive(blobStore)),
		form.WithArchiveErrorHandler(func(err error) {
			log.Printf("dataset archive: %v", err)
		}),
	)
	browse := browser.New(svc, forms)

	tokenPath := os.Getenv("FLEXDETECT_TOKEN_PATH")
	if tokenPath == "" {
		tokenPath = "flexdetect-session.db"
	}
	tokens, err := auth.OpenBoltTokenStore(tokenPath)
	if err != nil {
		return fmt.Errorf("open token store: %w", err)
	}
	defer func() { _ = tokens.Close() }()

	authBase := os.Getenv("FLEXDETECT_AUTH_URL")
	if authBase == "" {
		authBase = "http://localhost:8080/api"
	}
	gateway := auth.NewGateway(authBase, tokens, nil)

	srv := &server{svc: svc, forms: forms, browse: browse, gateway: gateway, tokens: tokens}

	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.HandlerFor(promReg, promhttp.HandlerOpts{}))
	mux.HandleFunc("POST /api/auth/login", srv.handleLogin)
	mux.HandleFunc("POST /api/auth/register", srv.handleRegister)
	mux.HandleFunc("POST /api/auth/logout", srv.handleLogout)
	mux.HandleFunc("GET /api/auth/status", srv.handleStatus)
	mux.Handle("GET /api/facilities", srv.authenticated(srv.handleFacilities))
	mux.Handle("POST /api/form/create", srv.authenticated(srv.handleOpenCreate))
	mux.Handle("POST /api/form/edit/{id}", srv.authenticated(srv.handleOpenEdit))
	mux.Handle("PUT /api/form/fields", srv.authenticated(srv.handleSetFields))
	mux.Handle("POST /api/form/dataset", srv.authenticated(srv.handleAttachDataset))
	mux.Handle("POST /api/form/commit", srv.authenticated(srv.handleCommit))
	mux.Handle("POST /api/form/cancel", srv.authenticated(srv.handleCancel))

	addr := os.Getenv("FLEXDETECT_LISTEN_ADDR")
	if addr == "" {
		addr = ":8090"
	}
	log.Printf("flexdetect listening on %s", addr)
	return http.ListenAndServe(addr, mux)
}

type server struct {
	svc     *registry.Service
	forms   *form.Manager
	browse  *browser.Browser
	gateway *auth.Gateway
	tokens  auth.TokenStore
}

func (s *server) authenticated(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.tokens.IsAuthenticated() {
			writeError(w, http.StatusUnauthorized, "not authenticated")
			return
		}
		next(w, r)
	})
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *server) handleLogin(w http.ResponseWriter, r *http.Request) {
	s.handleExchange(w, r, s.gateway.Login)
}

func (s *server) handleRegister(w http.ResponseWriter, r *http.Request) {
	s.handleExchange(w, r, s.gateway.Register)
}

func (s *server) handleExchange(w http.ResponseWriter, r *http.Request, exchange func(context.Context, string, string) (string, error)) {
	var creds credentials
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		writeError(w, http.StatusBadRequest, "invalid credentials payload")
		return
	}
	if _, err := exchange(r.Context(), creds.Email, creds.Password); err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"authenticated": true})
}

func (s *server) handleLogout(w http.ResponseWriter, _ *http.Request) {
	if err := s.gateway.Logout(); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"authenticated": false})
}

func (s *server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"authenticated": s.gateway.IsAuthenticated()})
}

func (s *server) handleFacilities(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.browse.Cards())
}

func (s *server) handleOpenCreate(w http.ResponseWriter, _ *http.Request) {
	if _, err := s.forms.OpenCreate(); err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"mode": string(form.ModeCreate)})
}

func (s *server) handleOpenEdit(w http.ResponseWriter, r *http.Request) {
	session, err := s.browse.Edit(r.PathValue("id"))
	if err != nil {
		status := http.StatusConflict
		var notFound domain.NotFoundError
		if errors.As(err, &notFound) {
			status = http.StatusNotFound
		}
		writeError(w, status, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"mode": string(form.ModeEdit), "fields": session.Fields()})
}

func (s *server) activeSession(w http.ResponseWriter) *form.Session {
	session := s.forms.Active()
	if session == nil {
		writeError(w, http.StatusConflict, "no open form session")
	}
	return session
}

func (s *server) handleSetFields(w http.ResponseWriter, r *http.Request) {
	session := s.activeSession(w)
	if session == nil {
		return
	}
	var fields domain.FacilityFields
	if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
		writeError(w, http.StatusBadRequest, "invalid fields payload")
		return
	}
	if err := session.SetFields(fields); err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, session.Fields())
}

func (s *server) handleAttachDataset(w http.ResponseWriter, r *http.Request) {
	session := s.activeSession(w)
	if session == nil {
		return
	}
	data, err := io.ReadAll(io.LimitReader(r.Body, 8<<20))
	if err != nil {
		writeError(w, http.StatusBadRequest, "read upload")
		return
	}
	src := ingest.BytesSource{Label: "upload", Data: data}
	if err := session.AttachDataset(r.Context(), src); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"dataset": session.Dataset()})
}

func (s *server) handleCommit(w http.ResponseWriter, r *http.Request) {
	session := s.activeSession(w)
	if session == nil {
		return
	}
	committed, err := session.Commit(r.Context())
	if err != nil {
		var validation domain.ValidationError
		if errors.As(err, &validation) {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"violations": validation.Result.Violations})
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, committed)
}

func (s *server) handleCancel(w http.ResponseWriter, _ *http.Request) {
	session := s.activeSession(w)
	if session == nil {
		return
	}
	if err := session.Cancel(); err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"closed": true})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
