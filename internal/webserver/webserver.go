package webserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/dustin/go-humanize"

	"github.com/warroomlabs/warroom/internal/db"
	"github.com/warroomlabs/warroom/internal/gate"
	"github.com/warroomlabs/warroom/internal/hub"
	"github.com/warroomlabs/warroom/internal/runbook"
	"github.com/warroomlabs/warroom/internal/triage"
)

type TLSConfig struct {
	Mode     string // "self-signed", "manual", or "" (disabled)
	CertFile string
	KeyFile  string
	CacheDir string
}

type AuthConfig struct {
	JWTSecret       string
	AccessTokenTTL  string
	RefreshTokenTTL string
}

type Config struct {
	Enabled     bool
	Port        int
	Host        string
	TLS         TLSConfig
	Auth        AuthConfig
	RunbooksDir string
}

type Server struct {
	store  *db.DB
	mgr    *triage.Manager
	hub    *hub.Hub
	cfg    Config
	logger *slog.Logger
}

func New(store *db.DB, mgr *triage.Manager, h *hub.Hub, cfg Config, logger *slog.Logger) *Server {
	return &Server{
		store:  store,
		mgr:    mgr,
		hub:    h,
		cfg:    cfg,
		logger: logger,
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /start", s.protect(s.handleStart))
	mux.HandleFunc("GET /stream", s.handleStream)
	mux.HandleFunc("GET /ws", s.handleWS)
	mux.HandleFunc("POST /approve", s.protect(s.handleApprove))
	mux.HandleFunc("POST /reject", s.protect(s.handleReject))
	mux.HandleFunc("GET /approval-status", s.handleApprovalStatus)
	mux.HandleFunc("GET /participants", s.handleParticipants)
	mux.HandleFunc("GET /runbooks", s.handleRunbooks)
	mux.HandleFunc("GET /current-incident", s.handleCurrentIncident)
	mux.HandleFunc("GET /buggy-code", s.handleBuggyCode)
	mux.HandleFunc("GET /api/runs", s.handleRuns)
	mux.HandleFunc("GET /api/runs/{id}/messages", s.handleRunMessages)
	if s.authEnabled() {
		mux.HandleFunc("POST /api/auth/login", s.handleLogin)
		mux.HandleFunc("POST /api/auth/refresh", s.handleRefresh)
		mux.HandleFunc("POST /api/auth/logout", s.handleLogout)
	}
	mux.Handle("GET /", http.FileServer(staticFiles()))
	return mux
}

func (s *Server) Start() error {
	if !s.cfg.Enabled {
		return nil
	}
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	srv := &http.Server{Addr: addr, Handler: s.Handler()}

	serve := srv.ListenAndServe
	switch s.cfg.TLS.Mode {
	case "self-signed":
		tlsCfg, err := selfSignedTLS(s.cfg.TLS.CacheDir)
		if err != nil {
			return fmt.Errorf("self-signed tls: %w", err)
		}
		srv.TLSConfig = tlsCfg
		serve = func() error { return srv.ListenAndServeTLS("", "") }
	case "manual":
		cert, key := s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile
		serve = func() error { return srv.ListenAndServeTLS(cert, key) }
	}

	go func() {
		if err := serve(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("webserver: serve failed", "addr", addr, "error", err)
		}
	}()
	s.logger.Info("webserver: listening", "addr", addr, "tls", s.cfg.TLS.Mode != "")
	return nil
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	if err := s.mgr.Start(); err != nil {
		if errors.Is(err, triage.ErrAlreadyRunning) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "already running"})
			return
		}
		s.logger.Error("webserver: start failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "started"})
}

func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request) {
	s.resolve(w, r, gate.Granted)
}

func (s *Server) handleReject(w http.ResponseWriter, r *http.Request) {
	s.resolve(w, r, gate.Rejected)
}

// resolve settles the pending gate. Calls after the gate is already
// terminal are idempotent and report the recorded decision.
func (s *Server) resolve(w http.ResponseWriter, r *http.Request, d gate.Decision) {
	g := s.mgr.Gate()
	if g.State() == gate.StateIdle {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "no approval pending"})
		return
	}
	actor := usernameFromContext(r.Context())
	if actor == "" {
		actor = s.mgr.Approver()
	}
	out, settled := g.Resolve(d, actor)
	if settled {
		s.logger.Info("webserver: approval resolved", "decision", string(out.Decision), "by", actor)
	}
	by := out.By
	if by == "" {
		by = "auto"
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status": string(out.Decision),
		"by":     by,
	})
}

func (s *Server) handleApprovalStatus(w http.ResponseWriter, r *http.Request) {
	pending, granted := s.mgr.Gate().Status()
	writeJSON(w, http.StatusOK, map[string]bool{
		"pending": pending,
		"granted": granted,
	})
}

func (s *Server) handleParticipants(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"participants": triage.Participants(s.mgr.Approver()),
	})
}

func (s *Server) handleRunbooks(w http.ResponseWriter, r *http.Request) {
	books, err := runbook.Load(s.cfg.RunbooksDir)
	if err != nil {
		s.logger.Error("webserver: load runbooks", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to load runbooks"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"runbooks": books})
}

func (s *Server) handleCurrentIncident(w http.ResponseWriter, r *http.Request) {
	inc := s.mgr.Current()
	if inc == nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "no incident"})
		return
	}
	writeJSON(w, http.StatusOK, inc)
}

func (s *Server) handleBuggyCode(w http.ResponseWriter, r *http.Request) {
	inc := s.mgr.Current()
	ws := s.mgr.Workspace()
	if inc != nil && ws != nil {
		if code, err := ws.Read(inc); err == nil {
			writeJSON(w, http.StatusOK, map[string]string{"code": code, "file": inc.FileName})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"code": "// No code available", "file": "unknown"})
}

type runEntry struct {
	ID        string `json:"id"`
	Ticket    string `json:"ticket"`
	Service   string `json:"service"`
	ErrorCode string `json:"error_code"`
	Status    string `json:"status"`
	StartedAt string `json:"started_at"`
	Age       string `json:"age"`
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeJSON(w, http.StatusOK, map[string]any{"runs": []runEntry{}})
		return
	}
	runs, err := s.store.LoadRuns(50)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	entries := make([]runEntry, 0, len(runs))
	for _, run := range runs {
		entries = append(entries, runEntry{
			ID:        run.ID,
			Ticket:    run.Ticket,
			Service:   run.Service,
			ErrorCode: run.ErrorCode,
			Status:    string(run.Status),
			StartedAt: run.StartedAt.UTC().Format("2006-01-02 15:04:05"),
			Age:       humanize.Time(run.StartedAt),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": entries})
}

func (s *Server) handleRunMessages(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeJSON(w, http.StatusOK, map[string]any{"messages": []db.RunMessage{}})
		return
	}
	id := r.PathValue("id")
	msgs, err := s.store.LoadRunMessages(id)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	out := make([]map[string]string, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, map[string]string{
			"agent":        m.Agent,
			"text":         m.Text,
			"message_type": m.Kind,
			"timestamp":    m.Ts.Format("15:04:05"),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": out})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
