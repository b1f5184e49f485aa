package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"pkt.systems/todosync/core"
	"pkt.systems/todosync/internal/authsession"
	"pkt.systems/todosync/internal/logx"
	"pkt.systems/todosync/schema"
)

// Authenticator runs the interactive sign-in flow and owns persisted tokens.
type Authenticator interface {
	AuthCodeURL(ctx context.Context, state string) (string, error)
	Redeem(ctx context.Context, code string) (schema.Account, error)
	Account(ctx context.Context, identity schema.Identity) (schema.Account, error)
	SignOut(ctx context.Context, identity schema.Identity) error
}

// ClientEvicter drops cached remote clients for an identity.
type ClientEvicter interface {
	Evict(identity schema.Identity)
}

// Server serves the sign-in flow and the todo API.
type Server struct {
	cfg      Config
	service  core.Service
	auth     Authenticator
	clients  ClientEvicter
	sessions *sessionStore
	mount    mount
}

var _ authsession.Challenger = (*Server)(nil)

// NewServer constructs an HTTP server.
func NewServer(cfg Config, service core.Service, auth Authenticator, clients ClientEvicter) *Server {
	ttl := time.Duration(cfg.SessionTTLHours) * time.Hour
	if ttl <= 0 {
		ttl = 720 * time.Hour
	}
	if strings.TrimSpace(cfg.SessionCookie) == "" {
		cfg.SessionCookie = "todosync_session"
	}
	return &Server{
		cfg:      cfg,
		service:  service,
		auth:     auth,
		clients:  clients,
		sessions: newSessionStore(ttl, cfg.SessionPath),
		mount:    newMount(cfg.BaseURL, cfg.BasePath),
	}
}

// Challenge implements authsession.Challenger. The identity's remote client
// is dropped and its browser sessions must sign in again.
func (s *Server) Challenge(ctx context.Context, identity schema.Identity) {
	if s.clients != nil {
		s.clients.Evict(identity)
	}
	marked := s.sessions.challenge(identity)
	logx.WithUser(ctx, identity).Info("http sessions challenged", "sessions", marked)
}

// Handler returns an http.Handler for the server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)

	mux.HandleFunc("/auth/login", s.handleLogin)
	mux.HandleFunc("/auth/callback", s.handleCallback)
	mux.HandleFunc("/auth/logout", s.handleLogout)
	mux.HandleFunc("/api/me", s.requireSession(s.handleMe))
	mux.HandleFunc("/api/todos", s.requireSession(s.handleTodos))
	mux.HandleFunc("/api/todos/update", s.requireSession(s.handleUpdate))
	mux.HandleFunc("/api/todos/delete", s.requireSession(s.handleDelete))

	return s.mount.wrap(withRequestLogging(mux, s.lookupSession))
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	data := s.mount.index(indexHTML)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(data)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	log := logx.Ctx(r.Context()).With("remote", clientIP(r))
	state := s.sessions.beginLogin()
	target, err := s.auth.AuthCodeURL(r.Context(), state)
	if err != nil {
		log.Warn("http login redirect failed", "err", err)
		writeError(w, http.StatusBadGateway, errors.New("identity provider unavailable"))
		return
	}
	log.Debug("http login redirect")
	http.Redirect(w, r, target, http.StatusFound)
}

func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	log := logx.Ctx(r.Context()).With("remote", clientIP(r))
	query := r.URL.Query()
	if providerErr := query.Get("error"); providerErr != "" {
		log.Warn("http login rejected", "error", providerErr, "description", query.Get("error_description"))
		writeError(w, http.StatusUnauthorized, errors.New("sign-in was not completed"))
		return
	}
	if !s.sessions.finishLogin(query.Get("state")) {
		log.Warn("http login state mismatch")
		writeError(w, http.StatusBadRequest, errors.New("invalid login state"))
		return
	}
	account, err := s.auth.Redeem(r.Context(), query.Get("code"))
	if err != nil {
		log.Warn("http login failed", "err", err)
		writeError(w, statusForError(err), publicError(err))
		return
	}
	token, sess := s.sessions.create(account.Identity)
	http.SetCookie(w, &http.Cookie{
		Name:     s.cfg.SessionCookie,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Expires:  sess.expiresAt,
	})
	log.With("user", account.Identity, "http_session", sess.id).Info("http login ok")
	http.Redirect(w, r, s.mount.home(), http.StatusFound)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	token := s.sessionToken(r)
	log := logx.Ctx(r.Context()).With("remote", clientIP(r))
	if token != "" {
		if entry, ok := s.sessions.get(token); ok {
			log = log.With("user", entry.identity, "http_session", entry.id)
			if s.clients != nil {
				s.clients.Evict(entry.identity)
			}
			if err := s.auth.SignOut(r.Context(), entry.identity); err != nil {
				log.Warn("http logout token clear failed", "err", err)
			}
		}
		s.sessions.delete(token)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     s.cfg.SessionCookie,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
	})
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	log.Info("http logout")
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request, identity schema.Identity) {
	account, err := s.auth.Account(r.Context(), identity)
	if err != nil {
		logx.Ctx(r.Context()).Warn("http me failed", "err", err)
		account = schema.Account{Identity: identity}
	}
	writeJSON(w, http.StatusOK, map[string]any{"identity": account.Identity, "username": account.Username})
}

type itemPayload struct {
	Task string `json:"task"`
	Done bool   `json:"done"`
}

type listPayload struct {
	Items schema.TodoList `json:"items"`
}

func (s *Server) handleTodos(w http.ResponseWriter, r *http.Request, identity schema.Identity) {
	switch r.Method {
	case http.MethodGet:
		resp, err := s.service.FetchList(r.Context(), schema.FetchListRequest{Identity: identity})
		if err != nil {
			s.writeServiceError(w, r, "http todos fetch failed", err)
			return
		}
		writeJSON(w, http.StatusOK, listPayload{Items: resp.Items})
	case http.MethodPost:
		var payload itemPayload
		if err := decodeJSON(r.Body, &payload); err != nil {
			logx.Ctx(r.Context()).Warn("http todos decode failed", "err", err)
			writeError(w, http.StatusBadRequest, err)
			return
		}
		resp, err := s.service.AddItem(r.Context(), schema.AddItemRequest{
			Identity: identity,
			Item:     schema.TodoItem{Task: payload.Task, Done: payload.Done},
		})
		if err != nil {
			s.writeServiceError(w, r, "http todos add failed", err)
			return
		}
		logx.Ctx(r.Context()).Info("http todos add ok", "items", len(resp.Items))
		writeJSON(w, http.StatusOK, listPayload{Items: resp.Items})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request, identity schema.Identity) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var payload itemPayload
	if err := decodeJSON(r.Body, &payload); err != nil {
		logx.Ctx(r.Context()).Warn("http todos decode failed", "err", err)
		writeError(w, http.StatusBadRequest, err)
		return
	}
	resp, err := s.service.UpdateItem(r.Context(), schema.UpdateItemRequest{
		Identity: identity,
		Item:     schema.TodoItem{Task: payload.Task, Done: payload.Done},
	})
	if err != nil {
		s.writeServiceError(w, r, "http todos update failed", err)
		return
	}
	logx.Ctx(r.Context()).Info("http todos update ok", "done", payload.Done)
	writeJSON(w, http.StatusOK, listPayload{Items: resp.Items})
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request, identity schema.Identity) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var payload itemPayload
	if err := decodeJSON(r.Body, &payload); err != nil {
		logx.Ctx(r.Context()).Warn("http todos decode failed", "err", err)
		writeError(w, http.StatusBadRequest, err)
		return
	}
	resp, err := s.service.DeleteItem(r.Context(), schema.DeleteItemRequest{
		Identity: identity,
		Item:     schema.TodoItem{Task: payload.Task, Done: payload.Done},
	})
	if err != nil {
		s.writeServiceError(w, r, "http todos delete failed", err)
		return
	}
	logx.Ctx(r.Context()).Info("http todos delete ok", "items", len(resp.Items))
	writeJSON(w, http.StatusOK, listPayload{Items: resp.Items})
}

func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	logx.Ctx(r.Context()).Warn(msg, "err", err)
	status := statusForError(err)
	if status == http.StatusUnauthorized {
		s.writeAuthRequired(w)
		return
	}
	writeError(w, status, publicError(err))
}

func (s *Server) writeAuthRequired(w http.ResponseWriter) {
	writeJSON(w, http.StatusUnauthorized, map[string]any{
		"error":     "Authentication is required.",
		"login_url": s.mount.login(),
	})
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, schema.ErrAuthenticationRequired):
		return http.StatusUnauthorized
	case errors.Is(err, schema.ErrTodoNotFound):
		return http.StatusNotFound
	case errors.Is(err, schema.ErrInvalidRequest), errors.Is(err, schema.ErrInvalidIdentity):
		return http.StatusBadRequest
	default:
		return http.StatusBadGateway
	}
}

// publicError hides remote failure details from clients.
func publicError(err error) error {
	switch statusForError(err) {
	case http.StatusBadGateway:
		return errors.New("todo synchronization failed")
	case http.StatusUnauthorized:
		return schema.ErrAuthenticationRequired
	default:
		return err
	}
}

func (s *Server) requireSession(next func(http.ResponseWriter, *http.Request, schema.Identity)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := logx.Ctx(r.Context()).With("remote", clientIP(r))
		token := s.sessionToken(r)
		if token == "" {
			log.Warn("http session missing")
			s.writeAuthRequired(w)
			return
		}
		entry, ok := s.sessions.get(token)
		if !ok {
			log.Warn("http session invalid")
			s.writeAuthRequired(w)
			return
		}
		log = log.With("user", entry.identity, "http_session", entry.id)
		if entry.challenged {
			log.Info("http session challenged")
			s.writeAuthRequired(w)
			return
		}
		ctx := logx.ContextWithUserLogger(r.Context(), log, entry.identity)
		next(w, r.WithContext(ctx), entry.identity)
	}
}

func (s *Server) sessionToken(r *http.Request) string {
	cookie, err := r.Cookie(s.cfg.SessionCookie)
	if err != nil {
		return ""
	}
	return cookie.Value
}

func (s *Server) lookupSession(r *http.Request) (schema.Identity, string) {
	if s == nil || r == nil {
		return "", ""
	}
	token := s.sessionToken(r)
	if token == "" {
		return "", ""
	}
	entry, ok := s.sessions.get(token)
	if !ok {
		return "", ""
	}
	return entry.identity, entry.id
}
