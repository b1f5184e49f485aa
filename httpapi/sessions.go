package httpapi

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"pkt.systems/todosync/internal/logx"
	"pkt.systems/todosync/schema"
)

const pendingLoginTTL = 10 * time.Minute

type session struct {
	id         string
	identity   schema.Identity
	expiresAt  time.Time
	challenged bool
}

type sessionStore struct {
	mu      sync.Mutex
	ttl     time.Duration
	items   map[string]session
	pending map[string]time.Time
	path    string
}

func newSessionStore(ttl time.Duration, path string) *sessionStore {
	store := &sessionStore{
		ttl:     ttl,
		items:   make(map[string]session),
		pending: make(map[string]time.Time),
		path:    strings.TrimSpace(path),
	}
	if store.path != "" {
		if err := store.load(); err != nil {
			logx.Ctx(context.Background()).Warn("session store load failed", "err", err)
		}
	}
	return store
}

func (s *sessionStore) create(identity schema.Identity) (string, session) {
	token := randomToken(32)
	entry := session{id: randomToken(12), identity: identity, expiresAt: time.Now().Add(s.ttl)}
	log := logx.WithUser(context.Background(), identity).With("http_session", entry.id)
	s.mu.Lock()
	s.items[token] = entry
	s.mu.Unlock()
	s.persist()
	log.Info("session created", "expires", entry.expiresAt.Format(time.RFC3339))
	return token, entry
}

func (s *sessionStore) get(token string) (session, bool) {
	s.mu.Lock()
	entry, ok := s.items[token]
	if !ok {
		s.mu.Unlock()
		return session{}, false
	}
	if time.Now().After(entry.expiresAt) {
		delete(s.items, token)
		s.mu.Unlock()
		logx.WithUser(context.Background(), entry.identity).With("http_session", entry.id).Info("session expired")
		s.persist()
		return session{}, false
	}
	s.mu.Unlock()
	return entry, true
}

func (s *sessionStore) delete(token string) {
	s.mu.Lock()
	entry, ok := s.items[token]
	if ok {
		delete(s.items, token)
	}
	s.mu.Unlock()
	if ok {
		logx.WithUser(context.Background(), entry.identity).With("http_session", entry.id).Info("session deleted")
		s.persist()
	}
}

// challenge marks every session of identity as requiring a new sign-in.
func (s *sessionStore) challenge(identity schema.Identity) int {
	s.mu.Lock()
	marked := 0
	for token, entry := range s.items {
		if entry.identity != identity || entry.challenged {
			continue
		}
		entry.challenged = true
		s.items[token] = entry
		marked++
	}
	s.mu.Unlock()
	if marked > 0 {
		s.persist()
	}
	return marked
}

// beginLogin records a state nonce for a pending authorization-code flow.
func (s *sessionStore) beginLogin() string {
	state := randomToken(24)
	now := time.Now()
	s.mu.Lock()
	for key, expires := range s.pending {
		if now.After(expires) {
			delete(s.pending, key)
		}
	}
	s.pending[state] = now.Add(pendingLoginTTL)
	s.mu.Unlock()
	return state
}

// finishLogin consumes a state nonce; it reports false for unknown or
// expired nonces.
func (s *sessionStore) finishLogin(state string) bool {
	if state == "" {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	expires, ok := s.pending[state]
	delete(s.pending, state)
	return ok && time.Now().Before(expires)
}

func randomToken(size int) string {
	buf := make([]byte, size)
	if _, err := rand.Read(buf); err != nil {
		return ""
	}
	return base64.RawURLEncoding.EncodeToString(buf)
}

type sessionRecord struct {
	Token      string    `json:"token"`
	SessionID  string    `json:"session_id"`
	Identity   string    `json:"identity"`
	ExpiresAt  time.Time `json:"expires_at"`
	Challenged bool      `json:"challenged,omitempty"`
}

type sessionFile struct {
	Version  int             `json:"version"`
	Sessions []sessionRecord `json:"sessions"`
}

func (s *sessionStore) load() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	var file sessionFile
	if err := json.Unmarshal(data, &file); err != nil {
		return err
	}
	now := time.Now()
	entries := make(map[string]session)
	for _, record := range file.Sessions {
		if strings.TrimSpace(record.Token) == "" {
			continue
		}
		identity := schema.Identity(record.Identity)
		if schema.ValidateIdentity(identity) != nil {
			continue
		}
		if now.After(record.ExpiresAt) {
			continue
		}
		sessionID := record.SessionID
		if strings.TrimSpace(sessionID) == "" {
			sessionID = randomToken(12)
		}
		entries[record.Token] = session{
			id:         sessionID,
			identity:   identity,
			expiresAt:  record.ExpiresAt,
			challenged: record.Challenged,
		}
	}
	s.mu.Lock()
	s.items = entries
	s.mu.Unlock()
	if len(file.Sessions) != len(entries) {
		s.persist()
	}
	logx.Ctx(context.Background()).Info("session store loaded", "sessions", len(entries))
	return nil
}

func (s *sessionStore) persist() {
	if s.path == "" {
		return
	}
	records := s.snapshot()
	if err := writeSessionFile(s.path, records); err != nil {
		logx.Ctx(context.Background()).Warn("session store save failed", "err", err)
	}
}

func (s *sessionStore) snapshot() []sessionRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	records := make([]sessionRecord, 0, len(s.items))
	for token, entry := range s.items {
		records = append(records, sessionRecord{
			Token:      token,
			SessionID:  entry.id,
			Identity:   string(entry.identity),
			ExpiresAt:  entry.expiresAt,
			Challenged: entry.challenged,
		})
	}
	return records
}

func writeSessionFile(path string, records []sessionRecord) error {
	payload := sessionFile{Version: 1, Sessions: records}
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "sessions-*.json")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o600); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}
