package httpapi

import (
	"path/filepath"
	"testing"
	"time"
)

func TestSessionStoreCreateGetDelete(t *testing.T) {
	store := newSessionStore(time.Hour, "")
	token, sess := store.create("alice")
	if token == "" {
		t.Fatalf("expected token")
	}
	if sess.identity != "alice" {
		t.Fatalf("unexpected identity: %q", sess.identity)
	}
	if _, ok := store.get(token); !ok {
		t.Fatalf("expected session to be found")
	}
	store.delete(token)
	if _, ok := store.get(token); ok {
		t.Fatalf("expected session to be deleted")
	}
}

func TestSessionStoreExpiration(t *testing.T) {
	store := newSessionStore(5*time.Millisecond, "")
	token, _ := store.create("alice")
	time.Sleep(10 * time.Millisecond)
	if _, ok := store.get(token); ok {
		t.Fatalf("expected expired session")
	}
}

func TestSessionStoreChallenge(t *testing.T) {
	store := newSessionStore(time.Hour, "")
	a1, _ := store.create("alice")
	a2, _ := store.create("alice")
	b, _ := store.create("bob")
	if marked := store.challenge("alice"); marked != 2 {
		t.Fatalf("expected two sessions marked, got %d", marked)
	}
	for _, token := range []string{a1, a2} {
		entry, ok := store.get(token)
		if !ok || !entry.challenged {
			t.Fatalf("expected challenged alice session")
		}
	}
	if entry, _ := store.get(b); entry.challenged {
		t.Fatalf("bob must not be challenged")
	}
	if marked := store.challenge("alice"); marked != 0 {
		t.Fatalf("expected no new marks, got %d", marked)
	}
}

func TestSessionStorePendingLogin(t *testing.T) {
	store := newSessionStore(time.Hour, "")
	state := store.beginLogin()
	if state == "" {
		t.Fatalf("expected state nonce")
	}
	if !store.finishLogin(state) {
		t.Fatalf("expected nonce to be accepted")
	}
	if store.finishLogin(state) {
		t.Fatalf("nonce must be single use")
	}
	if store.finishLogin("") || store.finishLogin("forged") {
		t.Fatalf("unknown nonce accepted")
	}
}

func TestSessionStorePersistsSessions(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sessions.json")
	store := newSessionStore(time.Hour, path)
	token, _ := store.create("alice")
	store.challenge("alice")

	loaded := newSessionStore(time.Hour, path)
	entry, ok := loaded.get(token)
	if !ok {
		t.Fatalf("expected session to be loaded")
	}
	if !entry.challenged || entry.identity != "alice" {
		t.Fatalf("unexpected loaded session: %+v", entry)
	}
}

func TestSessionStorePersistsExpiration(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sessions.json")
	store := newSessionStore(5*time.Millisecond, path)
	token, _ := store.create("alice")
	time.Sleep(10 * time.Millisecond)
	if _, ok := store.get(token); ok {
		t.Fatalf("expected session to expire")
	}
	loaded := newSessionStore(time.Hour, path)
	if _, ok := loaded.get(token); ok {
		t.Fatalf("expected expired session to be removed from persistence")
	}
}
