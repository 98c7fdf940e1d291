// Package session keeps in-progress upload sessions in memory, one per owner.
// Sessions are never persisted; a restart drops them.
package session

import (
	"sync"
	"time"

	"github.com/maneesh/mediadrop/internal/models"
)

// Session accumulates attachments for one owner until commit or abandon.
type Session struct {
	Owner     int64
	Token     string
	StartedAt time.Time

	mu          sync.Mutex
	attachments []models.Attachment
}

// Append adds att and returns the new attachment count.
func (s *Session) Append(att models.Attachment) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attachments = append(s.attachments, att)
	return len(s.attachments)
}

// Attachments returns a copy of the accumulated attachments in arrival order.
func (s *Session) Attachments() []models.Attachment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return models.CloneAttachments(s.attachments)
}

// Len returns the number of accumulated attachments
func (s *Session) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.attachments)
}

// Store maps owners to their current session.
type Store struct {
	mu       sync.RWMutex
	sessions map[int64]*Session
	now      func() time.Time
}

func NewStore() *Store {
	return &Store{
		sessions: make(map[int64]*Session),
		now:      time.Now,
	}
}

// Begin starts a fresh session for owner. Any previous session is dropped
// without being persisted; replaced reports whether one existed.
func (st *Store) Begin(owner int64, token string) (s *Session, replaced bool) {
	s = &Session{
		Owner:     owner,
		Token:     token,
		StartedAt: st.now(),
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	_, replaced = st.sessions[owner]
	st.sessions[owner] = s
	return s, replaced
}

// Get returns the owner's current session.
func (st *Store) Get(owner int64) (*Session, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	s, ok := st.sessions[owner]
	return s, ok
}

// Remove deletes s only while it is still the owner's current session, so a
// commit finishing after a newer Begin leaves the newer session alone.
func (st *Store) Remove(owner int64, s *Session) bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	if cur, ok := st.sessions[owner]; ok && cur == s {
		delete(st.sessions, owner)
		return true
	}
	return false
}

// Restore puts s back as the owner's session unless a newer one was begun
// meanwhile. It reports whether s is current again.
func (st *Store) Restore(owner int64, s *Session) bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	if _, ok := st.sessions[owner]; ok {
		return false
	}
	st.sessions[owner] = s
	return true
}

// Abandon drops the owner's session, if any.
func (st *Store) Abandon(owner int64) bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	if _, ok := st.sessions[owner]; !ok {
		return false
	}
	delete(st.sessions, owner)
	return true
}

// Len returns the number of live sessions.
func (st *Store) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.sessions)
}
