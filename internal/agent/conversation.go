package agent

import (
	"sort"
	"sync"
	"time"

	"github.com/IcensRAGHomework/rag1-Kllin0219/internal/llm"
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type Session struct {
	ID        string    `json:"id"`
	Messages  []Message `json:"messages"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SessionStore keeps chat history per session id for the life of the process.
type SessionStore struct {
	sessions map[string]*Session
	locks    map[string]*sessionLock
	mu       sync.RWMutex
	now      func() time.Time
}

// sessionLock is dropped from the store once nobody holds or waits on it.
type sessionLock struct {
	sync.Mutex
	refs int
}

func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[string]*Session),
		locks:    make(map[string]*sessionLock),
		now:      time.Now,
	}
}

// Lock gives the caller exclusive use of a session until unlock is called.
// History reads and appends do not take it; it only orders whole exchanges.
func (s *SessionStore) Lock(id string) (unlock func()) {
	s.mu.Lock()
	l, ok := s.locks[id]
	if !ok {
		l = &sessionLock{}
		s.locks[id] = l
	}
	l.refs++
	s.mu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()

		s.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(s.locks, id)
		}
		s.mu.Unlock()
	}
}

func (s *SessionStore) createLocked(id string) *Session {
	now := s.now()
	sess := &Session{
		ID:        id,
		Messages:  make([]Message, 0),
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.sessions[id] = sess
	return sess
}

// Get returns a copy of the session, or nil.
func (s *SessionStore) Get(id string) *Session {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil
	}
	cp := *sess
	cp.Messages = append([]Message(nil), sess.Messages...)
	return &cp
}

// History returns the ordered messages of a session; unknown ids have none.
func (s *SessionStore) History(id string) []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil
	}
	return append([]Message(nil), sess.Messages...)
}

// Append adds messages to a session, creating it on first use.
func (s *SessionStore) Append(id string, messages ...Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		sess = s.createLocked(id)
	}
	sess.Messages = append(sess.Messages, messages...)
	sess.UpdatedAt = s.now()
}

func (s *SessionStore) Clear(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess, ok := s.sessions[id]; ok {
		sess.Messages = make([]Message, 0)
		sess.UpdatedAt = s.now()
	}
}

func (s *SessionStore) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.sessions[id]
	delete(s.sessions, id)
	return ok
}

func (s *SessionStore) List() []*Session {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := make([]*Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		cp := *sess
		cp.Messages = append([]Message(nil), sess.Messages...)
		list = append(list, &cp)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	return list
}

// Cleanup drops sessions idle for longer than maxAge and returns how many.
func (s *SessionStore) Cleanup(maxAge time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-maxAge)
	removed := 0
	for id, sess := range s.sessions {
		if sess.UpdatedAt.Before(cutoff) {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}

func toLLMMessages(history []Message) []llm.Message {
	messages := make([]llm.Message, 0, len(history)+1)
	for _, msg := range history {
		messages = append(messages, llm.Message{
			Role:    msg.Role,
			Content: msg.Content,
		})
	}
	return messages
}
