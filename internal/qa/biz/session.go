package biz

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kart-io/anchora/pkg/cache"
	"github.com/kart-io/anchora/pkg/llm"
)

// Turn is one question/answer exchange in a conversation.
type Turn struct {
	Question string    `json:"question"`
	Answer   string    `json:"answer"`
	AskedAt  time.Time `json:"asked_at"`
}

// Session holds the history of one conversation.
type Session struct {
	mu    sync.Mutex
	id    string
	turns []Turn
}

// ID returns the conversation identifier.
func (s *Session) ID() string { return s.id }

// History returns a copy of the recorded turns, oldest first.
func (s *Session) History() []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Turn, len(s.turns))
	copy(out, s.turns)
	return out
}

// Messages renders the history as chat messages for multi-turn context.
func (s *Session) Messages() []llm.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	msgs := make([]llm.Message, 0, len(s.turns)*2)
	for _, t := range s.turns {
		msgs = append(msgs, llm.Message{Role: llm.RoleUser, Content: t.Question})
		msgs = append(msgs, llm.Message{Role: llm.RoleAssistant, Content: t.Answer})
	}
	return msgs
}

func (s *Session) record(turn Turn, maxHistory int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns = append(s.turns, turn)
	if maxHistory > 0 && len(s.turns) > maxHistory {
		s.turns = s.turns[len(s.turns)-maxHistory:]
	}
}

// SessionManager tracks conversations in a TTL cache. Idle sessions
// expire; active ones have their lifetime extended on every access.
type SessionManager struct {
	sessions   *cache.TTLCache[string, *Session]
	maxHistory int
}

// NewSessionManager creates a session manager with the given idle TTL
// and per-session history bound.
func NewSessionManager(ttl time.Duration, maxHistory int) *SessionManager {
	return &SessionManager{
		sessions:   cache.NewTTLCache[string, *Session](ttl, time.Minute),
		maxHistory: maxHistory,
	}
}

// GetOrCreate returns the session for id, creating a fresh one when the
// id is empty or unknown. Unknown ids happen after expiry; starting a
// new conversation beats failing the question.
func (m *SessionManager) GetOrCreate(id string) *Session {
	if id != "" {
		if s, ok := m.sessions.Get(id); ok {
			m.sessions.Touch(id)
			return s
		}
	}

	if id == "" {
		id = uuid.NewString()
	}
	s := &Session{id: id}
	m.sessions.Set(id, s)
	return s
}

// Record appends a turn to the session and refreshes its TTL.
func (m *SessionManager) Record(s *Session, question, answer string) {
	s.record(Turn{Question: question, Answer: answer, AskedAt: time.Now()}, m.maxHistory)
	m.sessions.Touch(s.ID())
}

// Close stops the cache sweeper.
func (m *SessionManager) Close() {
	m.sessions.Close()
}
