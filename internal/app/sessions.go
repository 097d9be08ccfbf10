// internal/app/sessions.go
package app

import (
	"context"
	"sync"

	"intake-bot/internal/common/metrics"
	intakewizard "intake-bot/internal/workers/application/intake-wizard"

	"github.com/bwmarrin/discordgo"
)

// session is one applicant's wizard. mu serializes every event for it.
type session struct {
	id        string
	userID    string
	channelID string

	mu      sync.Mutex
	machine *intakewizard.Machine
	// last is the newest interaction from the owner; its token edits the
	// wizard message and carries followups.
	last *discordgo.Interaction

	ctx    context.Context
	cancel context.CancelFunc
}

func newSession(id, userID, channelID string, m *intakewizard.Machine, origin *discordgo.Interaction) *session {
	ctx, cancel := context.WithCancel(context.Background())
	return &session{
		id:        id,
		userID:    userID,
		channelID: channelID,
		machine:   m,
		last:      origin,
		ctx:       ctx,
		cancel:    cancel,
	}
}

func (s *session) lastInteraction() *discordgo.Interaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// SessionRegistry holds at most one live session per user.
type SessionRegistry struct {
	mu     sync.Mutex
	byUser map[string]*session
	byID   map[string]*session
}

func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{
		byUser: make(map[string]*session),
		byID:   make(map[string]*session),
	}
}

// start registers s and cancels whatever session the user had before.
func (r *SessionRegistry) start(s *session) *session {
	r.mu.Lock()
	defer r.mu.Unlock()

	old := r.byUser[s.userID]
	if old != nil {
		delete(r.byID, old.id)
		old.cancel()
	}
	r.byUser[s.userID] = s
	r.byID[s.id] = s
	metrics.SessionsActive.Set(float64(len(r.byUser)))
	return old
}

func (r *SessionRegistry) get(id string) (*session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.byID[id]
	return s, ok
}

// current reports whether s is still the user's live session.
func (r *SessionRegistry) current(s *session) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.byUser[s.userID] == s
}

func (r *SessionRegistry) end(s *session) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.byUser[s.userID] == s {
		delete(r.byUser, s.userID)
	}
	delete(r.byID, s.id)
	s.cancel()
	metrics.SessionsActive.Set(float64(len(r.byUser)))
}

// Len is the number of live sessions.
func (r *SessionRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byUser)
}
