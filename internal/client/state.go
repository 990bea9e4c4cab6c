// Package client keeps a local copy of the sessions a connection plays in, reconciled from
// server frames, and offers a websocket connection that submits actions.
package client

import (
	"sort"
	"sync"

	"cardtable/backend/internal/protocol"
	"cardtable/backend/internal/session"
)

// Notifier receives the frames that describe what happened without carrying state.
type Notifier interface {
	Lobby(protocol.LobbyEvent)
	Game(protocol.GameEvent)
	Error(protocol.ErrorEvent)
}

// State is the reconciled view of every session this client is seated in.
// Snapshots replace local state wholesale; nothing is patched locally.
type State struct {
	mu       sync.RWMutex
	sessions map[string]session.PublicSession
	notify   Notifier
}

// NewState creates an empty State. notify may be nil.
func NewState(notify Notifier) *State {
	if notify == nil {
		notify = nopNotifier{}
	}
	return &State{
		sessions: make(map[string]session.PublicSession),
		notify:   notify,
	}
}

// Apply reconciles one server frame and reports whether local state changed.
func (s *State) Apply(msg protocol.Message) bool {
	switch m := msg.(type) {
	case protocol.SyncEvent:
		return s.replace(m.Session)
	case protocol.LobbyEvent:
		changed := false
		if m.Action == string(session.KindLeave) && s.isMe(m.Session, m.Player) {
			s.forget(m.Session)
			changed = true
		}
		s.notify.Lobby(m)
		return changed
	case protocol.GameEvent:
		s.notify.Game(m)
	case protocol.ErrorEvent:
		s.notify.Error(m)
	}
	// SESSION_EVENT and PLAYER_EVENT only travel to the server.
	return false
}

// replace installs view unless an equal or newer version is already held.
func (s *State) replace(view session.PublicSession) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.sessions[view.Name]; ok && view.Version <= cur.Version {
		return false
	}
	s.sessions[view.Name] = view
	return true
}

func (s *State) isMe(sessionName, player string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cur, ok := s.sessions[sessionName]
	return ok && cur.Me != nil && cur.Me.Name == player
}

func (s *State) forget(sessionName string) {
	s.mu.Lock()
	delete(s.sessions, sessionName)
	s.mu.Unlock()
}

// Session returns the last snapshot of name.
func (s *State) Session(name string) (session.PublicSession, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	view, ok := s.sessions[name]
	return view, ok
}

// Sessions lists the names of the sessions held, sorted.
func (s *State) Sessions() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.sessions))
	for name := range s.sessions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

type nopNotifier struct{}

func (nopNotifier) Lobby(protocol.LobbyEvent) {}
func (nopNotifier) Game(protocol.GameEvent)   {}
func (nopNotifier) Error(protocol.ErrorEvent) {}
