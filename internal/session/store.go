package session

import (
	"sort"
	"sync"

	"cardtable/backend/internal/deck"
)

// CommitFunc observes an accepted transition. It runs while the session lock is still held, so
// it sees the post-mutation state before any later action and must not call back into the Store.
// s must be treated as read-only.
type CommitFunc func(s *Session, out Outcome)

type entry struct {
	mu      sync.Mutex
	session *Session
	closed  bool
}

// Store owns every live session. Mutations of one session are linearized by that session's
// lock; different sessions proceed independently.
type Store struct {
	mu       sync.RWMutex
	entries  map[string]*entry
	shuffler *deck.Shuffler
}

// NewStore creates an empty Store that shuffles with shuffler.
func NewStore(shuffler *deck.Shuffler) *Store {
	return &Store{
		entries:  make(map[string]*entry),
		shuffler: shuffler,
	}
}

// Create starts a session named name, shuffles setup.Cards into its draw pile and seats player
// as host.
func (st *Store) Create(name string, setup Setup, player string, commit CommitFunc) error {
	if name == "" {
		return reject(CodeInvalidAction, "session name is required")
	}
	if player == "" {
		return reject(CodeInvalidAction, "player name is required")
	}

	s := New(name, setup, st.shuffler.Shuffle(setup.Cards))
	out, err := Apply(s, Action{Kind: KindJoin, Player: player}, st.shuffler)
	if err != nil {
		return err
	}
	out.Created = true

	e := &entry{session: s}
	e.mu.Lock()
	defer e.mu.Unlock()

	st.mu.Lock()
	if _, ok := st.entries[name]; ok {
		st.mu.Unlock()
		return reject(CodeAlreadyExists, "session %q already exists", name)
	}
	st.entries[name] = e
	st.mu.Unlock()

	if commit != nil {
		commit(s, out)
	}
	return nil
}

// Join seats player in an existing session.
func (st *Store) Join(name, player string, commit CommitFunc) error {
	_, err := st.Apply(name, Action{Kind: KindJoin, Player: player}, commit)
	return err
}

// Leave removes player. When the session becomes empty it is destroyed and destroyed is true.
func (st *Store) Leave(name, player string, commit CommitFunc) (destroyed bool, err error) {
	out, err := st.Apply(name, Action{Kind: KindLeave, Player: player}, commit)
	return out.Destroyed, err
}

// Apply runs a against the named session inside its critical section.
func (st *Store) Apply(name string, a Action, commit CommitFunc) (Outcome, error) {
	return st.ApplyChecked(name, a, nil, commit)
}

// ApplyChecked is Apply with an extra precondition evaluated under the session lock.
// A non-nil error from check aborts the action unchanged.
func (st *Store) ApplyChecked(name string, a Action, check func(s *Session) error, commit CommitFunc) (Outcome, error) {
	e, err := st.lock(name)
	if err != nil {
		return Outcome{}, err
	}
	defer e.mu.Unlock()

	if check != nil {
		if err := check(e.session); err != nil {
			return Outcome{}, err
		}
	}
	out, err := Apply(e.session, a, st.shuffler)
	if err != nil {
		return Outcome{}, err
	}
	if out.Destroyed {
		e.closed = true
		st.mu.Lock()
		if st.entries[name] == e {
			delete(st.entries, name)
		}
		st.mu.Unlock()
	}
	if commit != nil {
		commit(e.session, out)
	}
	return out, nil
}

// Read calls fn with the named session under its lock. fn must not mutate the session.
func (st *Store) Read(name string, fn func(s *Session)) error {
	e, err := st.lock(name)
	if err != nil {
		return err
	}
	defer e.mu.Unlock()
	fn(e.session)
	return nil
}

// Snapshot projects the named session for forPlayer.
func (st *Store) Snapshot(name, forPlayer string) (PublicSession, error) {
	var view PublicSession
	err := st.Read(name, func(s *Session) {
		view = Project(s, forPlayer)
	})
	return view, err
}

// Get summarizes one session.
func (st *Store) Get(name string) (Summary, error) {
	var sum Summary
	err := st.Read(name, func(s *Session) {
		sum = s.Summarize()
	})
	return sum, err
}

// List summarizes all live sessions ordered by name.
func (st *Store) List() []Summary {
	st.mu.RLock()
	names := make([]string, 0, len(st.entries))
	for name := range st.entries {
		names = append(names, name)
	}
	st.mu.RUnlock()
	sort.Strings(names)

	out := make([]Summary, 0, len(names))
	for _, name := range names {
		// Sessions destroyed since the names were collected are skipped.
		if sum, err := st.Get(name); err == nil {
			out = append(out, sum)
		}
	}
	return out
}

func (st *Store) lock(name string) (*entry, error) {
	st.mu.RLock()
	e, ok := st.entries[name]
	st.mu.RUnlock()
	if !ok {
		return nil, reject(CodeNotFound, "session %q not found", name)
	}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil, reject(CodeNotFound, "session %q not found", name)
	}
	return e, nil
}
