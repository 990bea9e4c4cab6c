package hub

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"cardtable/backend/internal/protocol"
	"cardtable/backend/internal/session"

	"github.com/sirupsen/logrus"
)

// Catalog resolves a game name into what a new session needs.
type Catalog interface {
	Setup(ctx context.Context, game string) (session.Setup, error)
}

// Directory mirrors live session summaries outside the process.
type Directory interface {
	Publish(sum session.Summary)
	Remove(name string)
}

// ErrGameNotFound should be wrapped by Catalog implementations for unknown games.
var ErrGameNotFound = errors.New("game not found")

// errRebound marks a seat that moved to a newer connection before the old one was released.
var errRebound = errors.New("seat rebound")

// Options configures a Hub.
type Options struct {
	// SendBuffer is the per-connection queue length.
	SendBuffer int
	Logger     *logrus.Logger
}

// Hub routes inbound frames to their session and fans the results out to every connection
// seated in that session.
type Hub struct {
	store     *session.Store
	catalog   Catalog
	directory Directory
	log       *logrus.Logger
	buffer    int

	// rooms maps session name -> player -> connection. Guarded by mu; only written from
	// inside a session's critical section.
	rooms map[string]map[string]*Client
	mu    sync.RWMutex
}

// New creates a Hub over store.
func New(store *session.Store, catalog Catalog, directory Directory, opts Options) *Hub {
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = 32
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	if directory == nil {
		directory = nopDirectory{}
	}
	return &Hub{
		store:     store,
		catalog:   catalog,
		directory: directory,
		log:       opts.Logger,
		buffer:    opts.SendBuffer,
		rooms:     make(map[string]map[string]*Client),
	}
}

// Store exposes the session store for read-only listings.
func (h *Hub) Store() *session.Store {
	return h.store
}

// Connect registers a new connection.
func (h *Hub) Connect() *Client {
	c := newClient(h.buffer)
	h.log.WithField("client", c.ID).Debug("client connected")
	return c
}

// Disconnect is an implicit leave from every session the client occupies.
func (h *Hub) Disconnect(c *Client) {
	if !c.shutdown() {
		return
	}
	for name, player := range c.Seats() {
		leave := session.Action{Kind: session.KindLeave, Player: player}
		_, err := h.store.ApplyChecked(name, leave, func(*session.Session) error {
			if !h.boundTo(name, player, c) {
				return errRebound
			}
			return nil
		}, h.commit(c))
		if err != nil && !errors.Is(err, errRebound) {
			h.log.WithError(err).WithFields(logrus.Fields{"session": name, "player": player}).
				Debug("implicit leave failed")
		}
	}
	h.log.WithField("client", c.ID).Debug("client disconnected")
}

// HandleFrame decodes one raw frame and dispatches it.
func (h *Hub) HandleFrame(ctx context.Context, c *Client, data []byte) {
	msg, err := protocol.Decode(data)
	if err != nil {
		h.replyError(c, &session.Error{Code: session.CodeInvalidAction, Message: err.Error()})
		return
	}
	h.Dispatch(ctx, c, msg)
}

// Dispatch handles one client message. Rejections are answered on c only.
func (h *Hub) Dispatch(ctx context.Context, c *Client, msg protocol.Message) {
	var err error
	switch m := msg.(type) {
	case protocol.SessionEvent:
		err = h.handleSessionEvent(ctx, c, m)
	case protocol.PlayerEvent:
		err = h.handlePlayerEvent(c, m)
	default:
		err = &session.Error{
			Code:    session.CodeInvalidAction,
			Message: fmt.Sprintf("%s is not accepted from clients", msg.MessageType()),
		}
	}
	if err != nil {
		h.replyError(c, err)
	}
}

func (h *Hub) handleSessionEvent(ctx context.Context, c *Client, m protocol.SessionEvent) error {
	logger := h.log.WithFields(logrus.Fields{"session": m.Session, "player": m.Player, "client": c.ID})

	switch session.Kind(m.Action) {
	case "create":
		if err := h.checkUnseated(c, m.Session); err != nil {
			return err
		}
		return h.create(ctx, c, m)

	case session.KindJoin:
		if err := h.checkUnseated(c, m.Session); err != nil {
			return err
		}
		err := h.join(c, m)
		switch {
		case errors.Is(err, session.ErrNotFound) && m.Game != "":
			err = h.create(ctx, c, m)
			if errors.Is(err, session.ErrAlreadyExists) {
				// Lost a creation race; the session exists now.
				err = h.join(c, m)
			}
		case errors.Is(err, session.ErrDuplicatePlayer):
			rebound, rerr := h.rebind(c, m.Session, m.Player)
			if rerr != nil {
				return rerr
			}
			if rebound {
				logger.Info("player rebound to new connection")
				return nil
			}
		}
		if err == nil {
			logger.Info("player joined")
		}
		return err

	case session.KindLeave:
		if err := h.checkSeat(c, m.Session, m.Player); err != nil {
			return err
		}
		destroyed, err := h.store.Leave(m.Session, m.Player, h.commit(c))
		if err == nil {
			logger.WithField("destroyed", destroyed).Info("player left")
		}
		return err
	}
	return &session.Error{Code: session.CodeInvalidAction, Message: fmt.Sprintf("unknown session action %q", m.Action)}
}

func (h *Hub) create(ctx context.Context, c *Client, m protocol.SessionEvent) error {
	if m.Game == "" {
		return &session.Error{Code: session.CodeInvalidAction, Message: "a game is required to create a session"}
	}
	setup, err := h.catalog.Setup(ctx, m.Game)
	if errors.Is(err, ErrGameNotFound) {
		return &session.Error{Code: session.CodeNotFound, Message: fmt.Sprintf("game %q not found", m.Game)}
	}
	if err != nil {
		return fmt.Errorf("load game %q: %w", m.Game, err)
	}
	if err := h.store.Create(m.Session, setup, m.Player, h.commit(c)); err != nil {
		return err
	}
	h.log.WithFields(logrus.Fields{"session": m.Session, "player": m.Player, "game": m.Game}).Info("session created")
	return nil
}

func (h *Hub) handlePlayerEvent(c *Client, m protocol.PlayerEvent) error {
	switch session.Kind(m.Action) {
	case session.KindDraw, session.KindDiscard, session.KindPlay, session.KindGive:
	default:
		return &session.Error{Code: session.CodeInvalidAction, Message: fmt.Sprintf("unknown player action %q", m.Action)}
	}
	if err := h.checkSeat(c, m.Session, m.Player); err != nil {
		return err
	}
	_, err := h.store.Apply(m.Session, m.ToAction(), h.commit(c))
	return err
}

// join seats m.Player in an existing session. A game named on the join must match the
// session's; it only selects the deck when the join creates the session.
func (h *Hub) join(c *Client, m protocol.SessionEvent) error {
	a := session.Action{Kind: session.KindJoin, Player: m.Player}
	_, err := h.store.ApplyChecked(m.Session, a, func(s *session.Session) error {
		if m.Game != "" && m.Game != s.Game {
			return &session.Error{
				Code:    session.CodeInvalidAction,
				Message: fmt.Sprintf("session %q plays %q, not %q", m.Session, s.Game, m.Game),
			}
		}
		return nil
	}, h.commit(c))
	return err
}

// checkSeat rejects actions attributed to a player this connection does not hold.
// An unknown session is reported as such before any seat mismatch.
func (h *Hub) checkSeat(c *Client, sessionName, player string) error {
	if seat, ok := c.Seat(sessionName); !ok || seat != player {
		if _, err := h.store.Get(sessionName); err != nil {
			return err
		}
		return &session.Error{
			Code:    session.CodeUnauthorized,
			Message: fmt.Sprintf("player %q is not in session %q on this connection", player, sessionName),
		}
	}
	return nil
}

func (h *Hub) checkUnseated(c *Client, sessionName string) error {
	if seat, ok := c.Seat(sessionName); ok {
		return &session.Error{
			Code:    session.CodeDuplicatePlayer,
			Message: fmt.Sprintf("this connection already plays %q in session %q", seat, sessionName),
		}
	}
	return nil
}

// rebind hands an existing seat whose connection is gone to c.
func (h *Hub) rebind(c *Client, sessionName, player string) (bool, error) {
	rebound := false
	err := h.store.Read(sessionName, func(s *session.Session) {
		h.mu.Lock()
		if old, ok := h.rooms[sessionName][player]; !ok || old.isClosed() {
			h.bindLocked(sessionName, player, c)
			rebound = true
		}
		h.mu.Unlock()
		if rebound {
			h.sendTo(c, protocol.SyncEvent{Session: session.Project(s, player)})
			h.sendTo(c, protocol.LobbyEvent{
				Action: string(session.KindJoin), Session: sessionName, Player: player,
				Message: fmt.Sprintf("%s rejoined", player),
			})
		}
	})
	return rebound, err
}

func (h *Hub) boundTo(sessionName, player string, c *Client) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.rooms[sessionName][player] == c
}

func (h *Hub) bindLocked(sessionName, player string, c *Client) {
	room, ok := h.rooms[sessionName]
	if !ok {
		room = make(map[string]*Client)
		h.rooms[sessionName] = room
	}
	room[player] = c
	c.bind(sessionName, player)
}

func (h *Hub) unbindLocked(sessionName, player string) {
	room, ok := h.rooms[sessionName]
	if !ok {
		return
	}
	if c, ok := room[player]; ok {
		c.unbind(sessionName)
		delete(room, player)
	}
	if len(room) == 0 {
		delete(h.rooms, sessionName)
	}
}

// recipients returns the connections seated in a session, keyed by player.
func (h *Hub) recipients(sessionName string) map[string]*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make(map[string]*Client, len(h.rooms[sessionName]))
	for p, c := range h.rooms[sessionName] {
		out[p] = c
	}
	return out
}

func (h *Hub) replyError(c *Client, err error) {
	code := session.CodeOf(err)
	msg := err.Error()
	if code == "" {
		h.log.WithError(err).WithField("client", c.ID).Error("request failed")
		code, msg = "INTERNAL", "internal server error"
	}
	h.sendTo(c, protocol.ErrorEvent{Code: string(code), Message: msg})
}

func (h *Hub) sendTo(c *Client, msg protocol.Message) {
	frame, err := protocol.Encode(msg)
	if err != nil {
		h.log.WithError(err).Error("encode frame")
		return
	}
	if !c.enqueue(frame) {
		h.log.WithField("client", c.ID).Debug("frame dropped")
	}
}

type nopDirectory struct{}

func (nopDirectory) Publish(session.Summary) {}
func (nopDirectory) Remove(string)           {}
