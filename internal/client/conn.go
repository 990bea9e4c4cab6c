package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"cardtable/backend/internal/deck"
	"cardtable/backend/internal/protocol"
	"cardtable/backend/internal/session"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

// Conn is one websocket connection to the server. Inbound frames are reconciled into State.
type Conn struct {
	ws    *websocket.Conn
	state *State

	// writes are serialized; websocket.Conn allows one writer at a time.
	wmu sync.Mutex
}

// Dial connects to url (e.g., "ws://localhost:8080/ws").
func Dial(ctx context.Context, url string, state *State) (*Conn, error) {
	ws, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	if state == nil {
		state = NewState(nil)
	}
	return &Conn{ws: ws, state: state}, nil
}

// State returns the reconciled sessions.
func (c *Conn) State() *State {
	return c.state
}

// Run reads frames until ctx ends or the connection closes. onFrame, if set, is called after
// each frame was applied, with whether local state changed.
func (c *Conn) Run(ctx context.Context, onFrame func(msg protocol.Message, changed bool)) error {
	for {
		var raw json.RawMessage
		if err := wsjson.Read(ctx, c.ws, &raw); err != nil {
			if websocket.CloseStatus(err) == websocket.StatusNormalClosure || errors.Is(err, context.Canceled) {
				return nil
			}
			return fmt.Errorf("read frame: %w", err)
		}
		msg, err := protocol.Decode(raw)
		if err != nil {
			// Frames from a newer server are skipped.
			continue
		}
		changed := c.state.Apply(msg)
		if onFrame != nil {
			onFrame(msg, changed)
		}
	}
}

// Send submits one message. Rejections come back as ERROR_EVENT frames.
func (c *Conn) Send(ctx context.Context, msg protocol.Message) error {
	frame, err := protocol.Encode(msg)
	if err != nil {
		return err
	}
	c.wmu.Lock()
	defer c.wmu.Unlock()
	if err := c.ws.Write(ctx, websocket.MessageText, frame); err != nil {
		return fmt.Errorf("send %s: %w", msg.MessageType(), err)
	}
	return nil
}

// Create opens a new session of game.
func (c *Conn) Create(ctx context.Context, sessionName, player, game string) error {
	return c.Send(ctx, protocol.SessionEvent{Action: "create", Session: sessionName, Player: player, Game: game})
}

// Join enters a session, creating it when game is set and the session does not exist yet.
func (c *Conn) Join(ctx context.Context, sessionName, player, game string) error {
	return c.Send(ctx, protocol.SessionEvent{Action: string(session.KindJoin), Session: sessionName, Player: player, Game: game})
}

func (c *Conn) Leave(ctx context.Context, sessionName, player string) error {
	return c.Send(ctx, protocol.SessionEvent{Action: string(session.KindLeave), Session: sessionName, Player: player})
}

func (c *Conn) Draw(ctx context.Context, sessionName, player string) error {
	return c.act(ctx, session.KindDraw, sessionName, player, "", "")
}

func (c *Conn) Discard(ctx context.Context, sessionName, player, card string) error {
	return c.act(ctx, session.KindDiscard, sessionName, player, card, "")
}

func (c *Conn) Play(ctx context.Context, sessionName, player, card string) error {
	return c.act(ctx, session.KindPlay, sessionName, player, card, "")
}

func (c *Conn) Give(ctx context.Context, sessionName, player, card, target string) error {
	return c.act(ctx, session.KindGive, sessionName, player, card, target)
}

func (c *Conn) act(ctx context.Context, kind session.Kind, sessionName, player, card, target string) error {
	ev := protocol.PlayerEvent{Action: string(kind), Session: sessionName, Player: player, Target: target}
	if card != "" {
		ev.Card = &deck.Card{Title: card}
	}
	return c.Send(ctx, ev)
}

// Close ends the connection; the server treats it as leaving every session.
func (c *Conn) Close() error {
	return c.ws.Close(websocket.StatusNormalClosure, "")
}
