// Package protocol defines the JSON frames exchanged over a session websocket.
//
// Client to server:
//
//	SESSION_EVENT {action: create|join|leave, session, player, game?}
//	PLAYER_EVENT  {action: draw|discard|play|give, session, player, card?, target?}
//
// Server to client:
//
//	LOBBY_EVENT   {action, session, player, message}
//	SYNC_EVENT    {session: PublicSession}
//	GAME_EVENT    {action, session, player, card?, target?, message}
//	ERROR_EVENT   {code, message}
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"cardtable/backend/internal/deck"
	"cardtable/backend/internal/session"
)

// Type discriminates the message families.
type Type string

const (
	SessionEventType Type = "SESSION_EVENT"
	PlayerEventType  Type = "PLAYER_EVENT"
	LobbyEventType   Type = "LOBBY_EVENT"
	SyncEventType    Type = "SYNC_EVENT"
	GameEventType    Type = "GAME_EVENT"
	ErrorEventType   Type = "ERROR_EVENT"
)

// Message is implemented by every frame.
type Message interface {
	MessageType() Type
}

// SessionEvent is a lobby action: create, join or leave.
type SessionEvent struct {
	Type    Type   `json:"type"`
	Action  string `json:"action"`
	Session string `json:"session"`
	Player  string `json:"player"`
	Game    string `json:"game,omitempty"`
}

// PlayerEvent is an in-game action. Card is required for discard, play and give; Target for give.
type PlayerEvent struct {
	Type    Type       `json:"type"`
	Action  string     `json:"action"`
	Session string     `json:"session"`
	Player  string     `json:"player"`
	Card    *deck.Card `json:"card,omitempty"`
	Target  string     `json:"target,omitempty"`
}

// LobbyEvent is join/leave chatter that carries no state.
type LobbyEvent struct {
	Type    Type   `json:"type"`
	Action  string `json:"action"`
	Session string `json:"session"`
	Player  string `json:"player"`
	Message string `json:"message,omitempty"`
}

// SyncEvent carries an authoritative snapshot. It replaces the receiver's state wholesale.
type SyncEvent struct {
	Type    Type                  `json:"type"`
	Session session.PublicSession `json:"session"`
}

// GameEvent is a user-facing notification about an accepted action.
type GameEvent struct {
	Type    Type       `json:"type"`
	Action  string     `json:"action"`
	Session string     `json:"session"`
	Player  string     `json:"player"`
	Card    *deck.Card `json:"card,omitempty"`
	Target  string     `json:"target,omitempty"`
	Message string     `json:"message,omitempty"`
}

// ErrorEvent reports a rejected request to the connection that sent it.
type ErrorEvent struct {
	Type    Type   `json:"type"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

func (SessionEvent) MessageType() Type { return SessionEventType }
func (PlayerEvent) MessageType() Type  { return PlayerEventType }
func (LobbyEvent) MessageType() Type   { return LobbyEventType }
func (SyncEvent) MessageType() Type    { return SyncEventType }
func (GameEvent) MessageType() Type    { return GameEventType }
func (ErrorEvent) MessageType() Type   { return ErrorEventType }

// ErrUnknownType is returned by Decode for frames with a missing or unrecognized type.
var ErrUnknownType = errors.New("unknown message type")

// Decode parses one frame into its concrete message value.
func Decode(data []byte) (Message, error) {
	var head struct {
		Type Type `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}

	var msg Message
	var err error
	switch head.Type {
	case SessionEventType:
		var m SessionEvent
		err = json.Unmarshal(data, &m)
		msg = m
	case PlayerEventType:
		var m PlayerEvent
		err = json.Unmarshal(data, &m)
		msg = m
	case LobbyEventType:
		var m LobbyEvent
		err = json.Unmarshal(data, &m)
		msg = m
	case SyncEventType:
		var m SyncEvent
		err = json.Unmarshal(data, &m)
		msg = m
	case GameEventType:
		var m GameEvent
		err = json.Unmarshal(data, &m)
		msg = m
	case ErrorEventType:
		var m ErrorEvent
		err = json.Unmarshal(data, &m)
		msg = m
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, head.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", head.Type, err)
	}
	return msg, nil
}

// Encode serializes m, stamping its type field.
func Encode(m Message) ([]byte, error) {
	switch v := m.(type) {
	case SessionEvent:
		v.Type = SessionEventType
		return json.Marshal(v)
	case PlayerEvent:
		v.Type = PlayerEventType
		return json.Marshal(v)
	case LobbyEvent:
		v.Type = LobbyEventType
		return json.Marshal(v)
	case SyncEvent:
		v.Type = SyncEventType
		return json.Marshal(v)
	case GameEvent:
		v.Type = GameEventType
		return json.Marshal(v)
	case ErrorEvent:
		v.Type = ErrorEventType
		return json.Marshal(v)
	}
	return nil, fmt.Errorf("%w: %T", ErrUnknownType, m)
}

// ToAction converts a PlayerEvent into a session action.
func (e PlayerEvent) ToAction() session.Action {
	a := session.Action{Kind: session.Kind(e.Action), Player: e.Player, Target: e.Target}
	if e.Card != nil {
		a.Card = e.Card.Title
	}
	return a
}
