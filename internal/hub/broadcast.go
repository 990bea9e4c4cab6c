package hub

import (
	"fmt"

	"cardtable/backend/internal/protocol"
	"cardtable/backend/internal/session"
)

// commit returns the hook run inside the session's critical section after an accepted action.
// actor is the connection that submitted it. Every frame is queued before the lock is released,
// so all connections receive the same order of snapshots.
func (h *Hub) commit(actor *Client) session.CommitFunc {
	return func(s *session.Session, out session.Outcome) {
		a := out.Action

		switch a.Kind {
		case session.KindJoin:
			h.mu.Lock()
			h.bindLocked(s.Name, a.Player, actor)
			h.mu.Unlock()
		case session.KindLeave:
			// The leaver still gets the lobby notice, but no further snapshots.
			h.sendTo(actor, h.lobbyEvent(s.Name, out))
			h.mu.Lock()
			h.unbindLocked(s.Name, a.Player)
			h.mu.Unlock()
		}

		for player, c := range h.recipients(s.Name) {
			h.sendTo(c, protocol.SyncEvent{Session: session.Project(s, player)})
			switch a.Kind {
			case session.KindJoin, session.KindLeave:
				h.sendTo(c, h.lobbyEvent(s.Name, out))
				if out.HostChanged() {
					h.sendTo(c, protocol.LobbyEvent{
						Action: "host", Session: s.Name, Player: out.Host,
						Message: fmt.Sprintf("%s is now the host", out.Host),
					})
				}
			default:
				h.sendTo(c, notification(s.Name, out, player))
			}
		}

		if out.Destroyed {
			h.directory.Remove(s.Name)
			h.log.WithField("session", s.Name).Info("session destroyed")
			return
		}
		h.directory.Publish(s.Summarize())
	}
}

func (h *Hub) lobbyEvent(sessionName string, out session.Outcome) protocol.LobbyEvent {
	a := out.Action
	ev := protocol.LobbyEvent{Action: string(a.Kind), Session: sessionName, Player: a.Player}
	switch {
	case out.Created:
		ev.Message = fmt.Sprintf("%s created %s", a.Player, sessionName)
	case a.Kind == session.KindJoin:
		ev.Message = fmt.Sprintf("%s joined", a.Player)
	default:
		ev.Message = fmt.Sprintf("%s left", a.Player)
	}
	return ev
}

// notification describes an accepted player action as recipient may see it. A card's identity
// is only attached where the recipient is entitled to it: played cards are public, drawn and
// discarded cards stay with the actor, given cards with the actor and the target.
func notification(sessionName string, out session.Outcome, recipient string) protocol.GameEvent {
	a := out.Action
	ev := protocol.GameEvent{
		Action:  string(a.Kind),
		Session: sessionName,
		Player:  a.Player,
		Target:  a.Target,
	}

	reveal := false
	switch a.Kind {
	case session.KindDraw:
		reveal = recipient == a.Player
		ev.Message = fmt.Sprintf("%s drew a card", a.Player)
		if out.Reshuffled {
			ev.Message += " after the discard pile was reshuffled"
		}
	case session.KindDiscard:
		reveal = recipient == a.Player
		ev.Message = fmt.Sprintf("%s discarded a card", a.Player)
	case session.KindPlay:
		reveal = true
		ev.Message = fmt.Sprintf("%s played %s", a.Player, out.Card.Title)
	case session.KindGive:
		reveal = recipient == a.Player || recipient == a.Target
		ev.Message = fmt.Sprintf("%s gave a card to %s", a.Player, a.Target)
	}
	if reveal && out.Card != nil {
		card := *out.Card
		ev.Card = &card
	}
	return ev
}
