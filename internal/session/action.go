package session

import "cardtable/backend/internal/deck"

// Kind names a state-changing request.
type Kind string

const (
	KindDraw    Kind = "draw"
	KindDiscard Kind = "discard"
	KindPlay    Kind = "play"
	KindGive    Kind = "give"
	KindJoin    Kind = "join"
	KindLeave   Kind = "leave"
)

// Action is a request submitted by Player. Card is a card title; Target a player name.
type Action struct {
	Kind   Kind
	Player string
	Card   string
	Target string
}

// Outcome describes an accepted transition.
type Outcome struct {
	Action Action

	// Card is the card that moved, if any. For draws it is private to the drawer.
	Card *deck.Card

	Created    bool // the session was created by this join
	Destroyed  bool // the last player left and the session is gone
	Reshuffled bool // the discard pile was recycled before drawing

	// PreviousHost is set when the host left and the role moved to Host.
	PreviousHost string
	Host         string
}

// HostChanged reports whether the transition reassigned the host.
func (o Outcome) HostChanged() bool {
	return o.PreviousHost != "" && o.PreviousHost != o.Host
}
