package session

import "cardtable/backend/internal/deck"

// PublicSession is the snapshot of a session as one player is allowed to see it.
type PublicSession struct {
	Name        string      `json:"name"`
	Game        string      `json:"game"`
	Host        string      `json:"host"`
	Players     []string    `json:"players"`
	Hands       []HandCount `json:"hands"`
	Me          *PlayerView `json:"me,omitempty"`
	PlayHistory []Play      `json:"playHistory"`
	DrawPile    int         `json:"drawPile"`
	DiscardPile int         `json:"discardPile"`
	Version     uint64      `json:"version"`
}

// HandCount exposes only the size of a player's hand.
type HandCount struct {
	Player string `json:"player"`
	Cards  int    `json:"cards"`
}

// PlayerView is the recipient's own seat, the only place card identities of a hand appear.
type PlayerView struct {
	Name string      `json:"name"`
	Hand []deck.Card `json:"hand"`
}

// Project builds the view of s for forPlayer. The result shares no memory with s.
// A forPlayer that is not a member gets a view without Me.
func Project(s *Session, forPlayer string) PublicSession {
	view := PublicSession{
		Name:        s.Name,
		Game:        s.Game,
		Host:        s.Host,
		Players:     append([]string{}, s.Players...),
		Hands:       make([]HandCount, 0, len(s.Players)),
		PlayHistory: append([]Play{}, s.PlayHistory...),
		DrawPile:    len(s.DrawPile),
		DiscardPile: len(s.DiscardPile),
		Version:     s.Version,
	}
	for _, p := range s.Players {
		view.Hands = append(view.Hands, HandCount{Player: p, Cards: len(s.Hands[p])})
	}
	if s.HasPlayer(forPlayer) {
		hand := deck.Clone(s.Hands[forPlayer])
		if hand == nil {
			hand = []deck.Card{}
		}
		view.Me = &PlayerView{Name: forPlayer, Hand: hand}
	}
	return view
}
