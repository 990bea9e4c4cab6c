package session

import "cardtable/backend/internal/deck"

// Play is one entry of the public play history.
type Play struct {
	Player string    `json:"player"`
	Card   deck.Card `json:"card"`
}

// Setup is what a session needs from the game catalog when it is created.
type Setup struct {
	Game              string
	Cards             []deck.Card
	ReshuffleDiscards bool
}

// Session is the authoritative state of one live game. It is only mutated through Apply,
// while holding the owning Store's per-session lock.
type Session struct {
	Name    string
	Game    string
	Host    string
	Players []string
	Hands   map[string][]deck.Card

	// DrawPile's top card is the last element.
	DrawPile    []deck.Card
	PlayHistory []Play
	DiscardPile []deck.Card

	ReshuffleDiscards bool

	// Catalog is the number of cards the session started with.
	Catalog int
	// Version increments on every accepted transition.
	Version uint64
}

// New builds an empty session whose draw pile is pile, top card last.
func New(name string, setup Setup, pile []deck.Card) *Session {
	return &Session{
		Name:              name,
		Game:              setup.Game,
		Players:           []string{},
		Hands:             make(map[string][]deck.Card),
		DrawPile:          deck.Clone(pile),
		PlayHistory:       []Play{},
		DiscardPile:       []deck.Card{},
		ReshuffleDiscards: setup.ReshuffleDiscards,
		Catalog:           len(pile),
	}
}

// HasPlayer reports whether name is a member.
func (s *Session) HasPlayer(name string) bool {
	return s.playerIndex(name) >= 0
}

func (s *Session) playerIndex(name string) int {
	for i, p := range s.Players {
		if p == name {
			return i
		}
	}
	return -1
}

// CardCount counts every card owned by any location of the session.
func (s *Session) CardCount() int {
	n := len(s.DrawPile) + len(s.DiscardPile) + len(s.PlayHistory)
	for _, hand := range s.Hands {
		n += len(hand)
	}
	return n
}

// Clone deep-copies the session.
func (s *Session) Clone() *Session {
	c := *s
	c.Players = append([]string{}, s.Players...)
	c.Hands = make(map[string][]deck.Card, len(s.Hands))
	for p, hand := range s.Hands {
		c.Hands[p] = deck.Clone(hand)
	}
	c.DrawPile = deck.Clone(s.DrawPile)
	c.DiscardPile = deck.Clone(s.DiscardPile)
	c.PlayHistory = append([]Play{}, s.PlayHistory...)
	return &c
}

// Summary is the public, hand-free description used for session listings.
type Summary struct {
	Name     string `json:"name"`
	Game     string `json:"game"`
	Host     string `json:"host"`
	Players  int    `json:"players"`
	DrawPile int    `json:"draw_pile"`
	Version  uint64 `json:"version"`
}

// Summarize describes s without any hand contents.
func (s *Session) Summarize() Summary {
	return Summary{
		Name:     s.Name,
		Game:     s.Game,
		Host:     s.Host,
		Players:  len(s.Players),
		DrawPile: len(s.DrawPile),
		Version:  s.Version,
	}
}
