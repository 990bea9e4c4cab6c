package session

import (
	"fmt"
	"testing"

	"cardtable/backend/internal/deck"
	"github.com/stretchr/testify/require"
)

func testCards(n int) []deck.Card {
	cards := make([]deck.Card, n)
	for i := range cards {
		cards[i] = deck.Card{
			Title:       fmt.Sprintf("Card %d", i),
			Description: "test card",
			Type:        []string{"attack", "defense"}[i%2],
			Game:        "duel",
		}
	}
	return cards
}

// newTestSession seats players in order over a pile of n cards.
func newTestSession(t *testing.T, n int, players ...string) *Session {
	t.Helper()
	s := New("foo", Setup{Game: "duel"}, testCards(n))
	for _, p := range players {
		_, err := Apply(s, Action{Kind: KindJoin, Player: p}, deck.NewShuffler(1))
		require.NoError(t, err)
	}
	return s
}

func mustApply(t *testing.T, s *Session, a Action) Outcome {
	t.Helper()
	out, err := Apply(s, a, deck.NewShuffler(1))
	require.NoError(t, err)
	return out
}
