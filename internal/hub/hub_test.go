package hub

import (
	"context"
	"fmt"
	"io"
	"sync"
	"testing"

	"cardtable/backend/internal/deck"
	"cardtable/backend/internal/protocol"
	"cardtable/backend/internal/session"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeCatalog serves games from memory.
type fakeCatalog map[string]session.Setup

func (f fakeCatalog) Setup(_ context.Context, game string) (session.Setup, error) {
	setup, ok := f[game]
	if !ok {
		return session.Setup{}, fmt.Errorf("%w: %s", ErrGameNotFound, game)
	}
	return setup, nil
}

// recordingDirectory captures what the hub mirrors.
type recordingDirectory struct {
	mu        sync.Mutex
	published map[string]session.Summary
	removed   []string
}

func (d *recordingDirectory) Publish(sum session.Summary) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.published[sum.Name] = sum
}

func (d *recordingDirectory) Remove(name string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.published, name)
	d.removed = append(d.removed, name)
}

func duelCards(n int) []deck.Card {
	cards := make([]deck.Card, n)
	for i := range cards {
		cards[i] = deck.Card{Title: fmt.Sprintf("Card %02d", i), Type: "attack", Game: "duel"}
	}
	return cards
}

func setupHub(t *testing.T) (*Hub, *recordingDirectory) {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	dir := &recordingDirectory{published: map[string]session.Summary{}}
	catalog := fakeCatalog{
		"duel":  {Game: "duel", Cards: duelCards(10)},
		"tiny":  {Game: "tiny", Cards: []deck.Card{{Title: "Strike", Type: "attack", Game: "tiny"}}},
		"cycle": {Game: "cycle", Cards: duelCards(1), ReshuffleDiscards: true},
	}
	h := New(session.NewStore(deck.NewShuffler(3)), catalog, dir, Options{SendBuffer: 64, Logger: logger})
	return h, dir
}

// drain decodes every frame queued for c.
func drain(t *testing.T, c *Client) []protocol.Message {
	t.Helper()
	var out []protocol.Message
	for {
		select {
		case frame, ok := <-c.Send():
			if !ok {
				return out
			}
			msg, err := protocol.Decode(frame)
			require.NoError(t, err)
			out = append(out, msg)
		default:
			return out
		}
	}
}

func lastSync(t *testing.T, msgs []protocol.Message) session.PublicSession {
	t.Helper()
	for i := len(msgs) - 1; i >= 0; i-- {
		if s, ok := msgs[i].(protocol.SyncEvent); ok {
			return s.Session
		}
	}
	require.Fail(t, "no SYNC_EVENT received")
	return session.PublicSession{}
}

func ofType[T protocol.Message](msgs []protocol.Message) []T {
	var out []T
	for _, m := range msgs {
		if v, ok := m.(T); ok {
			out = append(out, v)
		}
	}
	return out
}

func join(h *Hub, c *Client, name, player, game string) {
	h.Dispatch(context.Background(), c, protocol.SessionEvent{Action: "join", Session: name, Player: player, Game: game})
}

func act(h *Hub, c *Client, name, player, action string, card string, target string) {
	ev := protocol.PlayerEvent{Action: action, Session: name, Player: player, Target: target}
	if card != "" {
		ev.Card = &deck.Card{Title: card}
	}
	h.Dispatch(context.Background(), c, ev)
}

// twoPlayers seats alice (host) and bob in "foo" and clears their queues.
func twoPlayers(t *testing.T, h *Hub, game string) (*Client, *Client) {
	t.Helper()
	alice, bob := h.Connect(), h.Connect()
	join(h, alice, "foo", "alice", game)
	join(h, bob, "foo", "bob", "")
	drain(t, alice)
	drain(t, bob)
	return alice, bob
}

func TestJoinCreatesThenBroadcasts(t *testing.T) {
	h, dir := setupHub(t)
	alice, bob := h.Connect(), h.Connect()

	join(h, alice, "foo", "alice", "duel")
	msgs := drain(t, alice)
	view := lastSync(t, msgs)
	assert.Equal(t, "alice", view.Host)
	assert.Equal(t, 10, view.DrawPile)
	require.Len(t, ofType[protocol.LobbyEvent](msgs), 1)
	assert.Equal(t, "alice created foo", ofType[protocol.LobbyEvent](msgs)[0].Message)

	join(h, bob, "foo", "bob", "")
	assert.Equal(t, []string{"alice", "bob"}, lastSync(t, drain(t, alice)).Players)
	bobMsgs := drain(t, bob)
	assert.Equal(t, "bob", lastSync(t, bobMsgs).Me.Name)
	assert.Equal(t, "bob joined", ofType[protocol.LobbyEvent](bobMsgs)[0].Message)

	assert.Equal(t, 2, dir.published["foo"].Players)
	seat, ok := bob.Seat("foo")
	assert.True(t, ok)
	assert.Equal(t, "bob", seat)
}

func TestJoinUnknownSessionWithoutGame(t *testing.T) {
	h, _ := setupHub(t)
	c := h.Connect()

	join(h, c, "nope", "alice", "")

	errs := ofType[protocol.ErrorEvent](drain(t, c))
	require.Len(t, errs, 1)
	assert.Equal(t, string(session.CodeNotFound), errs[0].Code)
}

func TestCreateUnknownGame(t *testing.T) {
	h, _ := setupHub(t)
	c := h.Connect()

	h.Dispatch(context.Background(), c, protocol.SessionEvent{Action: "create", Session: "foo", Player: "alice", Game: "chess"})

	errs := ofType[protocol.ErrorEvent](drain(t, c))
	require.Len(t, errs, 1)
	assert.Equal(t, string(session.CodeNotFound), errs[0].Code)
	assert.Contains(t, errs[0].Message, "chess")
	assert.Empty(t, h.Store().List())
}

func TestCreateExistingSession(t *testing.T) {
	h, _ := setupHub(t)
	alice, bob := h.Connect(), h.Connect()
	join(h, alice, "foo", "alice", "duel")
	drain(t, alice)

	h.Dispatch(context.Background(), bob, protocol.SessionEvent{Action: "create", Session: "foo", Player: "bob", Game: "duel"})

	errs := ofType[protocol.ErrorEvent](drain(t, bob))
	require.Len(t, errs, 1)
	assert.Equal(t, string(session.CodeAlreadyExists), errs[0].Code)
	assert.Empty(t, drain(t, alice), "rejections are never broadcast")
}

// Scenario A over the hub.
func TestDrawBroadcastsCountsOnly(t *testing.T) {
	h, _ := setupHub(t)
	alice, bob := twoPlayers(t, h, "duel")

	act(h, alice, "foo", "alice", "draw", "", "")

	aliceMsgs := drain(t, alice)
	mine := lastSync(t, aliceMsgs)
	require.Len(t, mine.Me.Hand, 1)
	assert.Equal(t, 9, mine.DrawPile)
	drawn := mine.Me.Hand[0]
	note := ofType[protocol.GameEvent](aliceMsgs)
	require.Len(t, note, 1)
	require.NotNil(t, note[0].Card)
	assert.Equal(t, drawn.Title, note[0].Card.Title)

	bobMsgs := drain(t, bob)
	theirs := lastSync(t, bobMsgs)
	assert.Equal(t, session.HandCount{Player: "alice", Cards: 1}, theirs.Hands[0])
	assert.Empty(t, theirs.Me.Hand)
	bobNote := ofType[protocol.GameEvent](bobMsgs)
	require.Len(t, bobNote, 1)
	assert.Nil(t, bobNote[0].Card)
	assert.Equal(t, "alice drew a card", bobNote[0].Message)
}

// Scenario B over the hub.
func TestPlayIsPublic(t *testing.T) {
	h, _ := setupHub(t)
	alice, bob := twoPlayers(t, h, "tiny")
	act(h, alice, "foo", "alice", "draw", "", "")
	drain(t, alice)
	drain(t, bob)

	act(h, alice, "foo", "alice", "play", "Strike", "")

	for _, c := range []*Client{alice, bob} {
		msgs := drain(t, c)
		view := lastSync(t, msgs)
		require.Len(t, view.PlayHistory, 1)
		assert.Equal(t, session.Play{Player: "alice", Card: deck.Card{Title: "Strike", Type: "attack", Game: "tiny"}}, view.PlayHistory[0])
		note := ofType[protocol.GameEvent](msgs)[0]
		assert.Equal(t, "alice played Strike", note.Message)
		require.NotNil(t, note.Card)
	}
}

// Scenario C over the hub.
func TestGiveToSelfOnlyErrorsActor(t *testing.T) {
	h, _ := setupHub(t)
	alice, bob := twoPlayers(t, h, "tiny")
	act(h, alice, "foo", "alice", "draw", "", "")
	drain(t, alice)
	drain(t, bob)
	before, err := h.Store().Snapshot("foo", "alice")
	require.NoError(t, err)

	act(h, alice, "foo", "alice", "give", "Strike", "alice")

	msgs := drain(t, alice)
	require.Len(t, msgs, 1)
	errEv, ok := msgs[0].(protocol.ErrorEvent)
	require.True(t, ok)
	assert.Equal(t, string(session.CodeInvalidAction), errEv.Code)
	assert.Empty(t, drain(t, bob))

	after, err := h.Store().Snapshot("foo", "alice")
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestGiveRevealsCardToTargetOnly(t *testing.T) {
	h, _ := setupHub(t)
	alice, bob := twoPlayers(t, h, "duel")
	carol := h.Connect()
	join(h, carol, "foo", "carol", "")
	act(h, alice, "foo", "alice", "draw", "", "")
	card := lastSync(t, drain(t, alice)).Me.Hand[0]
	drain(t, bob)
	drain(t, carol)

	act(h, alice, "foo", "alice", "give", card.Title, "bob")

	bobMsgs := drain(t, bob)
	assert.Equal(t, []deck.Card{card}, lastSync(t, bobMsgs).Me.Hand)
	require.NotNil(t, ofType[protocol.GameEvent](bobMsgs)[0].Card)

	carolMsgs := drain(t, carol)
	note := ofType[protocol.GameEvent](carolMsgs)[0]
	assert.Nil(t, note.Card)
	assert.Equal(t, "alice gave a card to bob", note.Message)
	assert.Equal(t, "bob", note.Target)
}

// Scenario D over the hub.
func TestLeaveMovesHostAndDestroys(t *testing.T) {
	h, dir := setupHub(t)
	alice, bob := twoPlayers(t, h, "duel")

	h.Dispatch(context.Background(), alice, protocol.SessionEvent{Action: "leave", Session: "foo", Player: "alice"})

	aliceMsgs := drain(t, alice)
	assert.Empty(t, ofType[protocol.SyncEvent](aliceMsgs))
	assert.Equal(t, "alice left", ofType[protocol.LobbyEvent](aliceMsgs)[0].Message)
	_, seated := alice.Seat("foo")
	assert.False(t, seated)

	bobMsgs := drain(t, bob)
	view := lastSync(t, bobMsgs)
	assert.Equal(t, []string{"bob"}, view.Players)
	assert.Equal(t, "bob", view.Host)
	var texts []string
	for _, ev := range ofType[protocol.LobbyEvent](bobMsgs) {
		texts = append(texts, ev.Message)
	}
	assert.Equal(t, []string{"alice left", "bob is now the host"}, texts)

	h.Dispatch(context.Background(), bob, protocol.SessionEvent{Action: "leave", Session: "foo", Player: "bob"})
	assert.Empty(t, h.Store().List())
	assert.Equal(t, []string{"foo"}, dir.removed)
	assert.NotContains(t, dir.published, "foo")
}

func TestSpoofedPlayerIsUnauthorized(t *testing.T) {
	h, _ := setupHub(t)
	alice, bob := twoPlayers(t, h, "duel")

	act(h, bob, "foo", "alice", "draw", "", "")
	h.Dispatch(context.Background(), bob, protocol.SessionEvent{Action: "leave", Session: "foo", Player: "alice"})

	for _, ev := range ofType[protocol.ErrorEvent](drain(t, bob)) {
		assert.Equal(t, string(session.CodeUnauthorized), ev.Code)
	}
	assert.Empty(t, drain(t, alice))
}

func TestActionsOnUnknownSessionAreNotFound(t *testing.T) {
	h, _ := setupHub(t)
	c := h.Connect()

	act(h, c, "ghost", "alice", "draw", "", "")
	act(h, c, "ghost", "alice", "play", "Card 01", "")
	h.Dispatch(context.Background(), c, protocol.SessionEvent{Action: "leave", Session: "ghost", Player: "alice"})

	errs := ofType[protocol.ErrorEvent](drain(t, c))
	require.Len(t, errs, 3)
	for _, e := range errs {
		assert.Equal(t, string(session.CodeNotFound), e.Code)
	}
}

func TestJoinWithOtherGameIsRejected(t *testing.T) {
	h, _ := setupHub(t)
	alice := h.Connect()
	join(h, alice, "foo", "alice", "duel")
	drain(t, alice)

	bob := h.Connect()
	join(h, bob, "foo", "bob", "tiny")

	errs := ofType[protocol.ErrorEvent](drain(t, bob))
	require.Len(t, errs, 1)
	assert.Equal(t, string(session.CodeInvalidAction), errs[0].Code)
	assert.Empty(t, drain(t, alice))

	view, err := h.Store().Snapshot("foo", "alice")
	require.NoError(t, err)
	assert.Equal(t, []string{"alice"}, view.Players)

	// Naming the session's own game is fine.
	join(h, bob, "foo", "bob", "duel")
	assert.Equal(t, []string{"alice", "bob"}, lastSync(t, drain(t, bob)).Players)
}

func TestRebindDestroyedSession(t *testing.T) {
	h, _ := setupHub(t)
	c := h.Connect()

	rebound, err := h.rebind(c, "ghost", "alice")
	assert.False(t, rebound)
	assert.ErrorIs(t, err, session.ErrNotFound)
	assert.Empty(t, c.Seats())
}

func TestMalformedFrames(t *testing.T) {
	h, _ := setupHub(t)
	c := h.Connect()

	h.HandleFrame(context.Background(), c, []byte(`{"type":"BOGUS"}`))
	h.HandleFrame(context.Background(), c, []byte(`{"type":"SYNC_EVENT","session":{}}`))
	act(h, c, "foo", "alice", "join", "", "")

	errs := ofType[protocol.ErrorEvent](drain(t, c))
	require.Len(t, errs, 3)
	for _, e := range errs {
		assert.Equal(t, string(session.CodeInvalidAction), e.Code)
	}
}

func TestDisconnectIsImplicitLeave(t *testing.T) {
	h, _ := setupHub(t)
	alice, bob := twoPlayers(t, h, "duel")
	act(h, alice, "foo", "alice", "draw", "", "")
	drain(t, bob)

	h.Disconnect(alice)

	_, open := <-alice.Send()
	for open {
		_, open = <-alice.Send()
	}
	view := lastSync(t, drain(t, bob))
	assert.Equal(t, []string{"bob"}, view.Players)
	assert.Equal(t, "bob", view.Host)
	assert.Equal(t, 1, view.DiscardPile, "alice's hand is discarded")

	h.Disconnect(alice) // idempotent
}

func TestRejoinAfterDisconnect(t *testing.T) {
	h, _ := setupHub(t)
	alice, bob := twoPlayers(t, h, "duel")
	h.Disconnect(alice)
	drain(t, bob)

	again := h.Connect()
	join(h, again, "foo", "alice", "")

	view := lastSync(t, drain(t, again))
	assert.Equal(t, []string{"bob", "alice"}, view.Players)
	assert.Equal(t, "bob", view.Host)
}

func TestJoinTakenNameIsRejected(t *testing.T) {
	h, _ := setupHub(t)
	_, _ = twoPlayers(t, h, "duel")
	imposter := h.Connect()

	join(h, imposter, "foo", "alice", "")

	errs := ofType[protocol.ErrorEvent](drain(t, imposter))
	require.Len(t, errs, 1)
	assert.Equal(t, string(session.CodeDuplicatePlayer), errs[0].Code)
}

func TestRebindClosedSeat(t *testing.T) {
	h, _ := setupHub(t)
	alice, bob := twoPlayers(t, h, "duel")
	// The old transport is gone but its implicit leave has not run yet.
	require.True(t, alice.shutdown())

	again := h.Connect()
	join(h, again, "foo", "alice", "")
	msgs := drain(t, again)
	assert.Equal(t, "alice", lastSync(t, msgs).Me.Name)
	assert.Equal(t, "alice rejoined", ofType[protocol.LobbyEvent](msgs)[0].Message)

	// The stale connection's release must not evict the rebound seat.
	for name, player := range alice.Seats() {
		_, err := h.store.ApplyChecked(name, session.Action{Kind: session.KindLeave, Player: player},
			func(*session.Session) error {
				if !h.boundTo(name, player, alice) {
					return errRebound
				}
				return nil
			}, h.commit(alice))
		assert.ErrorIs(t, err, errRebound)
	}
	view, err := h.Store().Snapshot("foo", "bob")
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob"}, view.Players)
	drain(t, bob)
}

func TestSlowClientIsFailed(t *testing.T) {
	h, _ := setupHub(t)
	h.buffer = 2
	alice := h.Connect()
	join(h, alice, "foo", "alice", "duel") // sync + lobby fill the queue

	act(h, alice, "foo", "alice", "draw", "", "")

	select {
	case <-alice.Done():
	default:
		t.Fatal("client with a full queue was not failed")
	}
}

func TestReshuffleNotification(t *testing.T) {
	h, _ := setupHub(t)
	alice := h.Connect()
	join(h, alice, "foo", "alice", "cycle")
	act(h, alice, "foo", "alice", "draw", "", "")
	card := lastSync(t, drain(t, alice)).Me.Hand[0]
	act(h, alice, "foo", "alice", "discard", card.Title, "")
	drain(t, alice)

	act(h, alice, "foo", "alice", "draw", "", "")

	note := ofType[protocol.GameEvent](drain(t, alice))[0]
	assert.Equal(t, "alice drew a card after the discard pile was reshuffled", note.Message)
}

func TestConcurrentActionsSameOrderForAll(t *testing.T) {
	h, _ := setupHub(t)
	alice, bob := twoPlayers(t, h, "duel")

	var wg sync.WaitGroup
	for _, pair := range []struct {
		c    *Client
		name string
	}{{alice, "alice"}, {bob, "bob"}} {
		wg.Add(1)
		go func(c *Client, name string) {
			defer wg.Done()
			for i := 0; i < 4; i++ {
				act(h, c, "foo", name, "draw", "", "")
			}
		}(pair.c, pair.name)
	}
	wg.Wait()

	order := func(c *Client) []string {
		var seq []string
		for _, m := range drain(t, c) {
			if ev, ok := m.(protocol.GameEvent); ok {
				seq = append(seq, ev.Player)
			}
		}
		return seq
	}
	aliceOrder, bobOrder := order(alice), order(bob)
	assert.Len(t, aliceOrder, 8)
	assert.Equal(t, aliceOrder, bobOrder)
}
