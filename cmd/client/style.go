package main

import (
	"fmt"
	"strings"
	"sync"

	"cardtable/backend/internal/client"
	"cardtable/backend/internal/protocol"
	"cardtable/backend/internal/session"

	"github.com/pterm/pterm"
)

// historyShown is how many of the latest plays are printed.
const historyShown = 5

// terminal prints notifications and redraws the table whenever the snapshot changes.
type terminal struct {
	session string
	state   *client.State
	mu      sync.Mutex
}

func (t *terminal) Lobby(ev protocol.LobbyEvent) {
	pterm.Info.Println(ev.Message)
}

func (t *terminal) Game(ev protocol.GameEvent) {
	pterm.Println(pterm.LightYellow(ev.Message))
}

func (t *terminal) Error(ev protocol.ErrorEvent) {
	pterm.Error.Printfln("%s: %s", ev.Code, ev.Message)
}

// render draws the players, the piles and the local hand.
func (t *terminal) render() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state == nil {
		return
	}
	view, ok := t.state.Session(t.session)
	if !ok {
		pterm.Info.Printfln("You are no longer seated in %s.", t.session)
		return
	}

	players := pterm.Panel{Data: playersTable(view)}
	board := pterm.Panel{Data: boardInfo(view)}
	panels := [][]pterm.Panel{{players, board}}
	if view.Me != nil {
		panels = append(panels, []pterm.Panel{{Data: handBox(view.Me)}})
	}
	pterm.DefaultSection.Printfln("%s (%s) v%d", view.Name, view.Game, view.Version)
	_ = pterm.DefaultPanel.WithPanels(panels).Render()
}

func playersTable(view session.PublicSession) string {
	data := pterm.TableData{{"Player", "Cards"}}
	for _, h := range view.Hands {
		name := h.Player
		if name == view.Host {
			name = pterm.LightCyan(name + " (host)")
		}
		data = append(data, []string{name, fmt.Sprint(h.Cards)})
	}
	out, err := pterm.DefaultTable.WithHasHeader().WithData(data).Srender()
	if err != nil {
		return err.Error()
	}
	return out
}

func boardInfo(view session.PublicSession) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Draw pile: %d\nDiscard pile: %d\n", view.DrawPile, view.DiscardPile)
	history := view.PlayHistory
	if len(history) > historyShown {
		history = history[len(history)-historyShown:]
	}
	for _, p := range history {
		fmt.Fprintf(&b, "%s played %s\n", p.Player, p.Card.Title)
	}
	pbox := pterm.DefaultBox.WithHorizontalPadding(4).WithTopPadding(1).WithBottomPadding(1)
	return pbox.WithTitle(pterm.LightYellow("|TABLE|")).WithTitleTopCenter().Sprint(b.String())
}

func handBox(me *session.PlayerView) string {
	pbox := pterm.DefaultBox.WithHorizontalPadding(10).WithTopPadding(1).WithBottomPadding(1)
	if len(me.Hand) == 0 {
		return pbox.WithTitle(me.Name).WithTitleTopLeft().Sprint(pterm.Gray("empty hand"))
	}
	lines := make([]string, 0, len(me.Hand))
	for _, c := range me.Hand {
		lines = append(lines, pterm.BgGreen.Sprintf(" %s ", c.Title)+" "+pterm.Gray(c.Type))
	}
	return pbox.WithTitle(me.Name).WithTitleTopLeft().Sprint(strings.Join(lines, "\n"))
}
