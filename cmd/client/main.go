package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"cardtable/backend/internal/client"
	"cardtable/backend/internal/protocol"

	"github.com/pterm/pterm"
	"github.com/pterm/pterm/putils"
)

const help = "commands: draw | discard <card> | play <card> | give <player> <card> | leave | quit"

func main() {
	urlFlag := flag.String("url", "ws://localhost:8080/ws", "server websocket url")
	sessionFlag := flag.String("session", "", "session to join")
	playerFlag := flag.String("player", "", "your player name")
	gameFlag := flag.String("game", "", "game to deal from when the session does not exist yet")
	flag.Parse()

	if *sessionFlag == "" || *playerFlag == "" {
		fmt.Fprintf(os.Stderr, "usage: %s -session <name> -player <name> [-game <game>] [-url <ws url>]\n", os.Args[0])
		os.Exit(1)
	}

	title, err := pterm.DefaultBigText.WithLetters(
		putils.LettersFromStringWithStyle("Card", pterm.FgRed.ToStyle()),
		putils.LettersFromStringWithStyle("table", pterm.FgDarkGray.ToStyle()),
	).Srender()
	if err == nil {
		pterm.Print(title)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ui := &terminal{session: *sessionFlag}
	conn, err := client.Dial(ctx, *urlFlag, client.NewState(ui))
	if err != nil {
		pterm.Error.Println(err)
		os.Exit(1)
	}
	defer conn.Close()
	ui.state = conn.State()

	go func() {
		err := conn.Run(ctx, func(msg protocol.Message, changed bool) {
			if changed {
				ui.render()
			}
		})
		if err != nil {
			pterm.Error.Printfln("connection lost: %v", err)
		}
		cancel()
		os.Exit(0)
	}()

	if err := conn.Join(ctx, *sessionFlag, *playerFlag, *gameFlag); err != nil {
		pterm.Error.Println(err)
		os.Exit(1)
	}
	pterm.Info.Println(help)

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		if quit := run(ctx, conn, *sessionFlag, *playerFlag, scanner.Text()); quit {
			return
		}
	}
}

// run executes one command line. It reports whether the client should exit.
func run(ctx context.Context, conn *client.Conn, sessionName, player, line string) bool {
	cmd, rest, _ := strings.Cut(strings.TrimSpace(line), " ")
	rest = strings.TrimSpace(rest)

	var err error
	switch cmd {
	case "":
		return false
	case "draw":
		err = conn.Draw(ctx, sessionName, player)
	case "discard":
		err = conn.Discard(ctx, sessionName, player, rest)
	case "play":
		err = conn.Play(ctx, sessionName, player, rest)
	case "give":
		target, card, _ := strings.Cut(rest, " ")
		err = conn.Give(ctx, sessionName, player, strings.TrimSpace(card), target)
	case "leave":
		err = conn.Leave(ctx, sessionName, player)
	case "quit", "exit":
		return true
	default:
		pterm.Warning.Println(help)
	}
	if err != nil {
		pterm.Error.Println(err)
	}
	return false
}
