package session

import "cardtable/backend/internal/deck"

// Validate decides whether a may be applied to s. It never mutates s.
func Validate(s *Session, a Action) error {
	switch a.Kind {
	case KindJoin:
		if a.Player == "" {
			return reject(CodeInvalidAction, "player name is required")
		}
		if s.HasPlayer(a.Player) {
			return reject(CodeDuplicatePlayer, "player %q is already in session %q", a.Player, s.Name)
		}
		return nil
	case KindLeave:
		if !s.HasPlayer(a.Player) {
			return reject(CodeUnauthorized, "player %q is not in session %q", a.Player, s.Name)
		}
		return nil
	case KindDraw, KindDiscard, KindPlay, KindGive:
	default:
		return reject(CodeInvalidAction, "unknown action %q", a.Kind)
	}

	if !s.HasPlayer(a.Player) {
		return reject(CodeUnauthorized, "player %q is not in session %q", a.Player, s.Name)
	}

	if a.Kind == KindDraw {
		if len(s.DrawPile) == 0 && !(s.ReshuffleDiscards && len(s.DiscardPile) > 0) {
			return reject(CodeEmptyPile, "the draw pile is empty")
		}
		return nil
	}

	if a.Card == "" {
		return reject(CodeInvalidAction, "%s requires a card", a.Kind)
	}
	if deck.Index(s.Hands[a.Player], a.Card) < 0 {
		return reject(CodeInvalidAction, "%q is not in %s's hand", a.Card, a.Player)
	}

	if a.Kind == KindGive {
		switch {
		case a.Target == "":
			return reject(CodeInvalidAction, "give requires a target player")
		case a.Target == a.Player:
			return reject(CodeInvalidAction, "cannot give a card to yourself")
		case !s.HasPlayer(a.Target):
			return reject(CodeInvalidAction, "player %q is not in session %q", a.Target, s.Name)
		}
	}
	return nil
}

// Apply validates a and, if legal, performs the transition in place. A rejected action leaves s
// untouched. shuffler is only used when a draw recycles the discard pile.
func Apply(s *Session, a Action, shuffler *deck.Shuffler) (Outcome, error) {
	if err := Validate(s, a); err != nil {
		return Outcome{}, err
	}

	out := Outcome{Action: a, Host: s.Host}
	switch a.Kind {
	case KindJoin:
		if len(s.Players) == 0 {
			s.Host = a.Player
			out.Host = a.Player
		}
		s.Players = append(s.Players, a.Player)
		s.Hands[a.Player] = []deck.Card{}

	case KindLeave:
		i := s.playerIndex(a.Player)
		s.Players = append(s.Players[:i:i], s.Players[i+1:]...)
		// The leaver's cards are not lost: they go to the discard pile.
		s.DiscardPile = append(s.DiscardPile, s.Hands[a.Player]...)
		delete(s.Hands, a.Player)
		if s.Host == a.Player {
			out.PreviousHost = a.Player
			s.Host = ""
			if len(s.Players) > 0 {
				s.Host = s.Players[0]
			}
			out.Host = s.Host
		}
		out.Destroyed = len(s.Players) == 0

	case KindDraw:
		if len(s.DrawPile) == 0 {
			s.DrawPile = shuffler.Shuffle(s.DiscardPile)
			s.DiscardPile = []deck.Card{}
			out.Reshuffled = true
		}
		top := s.DrawPile[len(s.DrawPile)-1]
		s.DrawPile = s.DrawPile[:len(s.DrawPile)-1]
		s.Hands[a.Player] = append(s.Hands[a.Player], top)
		out.Card = &top

	case KindDiscard, KindPlay, KindGive:
		hand := s.Hands[a.Player]
		i := deck.Index(hand, a.Card)
		card := hand[i]
		s.Hands[a.Player] = deck.Remove(hand, i)
		out.Card = &card

		switch a.Kind {
		case KindDiscard:
			s.DiscardPile = append(s.DiscardPile, card)
		case KindPlay:
			s.PlayHistory = append(s.PlayHistory, Play{Player: a.Player, Card: card})
		case KindGive:
			s.Hands[a.Target] = append(s.Hands[a.Target], card)
		}
	}

	s.Version++
	return out, nil
}
