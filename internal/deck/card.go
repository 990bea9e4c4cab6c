package deck

// Card is an immutable catalog entry. Within one game a card is identified by its Title.
type Card struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Type        string `json:"type"`
	Game        string `json:"game"`
}

// Index returns the position of the first card with the given title, or -1.
func Index(cards []Card, title string) int {
	for i, c := range cards {
		if c.Title == title {
			return i
		}
	}
	return -1
}

// Remove deletes cards[i] and keeps the order of the remaining cards.
func Remove(cards []Card, i int) []Card {
	out := make([]Card, 0, len(cards)-1)
	out = append(out, cards[:i]...)
	return append(out, cards[i+1:]...)
}

// Clone returns a copy that shares no backing array with cards.
func Clone(cards []Card) []Card {
	if cards == nil {
		return nil
	}
	out := make([]Card, len(cards))
	copy(out, cards)
	return out
}
