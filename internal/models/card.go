package models

import (
	"cardtable/backend/internal/deck"

	"gorm.io/gorm"
)

// Card is one catalog entry. Titles are unique within a game.
type Card struct {
	gorm.Model
	GameName    string `gorm:"size:255;not null;uniqueIndex:idx_game_title"`
	Title       string `gorm:"size:255;not null;uniqueIndex:idx_game_title"`
	Description string
	Type        string `gorm:"size:100;not null"`
}

// ToDeck converts the stored row into the immutable value sessions deal with.
func (c Card) ToDeck() deck.Card {
	return deck.Card{
		Title:       c.Title,
		Description: c.Description,
		Type:        c.Type,
		Game:        c.GameName,
	}
}
