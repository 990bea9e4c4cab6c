package models

import "gorm.io/gorm"

// CardType is a card category of one game (e.g., "attack", "defense").
type CardType struct {
	gorm.Model
	GameName string `gorm:"size:255;not null;uniqueIndex:idx_game_type"`
	Name     string `gorm:"size:100;not null;uniqueIndex:idx_game_type"`
}
