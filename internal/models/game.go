package models

import "time"

// Game is a catalog a session deals its cards from. Name is the primary key.
type Game struct {
	Name       string `gorm:"primaryKey;size:255"`
	Color      string `gorm:"size:32"`
	Background string `gorm:"size:512"`
	// ReshuffleDiscards recycles the discard pile when a session's draw pile runs out.
	ReshuffleDiscards bool `gorm:"not null;default:false"`

	Types []CardType `gorm:"foreignKey:GameName;references:Name;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
	Cards []Card     `gorm:"foreignKey:GameName;references:Name;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

// TypeNames returns the game's card categories.
func (g Game) TypeNames() []string {
	names := make([]string, 0, len(g.Types))
	for _, t := range g.Types {
		names = append(names, t.Name)
	}
	return names
}

// HasType reports whether name is one of the game's categories.
func (g Game) HasType(name string) bool {
	for _, t := range g.Types {
		if t.Name == name {
			return true
		}
	}
	return false
}
