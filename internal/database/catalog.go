package database

import (
	"context"
	"errors"
	"fmt"

	"cardtable/backend/internal/deck"
	"cardtable/backend/internal/hub"
	"cardtable/backend/internal/models"
	"cardtable/backend/internal/session"

	"gorm.io/gorm"
)

// Catalog loads game definitions for new sessions.
type Catalog struct {
	DB *gorm.DB
}

// NewCatalog wraps db.
func NewCatalog(db *gorm.DB) *Catalog {
	return &Catalog{DB: db}
}

// Setup returns every card of game, ordered by title, plus its session rules.
func (c *Catalog) Setup(ctx context.Context, game string) (session.Setup, error) {
	var g models.Game
	err := c.DB.WithContext(ctx).
		Preload("Cards", func(db *gorm.DB) *gorm.DB { return db.Order("title") }).
		First(&g, "name = ?", game).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return session.Setup{}, fmt.Errorf("%w: %s", hub.ErrGameNotFound, game)
	}
	if err != nil {
		return session.Setup{}, fmt.Errorf("load game %s: %w", game, err)
	}

	cards := make([]deck.Card, 0, len(g.Cards))
	for _, card := range g.Cards {
		cards = append(cards, card.ToDeck())
	}
	return session.Setup{
		Game:              g.Name,
		Cards:             cards,
		ReshuffleDiscards: g.ReshuffleDiscards,
	}, nil
}
