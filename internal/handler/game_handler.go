package handler

import (
	"errors"
	"net/http"
	"strings"

	"cardtable/backend/internal/database"
	"cardtable/backend/internal/models"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// region --- DTOs ---

type GameInput struct {
	Name              string   `json:"name" binding:"required"`
	Color             string   `json:"color"`
	Background        string   `json:"background"`
	ReshuffleDiscards bool     `json:"reshuffle_discards"`
	Types             []string `json:"types" binding:"required,min=1,dive,required"`
}

type CardInput struct {
	Title       string `json:"title" binding:"required"`
	Description string `json:"description"`
	Type        string `json:"type" binding:"required"`
}

type GameResponse struct {
	Name              string   `json:"name"`
	Color             string   `json:"color"`
	Background        string   `json:"background"`
	ReshuffleDiscards bool     `json:"reshuffle_discards"`
	Types             []string `json:"types"`
}

type CardResponse struct {
	ID          uint   `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Type        string `json:"type"`
}

// GameDetailResponse is one game plus a page of its cards.
type GameDetailResponse struct {
	GameResponse
	Cards PaginatedResponse[CardResponse] `json:"cards"`
}

func newGameResponse(game models.Game) GameResponse {
	return GameResponse{
		Name:              game.Name,
		Color:             game.Color,
		Background:        game.Background,
		ReshuffleDiscards: game.ReshuffleDiscards,
		Types:             game.TypeNames(),
	}
}

func newCardResponse(card models.Card) CardResponse {
	return CardResponse{
		ID:          card.ID,
		Title:       card.Title,
		Description: card.Description,
		Type:        card.Type,
	}
}

func identity[T any](v T) T { return v }

// endregion

// region --- Admin Handlers ---

// CreateGame godoc
// @Summary      Create a new game
// @Description  Creates a game together with its card types.
// @Tags         admin-games
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        input body GameInput true "Game Info"
// @Success      201  {object}  GameResponse
// @Failure      400  {object}  ErrorResponse
// @Failure      403  {object}  ErrorResponse "Admin access required"
// @Failure      409  {object}  ErrorResponse "Game already exists"
// @Router       /admin/games [post]
func CreateGame(c *gin.Context) {
	var input GameInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	input.Name = strings.TrimSpace(input.Name)
	if input.Name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Game name is required"})
		return
	}
	types, err := normalizeTypes(input.Types)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var existing int64
	if err := database.DB.Model(&models.Game{}).Where("name = ?", input.Name).Count(&existing).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to check existing games"})
		return
	}
	if existing > 0 {
		c.JSON(http.StatusConflict, gin.H{"error": "Game already exists"})
		return
	}

	game := models.Game{
		Name:              input.Name,
		Color:             input.Color,
		Background:        input.Background,
		ReshuffleDiscards: input.ReshuffleDiscards,
	}
	for _, name := range types {
		game.Types = append(game.Types, models.CardType{Name: name})
	}

	if err := database.DB.Create(&game).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create game"})
		return
	}

	c.JSON(http.StatusCreated, newGameResponse(game))
}

// AddCard godoc
// @Summary      Add a card to a game
// @Description  Adds a card to the game's catalog. The type must be one of the game's card types.
// @Tags         admin-games
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        name  path string    true "Game name"
// @Param        input body CardInput true "Card Info"
// @Success      201  {object}  CardResponse
// @Failure      400  {object}  ErrorResponse
// @Failure      403  {object}  ErrorResponse "Admin access required"
// @Failure      404  {object}  ErrorResponse "Game not found"
// @Failure      409  {object}  ErrorResponse "Card title already used in this game"
// @Router       /admin/games/{name}/cards [post]
func AddCard(c *gin.Context) {
	var input CardInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	input.Title = strings.TrimSpace(input.Title)
	if input.Title == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Card title is required"})
		return
	}

	var game models.Game
	if err := database.DB.Preload("Types").First(&game, "name = ?", c.Param("name")).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Game not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load game"})
		return
	}

	if !game.HasType(input.Type) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Unknown card type " + input.Type + ", expected one of: " + strings.Join(game.TypeNames(), ", "),
		})
		return
	}

	var taken int64
	if err := database.DB.Model(&models.Card{}).Where("game_name = ? AND title = ?", game.Name, input.Title).Count(&taken).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to check existing cards"})
		return
	}
	if taken > 0 {
		c.JSON(http.StatusConflict, gin.H{"error": "Card title already used in this game"})
		return
	}

	card := models.Card{
		GameName:    game.Name,
		Title:       input.Title,
		Description: input.Description,
		Type:        input.Type,
	}
	if err := database.DB.Create(&card).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to add card"})
		return
	}

	c.JSON(http.StatusCreated, newCardResponse(card))
}

// endregion

// region --- Public Handlers ---

// GetGames godoc
// @Summary      Get a list of games
// @Description  Retrieves a paginated list of games, with optional filtering by name.
// @Tags         games
// @Produce      json
// @Param        q     query string false "Search query for game name"
// @Param        page  query int    false "Page number" default(1)
// @Param        limit query int    false "Items per page" default(10)
// @Success      200 {object} PaginatedResponse[GameResponse]
// @Failure      500 {object} ErrorResponse
// @Router       /games [get]
func GetGames(c *gin.Context) {
	page, limit := pageParams(c)

	dbQuery := database.DB.Model(&models.Game{}).Order("name")
	if q := c.Query("q"); q != "" {
		dbQuery = dbQuery.Where("name ILIKE ?", "%"+q+"%")
	}

	games, err := Paginate(dbQuery, page, limit, identity[models.Game])
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve games"})
		return
	}

	// Types are fetched in one query for the whole page.
	names := make([]string, 0, len(games.Data))
	for _, g := range games.Data {
		names = append(names, g.Name)
	}
	typesByGame := make(map[string][]models.CardType)
	if len(names) > 0 {
		var types []models.CardType
		if err := database.DB.Where("game_name IN ?", names).Order("id").Find(&types).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve card types"})
			return
		}
		for _, t := range types {
			typesByGame[t.GameName] = append(typesByGame[t.GameName], t)
		}
	}

	response := make([]GameResponse, 0, len(games.Data))
	for _, g := range games.Data {
		g.Types = typesByGame[g.Name]
		response = append(response, newGameResponse(g))
	}

	c.JSON(http.StatusOK, NewPaginatedResponse(response, games.Meta.TotalItems, page, limit))
}

// GetGameByName godoc
// @Summary      Get a single game
// @Description  Retrieves a game with its card types and a page of its cards, optionally filtered by type.
// @Tags         games
// @Produce      json
// @Param        name  path  string true  "Game name"
// @Param        type  query string false "Only cards of this type"
// @Param        page  query int    false "Page number" default(1)
// @Param        limit query int    false "Items per page" default(10)
// @Success      200 {object} GameDetailResponse
// @Failure      404 {object} ErrorResponse "Game not found"
// @Router       /games/{name} [get]
func GetGameByName(c *gin.Context) {
	page, limit := pageParams(c)

	var game models.Game
	if err := database.DB.Preload("Types").First(&game, "name = ?", c.Param("name")).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Game not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load game"})
		return
	}

	cardQuery := database.DB.Model(&models.Card{}).Where("game_name = ?", game.Name).Order("title")
	if t := c.Query("type"); t != "" {
		cardQuery = cardQuery.Where("type = ?", t)
	}

	cards, err := Paginate(cardQuery, page, limit, newCardResponse)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve cards"})
		return
	}

	c.JSON(http.StatusOK, GameDetailResponse{
		GameResponse: newGameResponse(game),
		Cards:        cards,
	})
}

// Helper to trim and dedupe card type names
func normalizeTypes(in []string) ([]string, error) {
	seen := make(map[string]bool, len(in))
	var out []string
	for _, raw := range in {
		name := strings.TrimSpace(raw)
		if name == "" {
			return nil, errors.New("card type names must not be empty")
		}
		if seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, name)
	}
	return out, nil
}

// endregion
