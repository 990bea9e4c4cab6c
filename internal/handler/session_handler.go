package handler

import (
	"context"
	"errors"
	"net/http"

	"cardtable/backend/internal/hub"
	"cardtable/backend/internal/session"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// SummaryLister lists sessions hosted by every server process.
type SummaryLister interface {
	List(ctx context.Context) ([]session.Summary, error)
}

// SessionHandler serves live sessions: listings over HTTP and play over /ws.
type SessionHandler struct {
	Hub *hub.Hub
	// Directory is nil when no shared directory is configured.
	Directory SummaryLister
	Log       *logrus.Logger
	Socket    SocketOptions
}

// NewSessionHandler creates a handler over h.
func NewSessionHandler(h *hub.Hub, directory SummaryLister, log *logrus.Logger, socket SocketOptions) *SessionHandler {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &SessionHandler{
		Hub:       h,
		Directory: directory,
		Log:       log,
		Socket:    socket.withDefaults(),
	}
}

// ListSessions godoc
// @Summary      List live sessions
// @Description  Lists the sessions hosted by this server, optionally only those of one game.
// @Tags         sessions
// @Produce      json
// @Param        game query string false "Only sessions of this game"
// @Success      200 {array} session.Summary
// @Router       /sessions [get]
func (h *SessionHandler) ListSessions(c *gin.Context) {
	c.JSON(http.StatusOK, filterByGame(h.Hub.Store().List(), c.Query("game")))
}

// GetSession godoc
// @Summary      Get a live session
// @Description  Summarizes one session hosted by this server.
// @Tags         sessions
// @Produce      json
// @Param        name path string true "Session name"
// @Success      200 {object} session.Summary
// @Failure      404 {object} ErrorResponse "Session not found"
// @Router       /sessions/{name} [get]
func (h *SessionHandler) GetSession(c *gin.Context) {
	sum, err := h.Hub.Store().Get(c.Param("name"))
	if errors.Is(err, session.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, sum)
}

// ListDirectory godoc
// @Summary      List sessions across servers
// @Description  Lists the sessions of every server sharing the directory, optionally only those of one game.
// @Tags         sessions
// @Produce      json
// @Param        game query string false "Only sessions of this game"
// @Success      200 {array} session.Summary
// @Failure      503 {object} ErrorResponse "No directory configured"
// @Failure      502 {object} ErrorResponse "Directory unavailable"
// @Router       /directory [get]
func (h *SessionHandler) ListDirectory(c *gin.Context) {
	if h.Directory == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "No directory configured"})
		return
	}
	sums, err := h.Directory.List(c.Request.Context())
	if err != nil {
		h.Log.WithError(err).Warn("directory listing failed")
		c.JSON(http.StatusBadGateway, gin.H{"error": "Directory unavailable"})
		return
	}
	c.JSON(http.StatusOK, filterByGame(sums, c.Query("game")))
}

func filterByGame(sums []session.Summary, game string) []session.Summary {
	out := make([]session.Summary, 0, len(sums))
	for _, s := range sums {
		if game == "" || s.Game == game {
			out = append(out, s)
		}
	}
	return out
}
