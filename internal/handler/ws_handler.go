package handler

import (
	"context"
	"errors"
	"time"

	"cardtable/backend/internal/hub"

	"github.com/coder/websocket"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// maxFrameBytes bounds one inbound frame. Client messages are small JSON objects.
const maxFrameBytes = 16 << 10

// SocketOptions tunes the websocket transport.
type SocketOptions struct {
	WriteTimeout time.Duration
	PingInterval time.Duration
	// OriginPatterns lists the extra origins allowed to open a socket (e.g., "localhost:5173").
	OriginPatterns []string
}

func (o SocketOptions) withDefaults() SocketOptions {
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 10 * time.Second
	}
	if o.PingInterval <= 0 {
		o.PingInterval = 30 * time.Second
	}
	return o
}

// ServeWS upgrades to a websocket carrying JSON frames. Clients send SESSION_EVENT and
// PLAYER_EVENT; they receive SYNC_EVENT, LOBBY_EVENT, GAME_EVENT and ERROR_EVENT. Closing the
// connection leaves every session it was seated in.
func (h *SessionHandler) ServeWS(c *gin.Context) {
	conn, err := websocket.Accept(c.Writer, c.Request, &websocket.AcceptOptions{
		OriginPatterns: h.Socket.OriginPatterns,
	})
	if err != nil {
		// Accept already wrote the HTTP error.
		h.Log.WithError(err).Debug("websocket upgrade failed")
		return
	}
	conn.SetReadLimit(maxFrameBytes)

	client := h.Hub.Connect()
	log := h.Log.WithField("client", client.ID)

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		h.writePump(ctx, conn, client, log)
		// A writer failure must unblock the reader.
		cancel()
	}()

	h.readPump(ctx, conn, client, log)

	cancel()
	h.Hub.Disconnect(client)
	<-writerDone
	conn.Close(websocket.StatusNormalClosure, "")
}

// readPump feeds inbound frames to the hub until the connection ends.
func (h *SessionHandler) readPump(ctx context.Context, conn *websocket.Conn, client *hub.Client, log *logrus.Entry) {
	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway || errors.Is(err, context.Canceled) {
				log.Debug("connection closed")
			} else {
				log.WithError(err).Info("read failed")
			}
			return
		}
		if typ != websocket.MessageText {
			log.Debug("ignoring binary frame")
			continue
		}
		h.Hub.HandleFrame(ctx, client, data)
	}
}

// writePump drains the client's queue in order and keeps the connection alive.
func (h *SessionHandler) writePump(ctx context.Context, conn *websocket.Conn, client *hub.Client, log *logrus.Entry) {
	ticker := time.NewTicker(h.Socket.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-client.Done():
			log.Warn("client fell behind, closing connection")
			conn.Close(websocket.StatusPolicyViolation, "too slow")
			return
		case frame, ok := <-client.Send():
			if !ok {
				return
			}
			if err := h.write(ctx, conn, frame); err != nil {
				log.WithError(err).Info("write failed")
				return
			}
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, h.Socket.WriteTimeout)
			err := conn.Ping(pingCtx)
			cancel()
			if err != nil {
				log.WithError(err).Info("ping failed")
				return
			}
		}
	}
}

func (h *SessionHandler) write(ctx context.Context, conn *websocket.Conn, frame []byte) error {
	writeCtx, cancel := context.WithTimeout(ctx, h.Socket.WriteTimeout)
	defer cancel()
	return conn.Write(writeCtx, websocket.MessageText, frame)
}
