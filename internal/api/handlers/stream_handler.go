package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"go-feature-platform/internal/services/stream"
)

type StreamHandler struct {
	router *stream.Router
	logger *logrus.Logger
}

func NewStreamHandler(router *stream.Router, logger *logrus.Logger) *StreamHandler {
	return &StreamHandler{router: router, logger: logger}
}

// Serve handles GET /ws/feature; it upgrades the connection and hands it to
// the stream router. The client must send a register message before it
// receives any run events.
func (h *StreamHandler) Serve(c *gin.Context) {
	stream.ServeWS(h.router, h.logger, c.Writer, c.Request)
}

// Connected handles GET /api/v1/stream/clients; a small operational
// endpoint reporting whether a live connection exists for a client id.
func (h *StreamHandler) Connected(c *gin.Context) {
	clientID := c.Query("client_id")
	if clientID == "" {
		respondError(c, http.StatusBadRequest, "client_id is required")
		return
	}
	respondOK(c, gin.H{"client_id": clientID, "connected": h.router.Connected(clientID)})
}
