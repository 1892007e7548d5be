package handler

import (
	"net/http"

	"github.com/cribnosh/verify-api/internal/model"
	"github.com/cribnosh/verify-api/internal/ws"
	"github.com/cribnosh/verify-api/pkg/auth"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// EventsHandler serves the admin feed of OTP lifecycle events
type EventsHandler struct {
	hub        *ws.Hub
	jwtManager *auth.JWTManager
	blacklist  auth.Blacklist
	upgrader   websocket.Upgrader
}

func NewEventsHandler(hub *ws.Hub, jwtManager *auth.JWTManager, blacklist auth.Blacklist, origins []string) *EventsHandler {
	return &EventsHandler{
		hub:        hub,
		jwtManager: jwtManager,
		blacklist:  blacklist,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     allowOrigins(origins),
		},
	}
}

// allowOrigins accepts requests without an Origin header (non-browser
// clients) and browsers from the CORS allow list. "*" allows everything.
func allowOrigins(origins []string) func(r *http.Request) bool {
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		allowed[o] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || allowed["*"] || allowed[origin]
	}
}

// Stream godoc
// @Summary Live feed of OTP lifecycle events
// @Description Upgrades to a WebSocket. Browsers cannot set headers on upgrade, so the admin token goes in the query string.
// @Tags Admin
// @Param token query string true "Admin JWT"
// @Success 101
// @Failure 401 {object} model.ErrorResponse
// @Router /ws/events [get]
func (h *EventsHandler) Stream(c *gin.Context) {
	tokenString := c.Query("token")
	if tokenString == "" {
		c.JSON(http.StatusUnauthorized, model.ErrorResponse{Error: "unauthorized", Message: "Token required"})
		return
	}

	revoked, err := h.blacklist.IsRevoked(c.Request.Context(), tokenString)
	if err != nil {
		zap.L().Error("token blacklist unavailable", zap.Error(err))
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{Error: "internal", Message: "Auth server error"})
		return
	}
	claims, err := h.jwtManager.ValidateToken(tokenString)
	if revoked || err != nil {
		c.JSON(http.StatusUnauthorized, model.ErrorResponse{Error: "unauthorized", Message: "Invalid token"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade has already written the HTTP error
		zap.L().Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	client := ws.NewClient(h.hub, conn, claims.Username)
	h.hub.Register(client)

	go client.WritePump()
	go client.ReadPump()
}
