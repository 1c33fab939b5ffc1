package presence

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	redisRepo "teamhub-backend/internal/repository/redis"
	"teamhub-backend/pkg/response"
)

// Handler handles presence HTTP requests
type Handler struct {
	presenceRepo *redisRepo.PresenceRepository
}

// NewHandler creates a new presence handler
func NewHandler(presenceRepo *redisRepo.PresenceRepository) *Handler {
	return &Handler{presenceRepo: presenceRepo}
}

// RegisterRoutes mounts the presence routes on an authenticated group
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/presence/online", h.OnlineUsers)
	rg.GET("/presence/:userId", h.UserPresence)
}

// OnlineUsers lists users currently online across all instances
// GET /v1/presence/online
func (h *Handler) OnlineUsers(c *gin.Context) {
	users, err := h.presenceRepo.GetOnlineUsers(c.Request.Context())
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"users": users,
		"count": len(users),
	})
}

// UserPresence reports whether a single user is online
// GET /v1/presence/:userId
func (h *Handler) UserPresence(c *gin.Context) {
	userID, err := uuid.Parse(c.Param("userId"))
	if err != nil {
		response.ValidationError(c, "Invalid user id")
		return
	}

	online, err := h.presenceRepo.IsUserOnline(c.Request.Context(), userID)
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"user_id": userID,
		"online":  online,
	})
}
