package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/vkotler/micstage/internal/app"
	"github.com/vkotler/micstage/internal/auth"
	"github.com/vkotler/micstage/internal/core"
	"github.com/vkotler/micstage/internal/domain"
)

type handlers struct {
	Rooms    *core.Store
	Registry *app.Registry
	Gateway  *auth.HMACGateway
}

func (h *handlers) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":           "healthy",
		"timestamp":        time.Now(),
		"rooms_count":      h.Rooms.Len(),
		"connections":      h.Registry.Len(),
		"media_configured": h.Gateway.Configured(),
	})
}

func (h *handlers) listRooms(c *gin.Context) {
	rooms := h.Rooms.List()
	c.JSON(http.StatusOK, gin.H{
		"rooms": rooms,
		"total": len(rooms),
	})
}

func (h *handlers) roomDetail(c *gin.Context) {
	id := domain.NormalizeRoomID(c.Param("id"))
	detail, err := h.Rooms.Detail(id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Room not found"})
		return
	}
	c.JSON(http.StatusOK, detail)
}

type verifyRequest struct {
	Token string `json:"token"`
}

func (h *handlers) verifyIdentity(c *gin.Context) {
	var req verifyRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Token == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing or invalid token"})
		return
	}
	identity, err := h.Gateway.VerifyIdentity(c.Request.Context(), req.Token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "identity verification failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"identity": identity})
}

type credentialRequest struct {
	UserID string `json:"userId"`
	RoomID string `json:"roomId"`
}

func (h *handlers) mediaCredential(c *gin.Context) {
	var req credentialRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if req.UserID == "" {
		req.UserID = domain.GuestIdentity()
	}
	cred, err := h.Gateway.IssueMediaCredential(c.Request.Context(), req.UserID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to issue media credential"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"sdkAppId":   cred.AppID,
		"userId":     cred.UserID,
		"userSig":    cred.UserSig,
		"expireTime": cred.ExpireTime,
		"roomId":     req.RoomID,
		"mode":       cred.Mode,
		"success":    true,
	})
}
