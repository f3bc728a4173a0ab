package handlers

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"learner-chat/internal/models"
	"learner-chat/internal/observability"
	"learner-chat/internal/repositories"
	"learner-chat/internal/service"
	"learner-chat/internal/telemetry"
)

// chatService is the orchestration surface the handlers need.
type chatService interface {
	GetMessages(ctx context.Context, courseID string, chatType models.ChatType, caller service.Caller) (models.RoomView, error)
	PostMessage(ctx context.Context, courseID string, chatType models.ChatType, caller service.Caller, rawText string) (models.MessageView, error)
	DeleteMessage(ctx context.Context, courseID string, chatType models.ChatType, messageID int, caller service.Caller) error
}

// ChatHandler manages the learner chat endpoints.
type ChatHandler struct {
	service chatService
	audit   *telemetry.AuditEmitter
}

// NewChatHandler constructs a ChatHandler.
func NewChatHandler(svc chatService, audit *telemetry.AuditEmitter) *ChatHandler {
	return &ChatHandler{service: svc, audit: audit}
}

// GetMessages handles GET /api/learner_chat/:course_id/:chat_type/messages.
func (h *ChatHandler) GetMessages(c *gin.Context) {
	courseID, chatType, ok := parseRoomPath(c)
	if !ok {
		return
	}

	view, err := h.service.GetMessages(c.Request.Context(), courseID, chatType, callerFromContext(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// PostMessage handles POST /api/learner_chat/:course_id/:chat_type/messages.
func (h *ChatHandler) PostMessage(c *gin.Context) {
	courseID, chatType, ok := parseRoomPath(c)
	if !ok {
		return
	}

	var req struct {
		Message string `json:"message" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.emitAudit(c, "ERROR", "invalid request payload")
		c.JSON(http.StatusBadRequest, gin.H{"error": "message is required"})
		return
	}

	msg, err := h.service.PostMessage(c.Request.Context(), courseID, chatType, callerFromContext(c), req.Message)
	if err != nil {
		h.respondError(c, err)
		return
	}

	h.emitAudit(c, "INFO", "Chat message sent")
	c.JSON(http.StatusCreated, msg)
}

// DeleteMessage handles DELETE /api/learner_chat/:course_id/:chat_type/messages/:message_id.
func (h *ChatHandler) DeleteMessage(c *gin.Context) {
	courseID, chatType, ok := parseRoomPath(c)
	if !ok {
		return
	}
	messageID, err := strconv.Atoi(c.Param("message_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid message id"})
		return
	}

	if err := h.service.DeleteMessage(c.Request.Context(), courseID, chatType, messageID, callerFromContext(c)); err != nil {
		h.respondError(c, err)
		return
	}

	h.emitAudit(c, "INFO", "Chat message deleted")
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *ChatHandler) respondError(c *gin.Context, err error) {
	status := statusFromError(err)
	switch status {
	case http.StatusInternalServerError:
		h.emitAudit(c, "ERROR", "internal error")
		log.Printf("chat request failed: %v", err)
		c.JSON(status, gin.H{"error": "internal error"})
	case http.StatusBadGateway:
		h.emitAudit(c, "ERROR", "identity service unavailable")
		log.Printf("chat request failed: %v", err)
		c.JSON(status, gin.H{"error": "identity service unavailable"})
	default:
		h.emitAudit(c, "ERROR", err.Error())
		c.JSON(status, gin.H{"error": err.Error()})
	}
}

func statusFromError(err error) int {
	switch {
	case errors.Is(err, models.ErrInvalidChatType),
		errors.Is(err, repositories.ErrEmptyMessage),
		errors.Is(err, service.ErrMessageTooLong),
		errors.Is(err, service.ErrRoomMismatch):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrNotEnrolled),
		errors.Is(err, repositories.ErrPermissionDenied):
		return http.StatusForbidden
	case errors.Is(err, repositories.ErrMessageNotFound):
		return http.StatusNotFound
	case errors.Is(err, repositories.ErrMessageAlreadyDeleted):
		return http.StatusConflict
	case errors.Is(err, service.ErrIdentityUnavailable):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func parseRoomPath(c *gin.Context) (string, models.ChatType, bool) {
	courseID := c.Param("course_id")
	if courseID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid course id"})
		return "", "", false
	}
	chatType, err := models.ParseChatType(c.Param("chat_type"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return "", "", false
	}
	return courseID, chatType, true
}

func callerFromContext(c *gin.Context) service.Caller {
	return service.Caller{
		ID:          c.GetInt("userID"),
		Username:    c.GetString("username"),
		DisplayName: c.GetString("displayName"),
	}
}

func (h *ChatHandler) emitAudit(c *gin.Context, level, text string) {
	if h.audit == nil {
		return
	}
	h.audit.Emit(c.Request.Context(), level, text, requestIDFromContext(c), observability.IPFromRequest(c.Request), userIDFromContext(c))
}
