package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/example/inbox/internal/logger"
	"github.com/example/inbox/internal/ports/primary"
	"github.com/example/inbox/internal/version"
)

// Handlers contains the HTTP handlers for the conversation API.
type Handlers struct {
	svc primary.ConversationService
}

// NewHandlers creates handlers for the given service.
func NewHandlers(svc primary.ConversationService) *Handlers {
	return &Handlers{svc: svc}
}

// HandleStart handles POST /v1/conversations.
//
// Finds or creates the caller's conversation with the recipient, posting
// content to it when present.
//
//	201 Created: conversation created
//	200 OK: existing conversation returned
func (h *Handlers) HandleStart(c *gin.Context) {
	var req StartConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}
	actor := c.GetString(actorKey)

	if req.Content == "" {
		resp, err := h.svc.StartConversation(c.Request.Context(), primary.StartConversationRequest{
			Initiator: actor,
			Recipient: req.Recipient,
			Topic:     req.Topic,
		})
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(createdStatus(resp.Created), resp)
		return
	}

	resp, err := h.svc.StartAndSend(c.Request.Context(), primary.StartAndSendRequest{
		Sender:    actor,
		Recipient: req.Recipient,
		Topic:     req.Topic,
		Content:   req.Content,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(createdStatus(resp.Created), resp)
}

// HandleList handles GET /v1/conversations.
func (h *Handlers) HandleList(c *gin.Context) {
	var q ListConversationsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		writeBindError(c, err)
		return
	}

	list, err := h.svc.ListConversations(c.Request.Context(), c.GetString(actorKey), q.Limit)
	if err != nil {
		writeError(c, err)
		return
	}
	if list == nil {
		list = []*primary.ConversationSummary{}
	}
	c.JSON(http.StatusOK, ListConversationsResponse{Conversations: list})
}

// HandleOpen handles GET /v1/conversations/:id, marking it read for the caller.
func (h *Handlers) HandleOpen(c *gin.Context) {
	conv, err := h.svc.OpenConversation(c.Request.Context(), c.Param("id"), c.GetString(actorKey))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, conv)
}

// HandleSend handles POST /v1/conversations/:id/messages.
func (h *Handlers) HandleSend(c *gin.Context) {
	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}

	msg, err := h.svc.SendMessage(c.Request.Context(), primary.SendMessageRequest{
		ConversationID: c.Param("id"),
		Sender:         c.GetString(actorKey),
		Content:        req.Content,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, msg)
}

// HandleDelete handles DELETE /v1/conversations/:id.
func (h *Handlers) HandleDelete(c *gin.Context) {
	id := c.Param("id")
	actor := c.GetString(actorKey)
	if err := h.svc.DeleteConversation(c.Request.Context(), id, actor); err != nil {
		writeError(c, err)
		return
	}

	logger.Log.Info("conversation deleted via api",
		zap.String("conversation_id", id),
		zap.String("actor", actor),
		zap.String("request_id", c.GetString(logger.RequestIDKey)))
	c.Status(http.StatusNoContent)
}

// HandleUnread handles GET /v1/unread, the badge polling endpoint.
func (h *Handlers) HandleUnread(c *gin.Context) {
	actor := c.GetString(actorKey)
	total, err := h.svc.TotalUnread(c.Request.Context(), actor)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, UnreadResponse{User: actor, Total: total})
}

// HandleHealth handles GET /healthz.
func (h *Handlers) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{Status: "ok", Version: version.String()})
}

func createdStatus(created bool) int {
	if created {
		return http.StatusCreated
	}
	return http.StatusOK
}
