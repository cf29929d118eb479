package httpapi

import (
	"errors"
	"net/http"

	"github.com/connectify/connectify/internal/core"
	"github.com/connectify/connectify/internal/domain"
	"github.com/connectify/connectify/internal/store"
	"github.com/gin-gonic/gin"
)

func (a *API) handleListUsers(c *gin.Context) {
	users, err := a.Store.ListOtherUsers(c.Request.Context(), currentUserID(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	if users == nil {
		users = []domain.User{}
	}
	c.JSON(http.StatusOK, users)
}

func (a *API) handleGetMessages(c *gin.Context) {
	peer := domain.UserID(c.Param("id"))
	messages, err := a.Store.MessagesBetween(c.Request.Context(), currentUserID(c), peer)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	if messages == nil {
		messages = []domain.Message{}
	}
	c.JSON(http.StatusOK, messages)
}

type sendMessageRequest struct {
	Text  string `json:"text"`
	Image string `json:"image"`
}

// handleSendMessage persists the message, then pushes it to the receiver's
// live session if there is one. The push is fire-and-forget: an offline
// receiver reads history on next load.
func (a *API) handleSendMessage(c *gin.Context) {
	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid message payload"})
		return
	}

	msg, err := domain.NewMessage(currentUserID(c), domain.UserID(c.Param("id")), req.Text, req.Image)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := a.Store.CreateMessage(c.Request.Context(), msg); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	a.Router.Deliver(msg.ReceiverID, core.EventNewMessage, msg)
	c.JSON(http.StatusCreated, msg)
}

type reactRequest struct {
	Emoji string `json:"emoji" binding:"required"`
}

func (a *API) handleReact(c *gin.Context) {
	var req reactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid reaction payload"})
		return
	}

	messageID := domain.MessageID(c.Param("messageId"))
	msg, err := a.Store.MessageByID(c.Request.Context(), messageID)
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "message not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	reactions, err := a.Store.UpsertReaction(c.Request.Context(), messageID, currentUserID(c), req.Emoji)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	update := core.ReactionUpdate{MessageID: string(messageID), Reactions: reactions}
	a.Router.Deliver(msg.SenderID, core.EventMessageReaction, update)
	a.Router.Deliver(msg.ReceiverID, core.EventMessageReaction, update)

	c.JSON(http.StatusOK, reactions)
}
