package httpapi

import (
	"errors"
	"net/http"

	"github.com/connectify/connectify/internal/domain"
	"github.com/connectify/connectify/internal/store"
	"github.com/gin-gonic/gin"
)

func (a *API) handleListFriends(c *gin.Context) {
	friends, err := a.Store.Friends(c.Request.Context(), currentUserID(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	if friends == nil {
		friends = []domain.User{}
	}
	c.JSON(http.StatusOK, friends)
}

func (a *API) handleIncomingRequests(c *gin.Context) {
	reqs, err := a.Store.IncomingFriendRequests(c.Request.Context(), currentUserID(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	if reqs == nil {
		reqs = []domain.FriendRequest{}
	}
	c.JSON(http.StatusOK, reqs)
}

func (a *API) handleSendFriendRequest(c *gin.Context) {
	receiver := domain.UserID(c.Param("id"))
	fr, err := domain.NewFriendRequest(currentUserID(c), receiver)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if _, err := a.Store.UserByID(c.Request.Context(), receiver); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}
	if err := a.Store.CreateFriendRequest(c.Request.Context(), fr); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": "request already exists"})
		return
	}
	c.JSON(http.StatusCreated, fr)
}

func (a *API) handleAcceptFriendRequest(c *gin.Context) {
	err := a.Store.AcceptFriendRequest(c.Request.Context(), c.Param("id"), currentUserID(c))
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "request not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "accepted"})
}
