package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

type FriendRequestStatus string

const (
	FriendRequestPending  FriendRequestStatus = "pending"
	FriendRequestAccepted FriendRequestStatus = "accepted"
)

var ErrSelfFriendRequest = errors.New("cannot send a friend request to yourself")

type FriendRequest struct {
	ID         string              `json:"id"`
	SenderID   UserID              `json:"senderId"`
	ReceiverID UserID              `json:"receiverId"`
	Status     FriendRequestStatus `json:"status"`
	CreatedAt  time.Time           `json:"createdAt"`
}

func NewFriendRequest(sender, receiver UserID) (*FriendRequest, error) {
	if sender == receiver {
		return nil, ErrSelfFriendRequest
	}
	return &FriendRequest{
		ID:         uuid.NewString(),
		SenderID:   sender,
		ReceiverID: receiver,
		Status:     FriendRequestPending,
		CreatedAt:  time.Now().UTC(),
	}, nil
}
