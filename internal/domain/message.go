package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

const MaxMessageLen = 4000

var ErrMessageEmpty = errors.New("message has neither text nor image")

type MessageID string

// Reaction is a single user's emoji on a message. A user holds at most one
// reaction per message; reacting again replaces the emoji.
type Reaction struct {
	UserID UserID `json:"userId"`
	Emoji  string `json:"emoji"`
}

type Message struct {
	ID         MessageID  `json:"id"`
	SenderID   UserID     `json:"senderId"`
	ReceiverID UserID     `json:"receiverId"`
	Text       string     `json:"text,omitempty"`
	ImageURL   string     `json:"image,omitempty"`
	Reactions  []Reaction `json:"reactions,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
}

func NewMessage(sender, receiver UserID, text, imageURL string) (*Message, error) {
	if text == "" && imageURL == "" {
		return nil, ErrMessageEmpty
	}
	if len(text) > MaxMessageLen {
		text = text[:MaxMessageLen]
	}
	return &Message{
		ID:         MessageID(uuid.NewString()),
		SenderID:   sender,
		ReceiverID: receiver,
		Text:       text,
		ImageURL:   imageURL,
		CreatedAt:  time.Now().UTC(),
	}, nil
}
