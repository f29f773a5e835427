package domain

import (
	"time"

	"github.com/google/uuid"
)

type CreationType string

const CreationImage CreationType = "image"

// Creation is one appended record of a successful AI edit. Records are
// written once and never updated. UserID is the subject of the caller that
// produced it.
type Creation struct {
	ID        string       `json:"id" bson:"_id"`
	UserID    string       `json:"userId" bson:"userId"`
	Prompt    string       `json:"prompt" bson:"prompt"`
	Content   string       `json:"content" bson:"content"`
	Type      CreationType `json:"type" bson:"type"`
	Publish   bool         `json:"publish" bson:"publish"`
	CreatedAt time.Time    `json:"createdAt" bson:"createdAt"`
	UpdatedAt time.Time    `json:"updatedAt" bson:"updatedAt"`
}

func NewCreation(userID, prompt, content string, publish bool, now time.Time) Creation {
	now = now.UTC()
	return Creation{
		ID:        uuid.NewString(),
		UserID:    userID,
		Prompt:    prompt,
		Content:   content,
		Type:      CreationImage,
		Publish:   publish,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// CreationFilter selects creations. UserID and PublishedOnly are ANDed; an
// empty UserID does not restrict by owner.
type CreationFilter struct {
	UserID        string
	PublishedOnly bool
	Limit         int
}

// Matches reports whether c passes the owner and publish conditions.
func (f CreationFilter) Matches(c Creation) bool {
	if f.PublishedOnly && !c.Publish {
		return false
	}
	return f.UserID == "" || c.UserID == f.UserID
}

// Normalize clamps the limit into [1, 200], defaulting to 50.
func (f CreationFilter) Normalize() CreationFilter {
	if f.Limit <= 0 {
		f.Limit = 50
	}
	if f.Limit > 200 {
		f.Limit = 200
	}
	return f
}

// Image is an uploaded picture handed to the synchronous editing features.
type Image struct {
	Data     []byte
	FileName string
	MIMEType string
}
