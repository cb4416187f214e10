package models

import "time"

type VoteKind string

const (
	VoteUp   VoteKind = "up"
	VoteDown VoteKind = "down"
)

// Vote tracks one user's vote on one post. The composite key enforces at
// most one vote per (post, user).
type Vote struct {
	PostID    string    `gorm:"type:uuid;primaryKey" json:"post_id"`
	UserID    string    `gorm:"type:uuid;primaryKey" json:"user_id"`
	Kind      VoteKind  `gorm:"column:vote_type;not null" json:"vote_type"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type VoteRequest struct {
	VoteType VoteKind `json:"vote_type" binding:"required,oneof=up down"`
}
