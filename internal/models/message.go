package models

import "time"

// Message is a direct message. Read is the only field that changes after
// insert, and only the recipient flips it.
type Message struct {
	ID          string    `gorm:"type:uuid;primaryKey" json:"id"`
	SenderID    string    `gorm:"type:uuid;index" json:"sender_id"`
	RecipientID string    `gorm:"type:uuid;index" json:"recipient_id"`
	Content     string    `gorm:"not null" json:"content"`
	Read        bool      `gorm:"not null;default:false" json:"read"`
	CreatedAt   time.Time `json:"created_at"`
}

func (m Message) EntryID() string      { return m.ID }
func (m Message) EntryTime() time.Time { return m.CreatedAt }

// Involves reports whether userID sent or received the message.
func (m Message) Involves(userID string) bool {
	return m.SenderID == userID || m.RecipientID == userID
}

// Peer returns the other participant relative to self.
func (m Message) Peer(self string) string {
	if m.RecipientID == self {
		return m.SenderID
	}
	return m.RecipientID
}

type SendMessageRequest struct {
	RecipientID string `json:"recipient_id" binding:"required,uuid"`
	Content     string `json:"content" binding:"required"`
}
