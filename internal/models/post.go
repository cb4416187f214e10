package models

import "time"

type Thread struct {
	ID        string    `gorm:"type:uuid;primaryKey" json:"id"`
	Title     string    `gorm:"not null" json:"title"`
	Category  string    `json:"category"`
	AuthorID  string    `gorm:"type:uuid" json:"author_id"`
	IsPinned  bool      `json:"is_pinned"`
	ViewCount int       `json:"view_count"`
	CreatedAt time.Time `json:"created_at"`
}

// Post is a reply inside a thread. Posts are never edited once created.
type Post struct {
	ID        string    `gorm:"type:uuid;primaryKey" json:"id"`
	ThreadID  string    `gorm:"type:uuid;index" json:"thread_id"`
	AuthorID  string    `gorm:"type:uuid" json:"author_id"`
	Content   string    `json:"content"`
	ImageURL  *string   `json:"image_url"`
	CreatedAt time.Time `json:"created_at"`
	Author    User      `gorm:"foreignKey:AuthorID" json:"author"`
}

func (p Post) EntryID() string      { return p.ID }
func (p Post) EntryTime() time.Time { return p.CreatedAt }

// CreateThreadRequest opens a thread together with its first post.
type CreateThreadRequest struct {
	Title    string  `json:"title" binding:"required,max=300"`
	Category string  `json:"category" binding:"max=100"`
	Content  string  `json:"content"`
	ImageURL *string `json:"image_url"`
}

type CreatePostRequest struct {
	Content  string  `json:"content"`
	ImageURL *string `json:"image_url"`
}
