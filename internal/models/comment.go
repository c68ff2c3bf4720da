package models

import "time"

type Comment struct {
	ID        string      `json:"_id"`
	PostID    string      `json:"postId"`
	UserID    string      `json:"userId"`
	Content   string      `json:"content"`
	CreatedAt time.Time   `json:"createdAt"`
	UpdatedAt *time.Time  `json:"updatedAt,omitempty"`
	Author    *PublicUser `json:"user,omitempty"`
}
