package models

import "time"

type Post struct {
	ID        string    `json:"_id"`
	Message   string    `json:"message"`
	UserID    string    `json:"userId"`
	Likes     []string  `json:"likes"`
	ImageURL  *string   `json:"imageUrl,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
