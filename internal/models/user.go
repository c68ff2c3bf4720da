package models

import "time"

type User struct {
	ID             string     `json:"_id"`
	Username       string     `json:"username"`
	Email          string     `json:"email"`
	Name           string     `json:"name"`
	Picture        *string    `json:"picture,omitempty"`
	HashedPassword string     `json:"-"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      *time.Time `json:"updatedAt,omitempty"`
}

// PublicUser is what other users get to see of an account.
type PublicUser struct {
	ID       string  `json:"_id"`
	Email    string  `json:"email"`
	Name     string  `json:"name"`
	Username string  `json:"username"`
	Picture  *string `json:"picture,omitempty"`
}

func (u *User) GetPicture() string {
	if u.Picture != nil {
		return *u.Picture
	}
	return ""
}

func (u *User) Public() PublicUser {
	return PublicUser{
		ID:       u.ID,
		Email:    u.Email,
		Name:     u.Name,
		Username: u.Username,
		Picture:  u.Picture,
	}
}
