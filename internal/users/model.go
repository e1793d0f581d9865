package users

import "time"

// User is a registered account. PasswordHash is a bcrypt hash and never
// leaves the package boundary in responses.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"passwordHash"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Profile is the public view of a user.
type Profile struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Username string `json:"username"`
}

func (u User) Profile() Profile {
	return Profile{ID: u.ID, Email: u.Email, Username: u.Username}
}
