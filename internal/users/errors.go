package users

import "errors"

var (
	ErrMissingFields   = errors.New("all fields are required")
	ErrInvalidEmail    = errors.New("invalid email format")
	ErrShortUsername   = errors.New("username must be at least 3 characters")
	ErrShortPassword   = errors.New("password must be at least 6 characters")
	ErrUserExists      = errors.New("email or username already exists")
	ErrMissingLogin    = errors.New("email/username and password are required")
	ErrUserNotFound    = errors.New("user not found")
	ErrInvalidPassword = errors.New("invalid password")
)
