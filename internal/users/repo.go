package users

import "context"

// Repository stores users. Create must reject a user whose email or
// username (case-insensitive) is already taken with errx.Conflict.
type Repository interface {
	Create(ctx context.Context, user User) (User, error)
	GetByID(ctx context.Context, id string) (User, error)
	// FindByLogin matches identifier against email or username.
	FindByLogin(ctx context.Context, identifier string) (User, error)
	Count(ctx context.Context) (int, error)
}
