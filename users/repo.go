package users

import "context"

// ProfileRepo is the read side the session reconciler needs: the profile
// for an identity the provider has authenticated.
type ProfileRepo interface {
	// GetByID returns errors.ErrNotFound when no profile exists
	GetByID(ctx context.Context, id string) (*User, error)
}

type Repo interface {
	ProfileRepo
	Upsert(ctx context.Context, user *User) error
	Delete(ctx context.Context, id string) error
	GetByEmail(ctx context.Context, email string) (*User, error)
	List(ctx context.Context, offset, limit int) ([]*User, error)
	SetDisabled(ctx context.Context, id string, disabled bool) error
}
