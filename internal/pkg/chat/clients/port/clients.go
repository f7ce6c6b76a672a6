// Package port declares the contracts for the three upstream collaborators
// of the delivery engine: authentication, reservations and user profiles.
package port

import "context"

// Identity describes the authenticated caller as reported by the user
// service.
type Identity struct {
	ID    string   `json:"id"`
	Email string   `json:"email"`
	Name  string   `json:"name"`
	Roles []string `json:"roles"`
}

// PublicProfile is the display metadata of one user.
type PublicProfile struct {
	ID        string `json:"id"`
	Sub       string `json:"sub"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	AvatarURL string `json:"avatarUrl"`
}

// ReservationService answers pairwise chat-permission questions.
type ReservationService interface {
	// CanChat reports whether the bearer's owner may chat with withUserID.
	// Any upstream failure is treated as a denial.
	CanChat(ctx context.Context, bearer, withUserID string) bool

	// CounterpartIDs lists the user ids the caller holds a chat-enabling
	// reservation with.
	CounterpartIDs(ctx context.Context, bearer, myID string) ([]string, error)
}

// UserService exposes identity and profile lookups.
type UserService interface {
	MyRoles(ctx context.Context, bearer string) (*Identity, error)
	PublicProfileByID(ctx context.Context, id string) (*PublicProfile, error)
	PublicProfileBySub(ctx context.Context, sub string) (*PublicProfile, error)
}
