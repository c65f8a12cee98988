package core

import "time"

type (
	// User is the authenticated identity minted by the auth boundary.
	// Subject is the stable id ("github:123" or an OIDC sub) that scopes
	// every card and every storage path.
	User struct {
		Subject   string    `json:"subject"`
		Login     string    `json:"login"`
		Email     string    `json:"email"`
		AvatarURL string    `json:"avatarUrl"`
		Name      string    `json:"name"`
		CreatedAt time.Time `json:"createdAt"`
	}
)
