package sessions

import "time"

// Session is one persistent dashboard refresh session. The system is
// single-user, so a session carries no subject, only its own lifetime.
type Session struct {
	RefreshToken string    `bson:"refreshToken" json:"refreshToken"`
	CreatedAt    time.Time `bson:"createdAt" json:"createdAt"`
	ExpiresAt    time.Time `bson:"expiresAt" json:"expiresAt"`
}
