package model

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// SessionUser is the user block of a persisted session. Sub is always the
// canonical identity key, never the provider-qualified subject.
type SessionUser struct {
	Sub      string `bson:"sub"                json:"sub"`
	OAuth    string `bson:"oauth"              json:"oauth"`
	Name     string `bson:"name,omitempty"     json:"name,omitempty"`
	Nickname string `bson:"nickname,omitempty" json:"nickname,omitempty"`
	Email    string `bson:"email,omitempty"    json:"email,omitempty"`
	Picture  string `bson:"picture,omitempty"  json:"picture,omitempty"`
	IDToken  string `bson:"id_token"           json:"-"`
}

// EnrichedSession is the session as written to the session store.
type EnrichedSession struct {
	ID        bson.ObjectID `bson:"_id,omitempty"`
	SessionID string        `bson:"session_id"`
	User      SessionUser   `bson:"user"`
	ExpiresAt time.Time     `bson:"expires_at"`
	CreatedAt time.Time     `bson:"created_at"`
	UpdatedAt time.Time     `bson:"updated_at"`
}

// NewEnrichedSession builds the persisted form of base with the three derived
// fields replaced. Every other user field is carried over unchanged.
func NewEnrichedSession(base RawSession, sub, oauth, idToken string) EnrichedSession {
	return EnrichedSession{
		User: SessionUser{
			Sub:      sub,
			OAuth:    oauth,
			Name:     base.User.Name,
			Nickname: base.User.Nickname,
			Email:    base.User.Email,
			Picture:  base.User.Picture,
			IDToken:  idToken,
		},
	}
}
