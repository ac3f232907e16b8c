package model

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// LoginTransaction binds an authorization request to its callback. It is
// looked up by State and consumed exactly once.
type LoginTransaction struct {
	ID           bson.ObjectID `bson:"_id,omitempty"`
	State        string        `bson:"state"`
	Nonce        string        `bson:"nonce"`
	CodeVerifier string        `bson:"code_verifier"`
	ReturnTo     string        `bson:"return_to,omitempty"`
	Used         bool          `bson:"used"`
	ExpiresAt    time.Time     `bson:"expires_at"`
	CreatedAt    time.Time     `bson:"created_at"`
}
