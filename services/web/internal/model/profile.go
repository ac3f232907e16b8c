package model

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// Profile is the durable internal user record. Sub holds the canonical
// identity key; a profile is created once and never updated by login.
type Profile struct {
	ID        bson.ObjectID `bson:"_id,omitempty"   json:"id"`
	Sub       string        `bson:"sub"             json:"sub"`
	Name      string        `bson:"name"            json:"name"`
	Email     string        `bson:"email,omitempty" json:"email,omitempty"`
	Provider  string        `bson:"provider"        json:"provider"`
	CreatedAt time.Time     `bson:"created_at"      json:"created_at"`
}
