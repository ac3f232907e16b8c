// Package identity turns provider-qualified subjects ("github|42") into the
// canonical identity key stored on profiles and sessions ("github-42").
package identity

import (
	"context"
	"strings"
)

// DefaultSeparator joins provider id and local id in the canonical key.
const DefaultSeparator = "-"

// EmailPasswordProvider is the provider id the identity service assigns to
// email/password accounts.
const EmailPasswordProvider = "auth"

const subjectDelimiter = "|"

// CanonicalIdentity is derived from a provider-qualified subject and never
// persisted on its own.
type CanonicalIdentity struct {
	ProviderID string
	LocalID    string
	// Key is ProviderID + separator + LocalID, empty when LocalID is undefined.
	Key string

	hasLocalID bool
}

// HasLocalID reports whether the subject carried a local id segment.
func (c CanonicalIdentity) HasLocalID() bool {
	return c.hasLocalID
}

// Parse splits rawSub on the first "|". It never fails: a subject without a
// pipe yields an identity whose local id is undefined, which callers must
// treat as malformed.
func Parse(rawSub, separator string) CanonicalIdentity {
	providerID, localID, found := strings.Cut(rawSub, subjectDelimiter)
	if !found {
		return CanonicalIdentity{ProviderID: providerID}
	}

	return CanonicalIdentity{
		ProviderID: providerID,
		LocalID:    localID,
		Key:        providerID + separator + localID,
		hasLocalID: true,
	}
}

type ctxKey struct{}

// NewContext stores the identity computed for the current login event.
func NewContext(ctx context.Context, id CanonicalIdentity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// FromContext returns the identity stored by NewContext.
func FromContext(ctx context.Context) (CanonicalIdentity, bool) {
	id, ok := ctx.Value(ctxKey{}).(CanonicalIdentity)
	return id, ok
}
