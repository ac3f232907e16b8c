package usecase

import (
	"context"

	"github.com/vasapolrittideah/flowup/services/web/internal/identity"
	"github.com/vasapolrittideah/flowup/services/web/internal/model"
)

// EnrichSession rewrites the session user to its canonical form: sub becomes
// the canonical key, oauth the provider id, and the raw id token is attached.
func EnrichSession(session model.RawSession, id identity.CanonicalIdentity, idToken string) model.EnrichedSession {
	return model.NewEnrichedSession(session, id.Key, id.ProviderID, idToken)
}

// BeforeSessionSaved is the session-persistence hook. It uses the identity
// computed for this login event and only parses the subject when none is
// present on ctx.
func BeforeSessionSaved(ctx context.Context, session model.RawSession, idToken string) model.EnrichedSession {
	return EnrichSession(session, resolveIdentity(ctx, session), idToken)
}

func resolveIdentity(ctx context.Context, session model.RawSession) identity.CanonicalIdentity {
	if id, ok := identity.FromContext(ctx); ok {
		return id
	}
	return identity.Parse(session.User.ProviderQualifiedSub, identity.DefaultSeparator)
}
