package usecase_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/vasapolrittideah/flowup/services/web/internal/identity"
	"github.com/vasapolrittideah/flowup/services/web/internal/model"
	"github.com/vasapolrittideah/flowup/services/web/internal/usecase"
)

func TestBeforeSessionSaved_RewritesSubject(t *testing.T) {
	session := model.RawSession{User: model.RawIdentity{
		ProviderQualifiedSub: "github|42",
		Name:                 "Ada",
		Nickname:             "ada",
		Email:                "ada@x.com",
		Picture:              "https://avatars.example/ada.png",
	}}

	enriched := usecase.BeforeSessionSaved(context.Background(), session, "id.token.value")

	assert.Equal(t, "github-42", enriched.User.Sub)
	assert.Equal(t, "github", enriched.User.OAuth)
	assert.Equal(t, "id.token.value", enriched.User.IDToken)
	assert.Equal(t, "Ada", enriched.User.Name)
	assert.Equal(t, "ada", enriched.User.Nickname)
	assert.Equal(t, "ada@x.com", enriched.User.Email)
	assert.Equal(t, "https://avatars.example/ada.png", enriched.User.Picture)
}

func TestBeforeSessionSaved_PrefersContextIdentity(t *testing.T) {
	ctx := identity.NewContext(context.Background(), identity.Parse("google-oauth2|7", identity.DefaultSeparator))
	session := model.RawSession{User: model.RawIdentity{ProviderQualifiedSub: "github|42"}}

	enriched := usecase.BeforeSessionSaved(ctx, session, "tok")

	assert.Equal(t, "google-oauth2-7", enriched.User.Sub)
	assert.Equal(t, "google-oauth2", enriched.User.OAuth)
}

func TestEnrichSession_MalformedSubject(t *testing.T) {
	id := identity.Parse("noPipeHere", identity.DefaultSeparator)

	enriched := usecase.EnrichSession(model.RawSession{}, id, "tok")

	assert.Empty(t, enriched.User.Sub)
	assert.Equal(t, "noPipeHere", enriched.User.OAuth)
}
