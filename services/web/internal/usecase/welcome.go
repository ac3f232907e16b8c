package usecase

import (
	"context"
	"fmt"
	"html"

	"github.com/vasapolrittideah/flowup/services/web/internal/model"
	"github.com/vasapolrittideah/flowup/shared/mailer"
)

type welcomeNotifier struct {
	mailer     *mailer.Mailer
	landingURL string
}

// NewWelcomeNotifier returns a ProfileNotifier that mails new users, or nil
// when the mailer is disabled.
func NewWelcomeNotifier(m *mailer.Mailer, landingURL string) ProfileNotifier {
	if !m.Enabled() {
		return nil
	}
	return &welcomeNotifier{mailer: m, landingURL: landingURL}
}

func (n *welcomeNotifier) ProfileCreated(_ context.Context, profile *model.Profile) error {
	if profile.Email == "" {
		return nil
	}

	name := html.EscapeString(profile.Name)
	htmlBody := fmt.Sprintf(`
		<p>Hi %s,</p>
		<p>Your FlowUp account is ready.</p>
		<p><a href="%s">Open your workspaces</a></p>
		<p>The FlowUp Team</p>
	`, name, n.landingURL)
	textBody := fmt.Sprintf("Hi %s,\n\nYour FlowUp account is ready: %s\n\nThe FlowUp Team\n", profile.Name, n.landingURL)

	return n.mailer.SendHTML([]string{profile.Email}, "Welcome to FlowUp", htmlBody, textBody)
}
