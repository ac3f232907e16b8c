package model

// RawIdentity is the user as reported by the identity service for one login.
// ProviderQualifiedSub has the form "provider|localId".
type RawIdentity struct {
	ProviderQualifiedSub string
	Name                 string
	Nickname             string
	Email                string
	Picture              string
}

// RawSession is the session handed over by the identity client after a
// completed login, before any enrichment.
type RawSession struct {
	User    RawIdentity
	IDToken string
}
