package authclient_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vasapolrittideah/flowup/services/web/internal/authclient"
	"github.com/vasapolrittideah/flowup/services/web/internal/identity"
	"github.com/vasapolrittideah/flowup/services/web/internal/model"
	"github.com/vasapolrittideah/flowup/services/web/internal/repository"
	"github.com/vasapolrittideah/flowup/services/web/internal/usecase"
	"github.com/vasapolrittideah/flowup/shared/provider"
)

const (
	testBaseURL = "http://localhost:3000"
	testSecret  = "0123456789abcdef0123456789abcdef"
	cookieName  = "flowup_session"
)

type fakeProvider struct {
	lastRequest provider.AuthRequest
	identity    *provider.Identity
	exchangeErr error
	exchanged   []string
}

func (p *fakeProvider) AuthCodeURL(req provider.AuthRequest) string {
	p.lastRequest = req
	q := url.Values{"state": {req.State}}
	for k, v := range req.Extra {
		q.Set(k, v)
	}
	return "https://idp.example/authorize?" + q.Encode()
}

func (p *fakeProvider) Exchange(_ context.Context, code, codeVerifier, nonce string) (*provider.Identity, error) {
	p.exchanged = append(p.exchanged, code+" "+codeVerifier+" "+nonce)
	if p.exchangeErr != nil {
		return nil, p.exchangeErr
	}
	return p.identity, nil
}

func (p *fakeProvider) LogoutURL(returnTo string) string {
	return "https://idp.example/v2/logout?returnTo=" + url.QueryEscape(returnTo)
}

type fakeTransactions struct {
	mu   sync.Mutex
	byID map[string]*model.LoginTransaction
}

func (f *fakeTransactions) CreateTransaction(_ context.Context, txn *model.LoginTransaction) (*model.LoginTransaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.byID == nil {
		f.byID = map[string]*model.LoginTransaction{}
	}
	cp := *txn
	f.byID[txn.State] = &cp
	return txn, nil
}

func (f *fakeTransactions) ConsumeTransaction(_ context.Context, state string) (*model.LoginTransaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	txn, ok := f.byID[state]
	if !ok || txn.Used || time.Now().After(txn.ExpiresAt) {
		return nil, repository.ErrTransactionNotFound
	}
	txn.Used = true
	cp := *txn
	return &cp, nil
}

type fakeSessions struct {
	mu        sync.Mutex
	sessions  map[string]*model.EnrichedSession
	createErr error
}

func (f *fakeSessions) CreateSession(_ context.Context, s *model.EnrichedSession) (*model.EnrichedSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}
	if f.sessions == nil {
		f.sessions = map[string]*model.EnrichedSession{}
	}
	cp := *s
	f.sessions[s.SessionID] = &cp
	return s, nil
}

func (f *fakeSessions) GetSession(_ context.Context, id string) (*model.EnrichedSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[id]
	if !ok {
		return nil, repository.ErrSessionNotFound
	}
	cp := *s
	return &cp, nil
}

func (f *fakeSessions) DeleteSession(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.sessions, id)
	return nil
}

func (f *fakeSessions) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sessions)
}

type recordingCallback struct {
	err      error
	cbCtx    usecase.CallbackContext
	session  *model.RawSession
	identity identity.CanonicalIdentity
	hasID    bool
}

func (r *recordingCallback) Handle(
	ctx context.Context,
	callbackErr error,
	cbCtx usecase.CallbackContext,
	session *model.RawSession,
) string {
	r.err, r.cbCtx, r.session = callbackErr, cbCtx, session
	r.identity, r.hasID = identity.FromContext(ctx)
	if callbackErr != nil || session == nil {
		return testBaseURL + "/auth/logout"
	}
	return testBaseURL + "/d/workspaces"
}

type harness struct {
	client   *authclient.Client
	provider *fakeProvider
	txns     *fakeTransactions
	sessions *fakeSessions
	callback *recordingCallback
}

func newHarness(sub string) *harness {
	logger := zerolog.Nop()
	h := &harness{
		provider: &fakeProvider{identity: &provider.Identity{
			Claims: provider.Claims{
				Subject:  sub,
				Name:     "Ada",
				Nickname: "ada",
				Email:    "ada@x.com",
			},
			RawIDToken: "raw.id.token",
		}},
		txns:     &fakeTransactions{},
		sessions: &fakeSessions{},
		callback: &recordingCallback{},
	}
	h.client = authclient.NewClient(authclient.Config{
		BaseURL:        testBaseURL,
		CookieName:     cookieName,
		SessionSecret:  testSecret,
		SessionTTL:     time.Hour,
		TransactionTTL: 10 * time.Minute,
	}, h.provider, h.txns, h.sessions, nil, h.callback, &logger)
	return h
}

// login runs /auth/login and returns the state handed to the identity service.
func (h *harness) login(t *testing.T, query string) string {
	t.Helper()

	rec := httptest.NewRecorder()
	h.client.Login(rec, httptest.NewRequest(http.MethodGet, "/auth/login"+query, nil))
	require.Equal(t, http.StatusFound, rec.Code)

	loc, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	return loc.Query().Get("state")
}

func (h *harness) callbackWith(query string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.client.Callback(rec, httptest.NewRequest(http.MethodGet, "/auth/callback"+query, nil))
	return rec
}

func sessionCookie(rec *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == cookieName {
			return c
		}
	}
	return nil
}

func TestLogin_RedirectsWithPKCEAndScreenHint(t *testing.T) {
	h := newHarness("github|42")

	state := h.login(t, "?screen_hint=signup&returnTo=/d/profiles")

	require.NotEmpty(t, state)
	assert.Equal(t, "signup", h.provider.lastRequest.Extra["screen_hint"])
	assert.NotEmpty(t, h.provider.lastRequest.Nonce)
	assert.NotEmpty(t, h.provider.lastRequest.CodeVerifier)
	assert.Equal(t, "/d/profiles", h.txns.byID[state].ReturnTo)
}

func TestLogin_DropsOffOriginReturnTo(t *testing.T) {
	h := newHarness("github|42")

	state := h.login(t, "?returnTo="+url.QueryEscape("https://evil.example"))

	assert.Empty(t, h.txns.byID[state].ReturnTo)
}

func TestLogin_RejectsUnknownScreenHint(t *testing.T) {
	h := newHarness("github|42")

	rec := httptest.NewRecorder()
	h.client.Login(rec, httptest.NewRequest(http.MethodGet, "/auth/login?screen_hint=admin", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCallback_PersistsEnrichedSession(t *testing.T) {
	h := newHarness("github|42")
	state := h.login(t, "?returnTo=/d/profiles")

	rec := h.callbackWith("?state=" + state + "&code=abc")

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, testBaseURL+"/d/workspaces", rec.Header().Get("Location"))
	require.NoError(t, h.callback.err)
	assert.Equal(t, "/d/profiles", h.callback.cbCtx.ReturnTo)
	assert.Equal(t, "github|42", h.callback.session.User.ProviderQualifiedSub)
	require.True(t, h.callback.hasID)
	assert.Equal(t, "github-42", h.callback.identity.Key)

	cookie := sessionCookie(rec)
	require.NotNil(t, cookie)
	assert.True(t, cookie.HttpOnly)

	req := httptest.NewRequest(http.MethodGet, "/d/workspaces", nil)
	req.AddCookie(cookie)
	session, err := h.client.Session(req)
	require.NoError(t, err)
	assert.Equal(t, "github-42", session.User.Sub)
	assert.Equal(t, "github", session.User.OAuth)
	assert.Equal(t, "raw.id.token", session.User.IDToken)
}

func TestCallback_StateIsSingleUse(t *testing.T) {
	h := newHarness("github|42")
	state := h.login(t, "")

	h.callbackWith("?state=" + state + "&code=abc")
	rec := h.callbackWith("?state=" + state + "&code=abc")

	assert.Equal(t, testBaseURL+"/auth/logout", rec.Header().Get("Location"))
	assert.ErrorIs(t, h.callback.err, authclient.ErrInvalidState)
	assert.Len(t, h.provider.exchanged, 1)
}

func TestCallback_ProviderErrorSkipsExchange(t *testing.T) {
	h := newHarness("github|42")
	state := h.login(t, "")

	rec := h.callbackWith("?state=" + state + "&error=access_denied&error_description=denied")

	assert.Equal(t, testBaseURL+"/auth/logout", rec.Header().Get("Location"))
	require.Error(t, h.callback.err)
	assert.Nil(t, h.callback.session)
	assert.Empty(t, h.provider.exchanged)
	assert.Zero(t, h.sessions.count())
}

func TestCallback_ExchangeFailure(t *testing.T) {
	h := newHarness("github|42")
	h.provider.exchangeErr = errors.New("invalid_grant")
	state := h.login(t, "")

	rec := h.callbackWith("?state=" + state + "&code=abc")

	assert.Equal(t, testBaseURL+"/auth/logout", rec.Header().Get("Location"))
	assert.Nil(t, sessionCookie(rec))
}

func TestCallback_MalformedSubjectIsNotPersisted(t *testing.T) {
	h := newHarness("noPipeHere")
	state := h.login(t, "")

	h.callbackWith("?state=" + state + "&code=abc")

	assert.Zero(t, h.sessions.count())
	require.NotNil(t, h.callback.session)
	assert.False(t, h.callback.identity.HasLocalID())
}

func TestCallback_SessionStoreFailure(t *testing.T) {
	h := newHarness("github|42")
	h.sessions.createErr = errors.New("mongo down")
	state := h.login(t, "")

	rec := h.callbackWith("?state=" + state + "&code=abc")

	assert.Equal(t, testBaseURL+"/auth/logout", rec.Header().Get("Location"))
	assert.ErrorIs(t, h.callback.err, authclient.ErrSessionPersist)
}

func TestLogout_DeletesSessionAndClearsCookie(t *testing.T) {
	h := newHarness("github|42")
	state := h.login(t, "")
	cookie := sessionCookie(h.callbackWith("?state=" + state + "&code=abc"))
	require.NotNil(t, cookie)
	require.Equal(t, 1, h.sessions.count())

	req := httptest.NewRequest(http.MethodGet, "/auth/logout", nil)
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	h.client.Logout(rec, req)

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Contains(t, rec.Header().Get("Location"), "https://idp.example/v2/logout")
	assert.Zero(t, h.sessions.count())
	cleared := sessionCookie(rec)
	require.NotNil(t, cleared)
	assert.Empty(t, cleared.Value)
	assert.Negative(t, cleared.MaxAge)
}

func TestSession_WithoutCookie(t *testing.T) {
	h := newHarness("github|42")

	_, err := h.client.Session(httptest.NewRequest(http.MethodGet, "/d/workspaces", nil))

	assert.ErrorIs(t, err, authclient.ErrNoSession)
}
