package auth_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/go-anon-client/apiclient"
	"github.com/jrsteele09/go-anon-client/auth"
	"github.com/jrsteele09/go-anon-client/sessions"
	"github.com/jrsteele09/go-anon-client/sessions/memstore"
	"github.com/jrsteele09/go-anon-client/token/refresh"
	"github.com/jrsteele09/go-anon-client/token/tokenfake"
)

const (
	testUsername = "alice"
	testEmail    = "alice@example.com"
	testPassword = "password123"
)

// fakeBackend answers the auth routes. Handlers can be swapped per test.
type fakeBackend struct {
	lock     sync.Mutex
	handlers map[string]http.HandlerFunc
	calls    map[string]*atomic.Int32
}

func (b *fakeBackend) handle(path string, h http.HandlerFunc) {
	b.lock.Lock()
	defer b.lock.Unlock()
	b.handlers[path] = h
}

func (b *fakeBackend) callCount(path string) int32 {
	b.lock.Lock()
	defer b.lock.Unlock()
	if c, ok := b.calls[path]; ok {
		return c.Load()
	}
	return 0
}

func (b *fakeBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b.lock.Lock()
	h, ok := b.handlers[r.URL.Path]
	if _, counted := b.calls[r.URL.Path]; !counted {
		b.calls[r.URL.Path] = &atomic.Int32{}
	}
	b.calls[r.URL.Path].Add(1)
	b.lock.Unlock()

	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	h(w, r)
}

// fakeRefresher stands in for the refresh endpoint so tests control when and how it answers
type fakeRefresher struct {
	calls       atomic.Int32
	lock        sync.Mutex
	refreshFunc func(ctx context.Context) (string, error)
}

func (r *fakeRefresher) answer(fn func(ctx context.Context) (string, error)) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.refreshFunc = fn
}

func (r *fakeRefresher) Refresh(ctx context.Context) (string, error) {
	r.calls.Add(1)
	r.lock.Lock()
	fn := r.refreshFunc
	r.lock.Unlock()
	return fn(ctx)
}

type testFixture struct {
	backend     *fakeBackend
	server      *httptest.Server
	store       *memstore.Store
	manager     *auth.Manager
	refresher   *fakeRefresher
	coordinator *refresh.Coordinator
	access      string
	renewed     string
}

func setupTestFixture(t *testing.T) *testFixture {
	t.Helper()

	backend := &fakeBackend{
		handlers: make(map[string]http.HandlerFunc),
		calls:    make(map[string]*atomic.Int32),
	}
	server := httptest.NewServer(backend)
	t.Cleanup(server.Close)

	client, err := apiclient.New(server.URL)
	require.NoError(t, err)

	store := memstore.New()
	f := &testFixture{
		backend:   backend,
		server:    server,
		store:     store,
		manager:   auth.NewManager(client, store),
		refresher: &fakeRefresher{},
		access:    tokenfake.NewAccessToken(testUsername, time.Now().Add(time.Hour)),
		renewed:   tokenfake.NewAccessToken("previous", time.Now().Add(time.Hour)),
	}
	f.refresher.answer(func(context.Context) (string, error) {
		return f.renewed, nil
	})
	f.coordinator = refresh.NewCoordinator(store, f.manager, f.refresher)
	client.Use(f.coordinator.Interceptor())

	backend.handle(apiclient.RouteUserInfo, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+f.access {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"username": testUsername, "email": testEmail})
	})
	return f
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (f *testFixture) loginSucceeds(withUser bool) {
	f.backend.handle(apiclient.RouteLogin, func(w http.ResponseWriter, r *http.Request) {
		body := map[string]any{"access": f.access}
		if withUser {
			body["user"] = map[string]string{"username": testUsername, "email": testEmail}
		}
		writeJSON(w, http.StatusOK, body)
	})
}

func (f *testFixture) storeSnapshot() map[sessions.Field]string {
	snapshot := make(map[sessions.Field]string)
	for _, field := range sessions.Fields {
		if v, ok := f.store.Get(field); ok {
			snapshot[field] = v
		}
	}
	return snapshot
}

func (f *testFixture) seedSession(t *testing.T) {
	t.Helper()
	require.NoError(t, f.store.Replace(map[sessions.Field]string{
		sessions.FieldAccessToken: "previous-token",
		sessions.FieldUsername:    "previous",
		sessions.FieldEmail:       "previous@example.com",
	}))
}

func TestNewManagerStartsLoading(t *testing.T) {
	f := setupTestFixture(t)

	state := f.manager.Current()
	require.True(t, state.Loading)
	require.False(t, state.Authenticated())
}

func TestRehydrate(t *testing.T) {
	t.Run("empty store", func(t *testing.T) {
		f := setupTestFixture(t)
		state := f.manager.Rehydrate()
		require.False(t, state.Loading)
		require.Nil(t, state.Session)
	})

	t.Run("complete session", func(t *testing.T) {
		f := setupTestFixture(t)
		f.seedSession(t)

		state := f.manager.Rehydrate()
		require.False(t, state.Loading)
		require.NotNil(t, state.Session)
		require.Equal(t, "previous", state.Session.Username)
		require.Equal(t, state, f.manager.Current())
	})

	t.Run("partial session is discarded", func(t *testing.T) {
		f := setupTestFixture(t)
		require.NoError(t, f.store.Set(sessions.FieldAccessToken, "orphan-token"))

		state := f.manager.Rehydrate()
		require.False(t, state.Loading)
		require.Nil(t, state.Session)
		require.Empty(t, f.storeSnapshot())
	})
}

func TestLoginWritesWholeSession(t *testing.T) {
	f := setupTestFixture(t)
	f.manager.Rehydrate()
	f.loginSucceeds(true)

	session, err := f.manager.Login(context.Background(), testUsername, testPassword)
	require.NoError(t, err)
	require.Equal(t, sessions.Session{AccessToken: f.access, Username: testUsername, Email: testEmail}, *session)

	require.Equal(t, map[sessions.Field]string{
		sessions.FieldAccessToken: f.access,
		sessions.FieldUsername:    testUsername,
		sessions.FieldEmail:       testEmail,
	}, f.storeSnapshot())
	require.Zero(t, f.backend.callCount(apiclient.RouteUserInfo))

	state := f.manager.Current()
	require.True(t, state.Authenticated())
	require.False(t, state.Expired)
}

func TestLoginSendsCredentials(t *testing.T) {
	f := setupTestFixture(t)
	f.backend.handle(apiclient.RouteLogin, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, map[string]string{"username": testEmail, "password": testPassword}, body)
		require.Empty(t, r.Header.Get("Authorization"))
		writeJSON(w, http.StatusOK, map[string]any{
			"access": f.access,
			"user":   map[string]string{"username": testUsername, "email": testEmail},
		})
	})

	_, err := f.manager.Login(context.Background(), testEmail, testPassword)
	require.NoError(t, err)
}

func TestLoginWithoutUserFetchesIdentityOnce(t *testing.T) {
	f := setupTestFixture(t)
	f.loginSucceeds(false)

	session, err := f.manager.Login(context.Background(), testUsername, testPassword)
	require.NoError(t, err)
	require.EqualValues(t, 1, f.backend.callCount(apiclient.RouteUserInfo))
	require.Equal(t, testUsername, session.Username)
	require.Equal(t, testEmail, session.Email)
}

func TestLoginFailureLeavesStoreUnchanged(t *testing.T) {
	tests := []struct {
		name  string
		setup func(f *testFixture)
		want  error
	}{
		{
			name: "invalid credentials",
			setup: func(f *testFixture) {
				f.backend.handle(apiclient.RouteLogin, func(w http.ResponseWriter, r *http.Request) {
					writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "No active account found with the given credentials"})
				})
			},
			want: apiclient.ErrInvalidCredentials,
		},
		{
			name: "server error",
			setup: func(f *testFixture) {
				f.backend.handle(apiclient.RouteLogin, func(w http.ResponseWriter, r *http.Request) {
					w.WriteHeader(http.StatusInternalServerError)
				})
			},
			want: apiclient.ErrServerError,
		},
		{
			name: "no access token",
			setup: func(f *testFixture) {
				f.backend.handle(apiclient.RouteLogin, func(w http.ResponseWriter, r *http.Request) {
					writeJSON(w, http.StatusOK, map[string]string{})
				})
			},
			want: auth.ErrMissingAccessToken,
		},
		{
			name: "identity fetch fails",
			setup: func(f *testFixture) {
				f.loginSucceeds(false)
				f.backend.handle(apiclient.RouteUserInfo, func(w http.ResponseWriter, r *http.Request) {
					w.WriteHeader(http.StatusBadGateway)
				})
			},
			want: auth.ErrIdentityFetchFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := setupTestFixture(t)
			f.seedSession(t)
			f.manager.Rehydrate()
			before := f.storeSnapshot()
			tt.setup(f)

			_, err := f.manager.Login(context.Background(), testUsername, testPassword)
			require.ErrorIs(t, err, tt.want)
			require.Equal(t, before, f.storeSnapshot())
			require.Equal(t, "previous", f.manager.Current().Username())
		})
	}
}

func TestLoginUnreachable(t *testing.T) {
	f := setupTestFixture(t)
	f.server.Close()

	_, err := f.manager.Login(context.Background(), testUsername, testPassword)
	require.ErrorIs(t, err, apiclient.ErrUnreachable)
	require.Empty(t, f.storeSnapshot())
}

func TestReloginIsIdempotent(t *testing.T) {
	f := setupTestFixture(t)
	f.loginSucceeds(true)

	_, err := f.manager.Login(context.Background(), testUsername, testPassword)
	require.NoError(t, err)
	once := f.storeSnapshot()

	_, err = f.manager.Login(context.Background(), testUsername, testPassword)
	require.NoError(t, err)
	require.Equal(t, once, f.storeSnapshot())
	require.Equal(t, testUsername, f.manager.Current().Username())
}

func TestSignup(t *testing.T) {
	f := setupTestFixture(t)
	f.backend.handle(apiclient.RouteRegister, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, map[string]string{
			"username":         testUsername,
			"email":            testEmail,
			"password":         testPassword,
			"confirm_password": testPassword,
		}, body)
		writeJSON(w, http.StatusCreated, map[string]string{"access": f.access})
	})

	session, err := f.manager.Signup(context.Background(), testUsername, testEmail, testPassword)
	require.NoError(t, err)
	require.Equal(t, testUsername, session.Username)
	require.EqualValues(t, 1, f.backend.callCount(apiclient.RouteUserInfo))
	require.True(t, f.manager.Current().Authenticated())
}

func TestSignupValidationErrorIsReadable(t *testing.T) {
	f := setupTestFixture(t)
	f.backend.handle(apiclient.RouteRegister, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadRequest, map[string][]string{"username": {"A user with that username already exists."}})
	})

	_, err := f.manager.Signup(context.Background(), testUsername, testEmail, testPassword)
	require.ErrorIs(t, err, apiclient.ErrValidation)
	require.Equal(t, "username: A user with that username already exists.", apiclient.UserMessage(err))
	require.Empty(t, f.storeSnapshot())
}

func TestLogoutClearsEvenWhenRequestFails(t *testing.T) {
	t.Run("server error", func(t *testing.T) {
		f := setupTestFixture(t)
		f.seedSession(t)
		f.manager.Rehydrate()
		f.backend.handle(apiclient.RouteLogout, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		})

		f.manager.Logout(context.Background())
		require.Equal(t, int32(1), f.backend.callCount(apiclient.RouteLogout))
		require.Empty(t, f.storeSnapshot())
		require.False(t, f.manager.Current().Authenticated())
		require.False(t, f.manager.Current().Expired)
	})

	t.Run("unreachable", func(t *testing.T) {
		f := setupTestFixture(t)
		f.seedSession(t)
		f.manager.Rehydrate()
		f.server.Close()

		f.manager.Logout(context.Background())
		require.Empty(t, f.storeSnapshot())
	})

	t.Run("refresh rejected", func(t *testing.T) {
		f := setupTestFixture(t)
		f.seedSession(t)
		f.manager.Rehydrate()
		f.refresher.answer(func(context.Context) (string, error) {
			return "", apiclient.ErrInvalidCredentials
		})

		f.manager.Logout(context.Background())
		require.Zero(t, f.backend.callCount(apiclient.RouteLogout))
		require.Empty(t, f.storeSnapshot())
		require.False(t, f.manager.Current().Expired)
	})
}

// captureLogoutAuthorization answers logout and hands back the Authorization header it carried
func (f *testFixture) captureLogoutAuthorization() <-chan string {
	sent := make(chan string, 1)
	f.backend.handle(apiclient.RouteLogout, func(w http.ResponseWriter, r *http.Request) {
		sent <- r.Header.Get("Authorization")
		w.WriteHeader(http.StatusNoContent)
	})
	return sent
}

func TestLogoutRenewsStaleTokenFirst(t *testing.T) {
	f := setupTestFixture(t)
	f.seedSession(t)
	f.manager.Rehydrate()

	sent := f.captureLogoutAuthorization()

	f.manager.Logout(context.Background())
	require.Equal(t, int32(1), f.refresher.calls.Load())
	require.Equal(t, "Bearer "+f.renewed, <-sent)
	require.Empty(t, f.storeSnapshot())
}

func TestLogoutWithFreshTokenDoesNotRefresh(t *testing.T) {
	f := setupTestFixture(t)
	f.loginSucceeds(true)
	_, err := f.manager.Login(context.Background(), testUsername, testPassword)
	require.NoError(t, err)

	sent := f.captureLogoutAuthorization()

	f.manager.Logout(context.Background())
	require.Zero(t, f.refresher.calls.Load())
	require.Equal(t, "Bearer "+f.access, <-sent)
}

func TestLogoutWithoutSessionIsAnonymous(t *testing.T) {
	f := setupTestFixture(t)
	f.manager.Rehydrate()

	sent := f.captureLogoutAuthorization()

	f.manager.Logout(context.Background())
	require.Equal(t, int32(1), f.backend.callCount(apiclient.RouteLogout))
	require.Empty(t, <-sent)
	require.Zero(t, f.refresher.calls.Load())
}

func TestReplaceAccessTokenKeepsIdentity(t *testing.T) {
	f := setupTestFixture(t)
	f.seedSession(t)
	f.manager.Rehydrate()

	require.NoError(t, f.manager.ReplaceAccessToken("previous-token", "renewed"))
	require.Equal(t, map[sessions.Field]string{
		sessions.FieldAccessToken: "renewed",
		sessions.FieldUsername:    "previous",
		sessions.FieldEmail:       "previous@example.com",
	}, f.storeSnapshot())
	require.Equal(t, "renewed", f.manager.Current().Session.AccessToken)
}

func TestReplaceAccessTokenWithoutSession(t *testing.T) {
	f := setupTestFixture(t)
	f.manager.Rehydrate()

	err := f.manager.ReplaceAccessToken("previous-token", "renewed")
	require.ErrorIs(t, err, auth.ErrLoginRequired)
	require.Empty(t, f.storeSnapshot())
}

func TestReplaceAccessTokenAfterSessionChanged(t *testing.T) {
	f := setupTestFixture(t)
	f.seedSession(t)
	f.manager.Rehydrate()

	err := f.manager.ReplaceAccessToken("some-other-token", "renewed")
	require.ErrorIs(t, err, auth.ErrSessionChanged)
	require.Equal(t, "previous-token", f.storeSnapshot()[sessions.FieldAccessToken])
	require.Equal(t, "previous-token", f.manager.Current().Session.AccessToken)
}

func TestExpireIgnoresReplacedSession(t *testing.T) {
	f := setupTestFixture(t)
	f.seedSession(t)
	f.manager.Rehydrate()

	f.manager.Expire("some-other-token", auth.ErrSessionExpired)
	require.Equal(t, "previous", f.storeSnapshot()[sessions.FieldUsername])
	require.True(t, f.manager.Current().Authenticated())
	require.False(t, f.manager.Current().Expired)
}

// startBlockedRefresh seeds a stale session and begins a refresh that waits for release
func (f *testFixture) startBlockedRefresh(t *testing.T, answer func() (string, error)) (release func(), result <-chan error) {
	t.Helper()
	stale := tokenfake.NewAccessToken("previous", time.Now().Add(5*time.Second))
	require.NoError(t, f.store.Replace(sessions.Session{
		AccessToken: stale,
		Username:    "previous",
		Email:       "previous@example.com",
	}.Values()))
	f.manager.Rehydrate()

	started := make(chan struct{})
	gate := make(chan struct{})
	f.refresher.answer(func(context.Context) (string, error) {
		close(started)
		<-gate
		return answer()
	})

	done := make(chan error, 1)
	go func() {
		_, _, err := f.coordinator.AccessToken(context.Background())
		done <- err
	}()

	select {
	case <-started:
	case <-time.After(time.Second):
		t.Fatal("refresh never started")
	}
	return func() { close(gate) }, done
}

func waitForRefresh(t *testing.T, result <-chan error) error {
	t.Helper()
	select {
	case err := <-result:
		return err
	case <-time.After(time.Second):
		t.Fatal("refresh did not finish")
		return nil
	}
}

func TestRefreshFinishingAfterLoginLeavesNewSession(t *testing.T) {
	f := setupTestFixture(t)
	release, result := f.startBlockedRefresh(t, func() (string, error) {
		return f.renewed, nil
	})

	f.loginSucceeds(true)
	_, err := f.manager.Login(context.Background(), testUsername, testPassword)
	require.NoError(t, err)
	release()

	require.ErrorIs(t, waitForRefresh(t, result), auth.ErrSessionChanged)
	require.Equal(t, map[sessions.Field]string{
		sessions.FieldAccessToken: f.access,
		sessions.FieldUsername:    testUsername,
		sessions.FieldEmail:       testEmail,
	}, f.storeSnapshot())
	require.Equal(t, f.access, f.manager.Current().Session.AccessToken)
}

func TestRejectedRefreshFinishingAfterLoginLeavesNewSession(t *testing.T) {
	f := setupTestFixture(t)
	release, result := f.startBlockedRefresh(t, func() (string, error) {
		return "", apiclient.ErrInvalidCredentials
	})

	f.loginSucceeds(true)
	_, err := f.manager.Login(context.Background(), testUsername, testPassword)
	require.NoError(t, err)
	release()

	require.ErrorIs(t, waitForRefresh(t, result), auth.ErrSessionExpired)
	require.Equal(t, testUsername, f.storeSnapshot()[sessions.FieldUsername])
	require.Equal(t, f.access, f.storeSnapshot()[sessions.FieldAccessToken])
	require.True(t, f.manager.Current().Authenticated())
	require.False(t, f.manager.Current().Expired)
}

func TestExpireNotifiesSubscribers(t *testing.T) {
	f := setupTestFixture(t)
	f.seedSession(t)
	f.manager.Rehydrate()

	var seen []auth.State
	unsubscribe := f.manager.Subscribe(func(s auth.State) {
		seen = append(seen, s)
	})

	f.manager.Expire("previous-token", auth.ErrSessionExpired)
	require.Len(t, seen, 1)
	require.True(t, seen[0].Expired)
	require.Nil(t, seen[0].Session)
	require.Empty(t, f.storeSnapshot())

	unsubscribe()
	unsubscribe()
	f.loginSucceeds(true)
	_, err := f.manager.Login(context.Background(), testUsername, testPassword)
	require.NoError(t, err)
	require.Len(t, seen, 1)
	require.False(t, f.manager.Current().Expired)
}

func TestStartFederatedLogin(t *testing.T) {
	f := setupTestFixture(t)
	f.backend.handle(apiclient.RouteGoogleLogin, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"authorization_url": "https://accounts.example.com/o/auth?state=s"})
	})

	authURL, err := f.manager.StartFederatedLogin(context.Background())
	require.NoError(t, err)
	require.Equal(t, "https://accounts.example.com/o/auth?state=s", authURL)
}

func TestStartFederatedLoginWithoutURL(t *testing.T) {
	f := setupTestFixture(t)
	f.backend.handle(apiclient.RouteGoogleLogin, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{})
	})

	_, err := f.manager.StartFederatedLogin(context.Background())
	require.ErrorIs(t, err, apiclient.ErrInvalidResponse)
}

func TestParseFederatedCallback(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	jwtToken := tokenfake.NewAccessToken(testUsername, exp)

	tests := []struct {
		name        string
		query       string
		wantAccess  string
		wantRefresh string
		wantErr     error
	}{
		{"token key", "token=abc123&refresh=xyz", "abc123", "xyz", nil},
		{"access key wins", "access=first&token=second", "first", "", nil},
		{"decodable token", "access=" + jwtToken, jwtToken, "", nil},
		{"no token", "refresh=xyz&state=s", "", "", auth.ErrMissingCallbackToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			query, err := url.ParseQuery(tt.query)
			require.NoError(t, err)

			tok, err := auth.ParseFederatedCallback(query)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				require.NotContains(t, err.Error(), "xyz")
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.wantAccess, tok.AccessToken)
			require.Equal(t, tt.wantRefresh, tok.RefreshToken)
			if tt.wantAccess == jwtToken {
				require.Equal(t, exp.Unix(), tok.Expiry.Unix())
			}
		})
	}
}

func TestCompleteFederatedLogin(t *testing.T) {
	f := setupTestFixture(t)
	f.manager.Rehydrate()
	f.access = "abc123"

	query, err := url.ParseQuery("token=abc123&refresh=xyz")
	require.NoError(t, err)
	tok, err := auth.ParseFederatedCallback(query)
	require.NoError(t, err)

	session, err := f.manager.CompleteFederatedLogin(context.Background(), tok.AccessToken, tok.RefreshToken)
	require.NoError(t, err)
	require.Equal(t, "abc123", session.AccessToken)
	require.Equal(t, map[sessions.Field]string{
		sessions.FieldAccessToken:  "abc123",
		sessions.FieldUsername:     testUsername,
		sessions.FieldEmail:        testEmail,
		sessions.FieldRefreshToken: "xyz",
	}, f.storeSnapshot())
	require.True(t, f.manager.Current().Authenticated())
}

func TestCompleteFederatedLoginIdentityFailureWritesNothing(t *testing.T) {
	f := setupTestFixture(t)
	f.manager.Rehydrate()
	f.backend.handle(apiclient.RouteUserInfo, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	_, err := f.manager.CompleteFederatedLogin(context.Background(), "abc123", "xyz")
	require.ErrorIs(t, err, auth.ErrIdentityFetchFailed)
	require.ErrorIs(t, err, apiclient.ErrInvalidCredentials)
	require.Empty(t, f.storeSnapshot())
	require.False(t, f.manager.Current().Authenticated())
}
