package tokenauth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/MrEthical07/tokenauth/jwt"
	"github.com/MrEthical07/tokenauth/password"
	"github.com/MrEthical07/tokenauth/revocation"
)

func TestLoginIssuesPairSharingJTI(t *testing.T) {
	f := newJWTFixture(t)
	ctx := context.Background()

	res, err := f.svc.Login(ctx, LoginRequest{Credentials: credentials(f.user, testPassword)})
	require.NoError(t, err)

	assert.Equal(t, TokenTypeBearer, res.Auth.TokenType)
	assert.NotContains(t, res.Item, "password")
	assert.Equal(t, f.user.String("email"), res.Item.String("email"))

	access, err := f.svc.Tokens().Decode(ctx, res.Auth.AccessToken, jwt.Access, true)
	require.NoError(t, err)
	refresh, err := f.svc.Tokens().Decode(ctx, res.Auth.RefreshToken, jwt.Refresh, true)
	require.NoError(t, err)

	iat := f.clock.Now().Unix()
	assert.Equal(t, iat, access.Iat)
	assert.Equal(t, iat, refresh.Iat)
	assert.Equal(t, iat+60*60, access.Exp)
	assert.Equal(t, iat+20160*60, refresh.Exp)
	assert.Equal(t, access.Jti, refresh.Jti)
	assert.Equal(t, access.Exp, res.Auth.ExpiresAt)

	id, ok := Record(access.Sub).ID()
	require.True(t, ok)
	wantID, _ := f.user.ID()
	assert.Equal(t, wantID, id)
	assert.Len(t, access.Sub, 1)

	mapped, err := f.mr.Get(revocation.MapperKey(access.Jti))
	require.NoError(t, err)
	assert.Equal(t, res.Auth.RefreshToken, mapped)
	assert.Equal(t, time.Hour, f.mr.TTL(revocation.MapperKey(access.Jti)))

	assert.Equal(t, uint64(1), f.svc.MetricsSnapshot().Counters[MetricLoginSuccess])
}

func TestLoginTokensFailWithTheOtherKey(t *testing.T) {
	f := newJWTFixture(t)
	ctx := context.Background()

	res, err := f.svc.Login(ctx, LoginRequest{Credentials: credentials(f.user, testPassword)})
	require.NoError(t, err)

	_, err = f.svc.Tokens().Decode(ctx, res.Auth.AccessToken, jwt.Refresh, false)
	assert.ErrorIs(t, err, ErrToken)
	_, err = f.svc.Tokens().Decode(ctx, res.Auth.RefreshToken, jwt.Access, false)
	assert.ErrorIs(t, err, ErrToken)
}

func TestLoginWrongPassword(t *testing.T) {
	f := newJWTFixture(t)

	_, err := f.svc.Login(context.Background(), LoginRequest{Credentials: credentials(f.user, "nope!1")})

	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, "These credentials do not match our records.", ve.Message)
	assert.Equal(t, ve.Message, ve.Fields["email"])
	assert.Equal(t, uint64(1), f.svc.MetricsSnapshot().Counters[MetricLoginFailure])
}

func TestLoginUnknownUser(t *testing.T) {
	f := newJWTFixture(t)

	_, err := f.svc.Login(context.Background(), LoginRequest{
		Credentials: map[string]any{"email": "ghost@example.com", "password": testPassword},
	})
	assert.ErrorIs(t, err, ErrValidation)
	assert.Empty(t, f.mr.Keys())
}

func TestLoginMissingCredentials(t *testing.T) {
	f := newJWTFixture(t)

	_, err := f.svc.Login(context.Background(), LoginRequest{Credentials: map[string]any{}})

	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "The email field is required.", ve.Fields["email"])
	assert.Equal(t, "The password field is required.", ve.Fields["password"])
}

func TestLoginUsesMessageCatalog(t *testing.T) {
	f := newJWTFixture(t, func(b *Builder, _ *Config) {
		b.WithMessages(MapCatalog{MsgAuthFailed: "Identifiants invalides."})
	})

	_, err := f.svc.Login(context.Background(), LoginRequest{Credentials: credentials(f.user, "wrong!1")})
	assert.Equal(t, "Identifiants invalides.", PublicMessage(err, ""))
}

func TestLoginConditionsAreANDed(t *testing.T) {
	f := newJWTFixture(t)
	ctx := context.Background()

	_, err := f.svc.Login(ctx, LoginRequest{
		Credentials: credentials(f.user, testPassword),
		Conditions:  map[string]any{"role": "admin"},
	})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = f.svc.Login(ctx, LoginRequest{
		Credentials: credentials(f.user, testPassword),
		Conditions:  map[string]any{"role": "member"},
	})
	assert.NoError(t, err)
}

func TestLoginMatchesAnyCredentialField(t *testing.T) {
	f := newJWTFixture(t, func(_ *Builder, cfg *Config) {
		cfg.LoginUsername = "login"
		cfg.FieldCredentials = []string{"email", "name"}
	})

	_, err := f.svc.Login(context.Background(), LoginRequest{
		Credentials: map[string]any{"login": f.user.String("name"), "password": testPassword},
	})
	assert.NoError(t, err)
}

func TestLoginMissingPayloadField(t *testing.T) {
	f := newJWTFixture(t, func(_ *Builder, cfg *Config) {
		cfg.TokenPayloadFields = []string{"id", "tenant"}
	})

	_, err := f.svc.Login(context.Background(), LoginRequest{Credentials: credentials(f.user, testPassword)})

	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Contains(t, ve.Fields, "tenant")
	assert.Empty(t, f.mr.Keys())
}

func TestLoginOnResolvedReplacesItem(t *testing.T) {
	f := newJWTFixture(t)
	var seenJTI string

	res, err := f.svc.Login(context.Background(), LoginRequest{
		Credentials: credentials(f.user, testPassword),
		OnResolved: func(_ context.Context, user Record, jti string) (Record, error) {
			seenJTI = jti
			assert.NotContains(t, user, "password")
			return Record{"name": user.String("name"), "greeting": "hi"}, nil
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "hi", res.Item["greeting"])

	access, err := f.svc.Tokens().Decode(context.Background(), res.Auth.AccessToken, jwt.Access, false)
	require.NoError(t, err)
	assert.Equal(t, access.Jti, seenJTI)
}

func TestLoginOnResolvedErrorAborts(t *testing.T) {
	f := newJWTFixture(t)
	boom := errors.New("boom")

	_, err := f.svc.Login(context.Background(), LoginRequest{
		Credentials: credentials(f.user, testPassword),
		OnResolved: func(context.Context, Record, string) (Record, error) {
			return nil, boom
		},
	})
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, f.mr.Keys())
}

func TestRefreshIssuesNewAccessKeepsRefresh(t *testing.T) {
	f := newJWTFixture(t)
	ctx := context.Background()

	res, err := f.svc.Login(ctx, LoginRequest{Credentials: credentials(f.user, testPassword)})
	require.NoError(t, err)
	f.clock.Advance(10 * time.Minute)

	var hookUser Record
	pair, err := f.svc.Refresh(ctx, res.Auth.RefreshToken, func(_ context.Context, user Record) error {
		hookUser = user
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, res.Auth.RefreshToken, pair.RefreshToken)
	assert.NotEqual(t, res.Auth.AccessToken, pair.AccessToken)
	assert.Equal(t, TokenTypeBearer, pair.TokenType)
	assert.Equal(t, f.user.String("email"), hookUser.String("email"))
	assert.NotContains(t, hookUser, "password")

	access, err := f.svc.Tokens().Decode(ctx, pair.AccessToken, jwt.Access, true)
	require.NoError(t, err)
	assert.Equal(t, f.clock.Now().Unix(), access.Iat)
	assert.Equal(t, access.Iat+3600, pair.ExpiresAt)

	mapped, found, err := f.svc.MappedRefreshToken(ctx, pair.AccessToken)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, res.Auth.RefreshToken, mapped)
}

func TestRefreshResolvesLargeUserID(t *testing.T) {
	f := newJWTFixture(t)
	ctx := context.Background()

	const bigID int64 = 1<<53 + 1
	f.repo.mu.Lock()
	f.repo.nextID = bigID - 1
	f.repo.mu.Unlock()
	user := seedUser(t, f.repo, newTestHasher(t), testPassword)
	id, _ := user.ID()
	require.Equal(t, bigID, id)

	res, err := f.svc.Login(ctx, LoginRequest{Credentials: credentials(user, testPassword)})
	require.NoError(t, err)

	var refreshed Record
	_, err = f.svc.Refresh(ctx, res.Auth.RefreshToken, func(_ context.Context, u Record) error {
		refreshed = u
		return nil
	})
	require.NoError(t, err)
	gotID, ok := refreshed.ID()
	require.True(t, ok)
	assert.Equal(t, bigID, gotID)

	sub, err := f.svc.Authenticate(ctx, res.Auth.AccessToken)
	require.NoError(t, err)
	gotID, ok = sub.ID()
	require.True(t, ok)
	assert.Equal(t, bigID, gotID)
}

func TestRefreshExpiredFailsBeforeLookup(t *testing.T) {
	f := newJWTFixture(t)
	ctx := context.Background()

	res, err := f.svc.Login(ctx, LoginRequest{Credentials: credentials(f.user, testPassword)})
	require.NoError(t, err)
	f.clock.Advance(20160*time.Minute + time.Second)
	before := f.repo.findByIDCalls

	_, err = f.svc.Refresh(ctx, res.Auth.RefreshToken, nil)

	var ae *AuthError
	require.ErrorAs(t, err, &ae)
	assert.ErrorIs(t, err, ErrAuth)
	assert.Equal(t, before, f.repo.findByIDCalls)
	assert.Equal(t, uint64(1), f.svc.MetricsSnapshot().Counters[MetricRefreshFailure])
}

func TestRefreshRejectsAccessTokenAndGarbage(t *testing.T) {
	f := newJWTFixture(t)
	ctx := context.Background()

	res, err := f.svc.Login(ctx, LoginRequest{Credentials: credentials(f.user, testPassword)})
	require.NoError(t, err)

	for _, token := range []string{res.Auth.AccessToken, "not-a-token", ""} {
		_, err := f.svc.Refresh(ctx, token, nil)
		assert.ErrorIs(t, err, ErrAuth, "token %q", token)
	}
}

func TestRefreshUnknownUser(t *testing.T) {
	f := newJWTFixture(t)
	ctx := context.Background()

	res, err := f.svc.Login(ctx, LoginRequest{Credentials: credentials(f.user, testPassword)})
	require.NoError(t, err)
	id, _ := f.user.ID()
	f.repo.mu.Lock()
	delete(f.repo.rows, id)
	f.repo.mu.Unlock()

	_, err = f.svc.Refresh(ctx, res.Auth.RefreshToken, nil)
	assert.ErrorIs(t, err, ErrAuth)
	assert.ErrorIs(t, err, ErrRecordNotFound)
}

func TestRefreshBlacklistedToken(t *testing.T) {
	f := newJWTFixture(t)
	ctx := context.Background()

	res, err := f.svc.Login(ctx, LoginRequest{Credentials: credentials(f.user, testPassword)})
	require.NoError(t, err)
	require.NoError(t, f.svc.Invalidate(ctx, res.Auth.RefreshToken, jwt.Refresh))

	_, err = f.svc.Refresh(ctx, res.Auth.RefreshToken, nil)
	assert.ErrorIs(t, err, ErrAuth)
	assert.ErrorIs(t, err, jwt.ErrBlacklisted)
}

func TestRevokeCascadesToRefreshToken(t *testing.T) {
	f := newJWTFixture(t)
	ctx := context.Background()

	res, err := f.svc.Login(ctx, LoginRequest{Credentials: credentials(f.user, testPassword)})
	require.NoError(t, err)
	access, err := f.svc.Tokens().Decode(ctx, res.Auth.AccessToken, jwt.Access, false)
	require.NoError(t, err)

	require.NoError(t, f.svc.Revoke(ctx, res.Auth.AccessToken))

	_, err = f.svc.Authenticate(ctx, res.Auth.AccessToken)
	assert.ErrorIs(t, err, ErrUnauthorized)
	_, err = f.svc.Refresh(ctx, res.Auth.RefreshToken, nil)
	assert.ErrorIs(t, err, ErrAuth)
	assert.False(t, f.mr.Exists(revocation.MapperKey(access.Jti)))
	assert.Equal(t, uint64(1), f.svc.MetricsSnapshot().Counters[MetricTokenRevoked])
}

func TestRevokeManyTokens(t *testing.T) {
	f := newJWTFixture(t)
	ctx := context.Background()

	first, err := f.svc.Login(ctx, LoginRequest{Credentials: credentials(f.user, testPassword)})
	require.NoError(t, err)
	second, err := f.svc.Login(ctx, LoginRequest{Credentials: credentials(f.user, testPassword)})
	require.NoError(t, err)

	require.NoError(t, f.svc.Revoke(ctx, first.Auth.AccessToken, second.Auth.AccessToken))

	for _, res := range []*LoginResult{first, second} {
		_, err := f.svc.Authenticate(ctx, res.Auth.AccessToken)
		assert.ErrorIs(t, err, ErrUnauthorized)
	}
}

func TestRevokeIsIdempotent(t *testing.T) {
	f := newJWTFixture(t)
	ctx := context.Background()

	res, err := f.svc.Login(ctx, LoginRequest{Credentials: credentials(f.user, testPassword)})
	require.NoError(t, err)

	require.NoError(t, f.svc.Revoke(ctx, res.Auth.AccessToken))
	require.NoError(t, f.svc.Revoke(ctx, res.Auth.AccessToken))
}

func TestRevokeGarbageToken(t *testing.T) {
	f := newJWTFixture(t)

	err := f.svc.Revoke(context.Background(), "garbage")

	var je *JWTError
	require.ErrorAs(t, err, &je)
	assert.Equal(t, "Revoke token is wrong", je.Message)
	assert.ErrorIs(t, err, ErrToken)
}

func TestInvalidateEmptyTokenIsNoop(t *testing.T) {
	f := newJWTFixture(t)

	require.NoError(t, f.svc.Invalidate(context.Background(), "", jwt.Access))
	assert.Empty(t, f.mr.Keys())
}

func TestInvalidateBlacklistsOnlyCheckedDecodes(t *testing.T) {
	f := newJWTFixture(t)
	ctx := context.Background()

	res, err := f.svc.Login(ctx, LoginRequest{Credentials: credentials(f.user, testPassword)})
	require.NoError(t, err)
	require.NoError(t, f.svc.Invalidate(ctx, res.Auth.AccessToken, jwt.Access))

	_, err = f.svc.Tokens().Decode(ctx, res.Auth.AccessToken, jwt.Access, true)
	assert.ErrorIs(t, err, jwt.ErrBlacklisted)
	_, err = f.svc.Tokens().Decode(ctx, res.Auth.AccessToken, jwt.Access, false)
	assert.NoError(t, err)
}

func TestInvalidateWithoutStorage(t *testing.T) {
	f := newJWTFixture(t, func(b *Builder, _ *Config) {
		b.WithStorage(nil)
	})
	ctx := context.Background()

	res, err := f.svc.Login(ctx, LoginRequest{Credentials: credentials(f.user, testPassword)})
	require.NoError(t, err)

	err = f.svc.Invalidate(ctx, res.Auth.AccessToken, jwt.Access)
	assert.ErrorIs(t, err, jwt.ErrBlacklistDisabled)

	_, _, err = f.svc.MappedRefreshToken(ctx, res.Auth.AccessToken)
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestAuthenticate(t *testing.T) {
	f := newJWTFixture(t)
	ctx := context.Background()

	res, err := f.svc.Login(ctx, LoginRequest{Credentials: credentials(f.user, testPassword)})
	require.NoError(t, err)

	sub, err := f.svc.Authenticate(ctx, res.Auth.AccessToken)
	require.NoError(t, err)
	id, ok := sub.ID()
	require.True(t, ok)
	wantID, _ := f.user.ID()
	assert.Equal(t, wantID, id)

	_, err = f.svc.Authenticate(ctx, "")
	var ue *UnauthorizedError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, "Unauthenticated.", ue.Message)

	f.clock.Advance(time.Hour)
	_, err = f.svc.Authenticate(ctx, res.Auth.AccessToken)
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.ErrorIs(t, err, jwt.ErrExpired)
}

func TestLogoutRevokesBothTokens(t *testing.T) {
	f := newJWTFixture(t)
	ctx := context.Background()

	res, err := f.svc.Login(ctx, LoginRequest{Credentials: credentials(f.user, testPassword)})
	require.NoError(t, err)

	require.NoError(t, f.svc.Logout(ctx, res.Auth.AccessToken))

	_, err = f.svc.Authenticate(ctx, res.Auth.AccessToken)
	assert.ErrorIs(t, err, ErrUnauthorized)
	_, err = f.svc.Refresh(ctx, res.Auth.RefreshToken, nil)
	assert.ErrorIs(t, err, ErrAuth)

	err = f.svc.Logout(ctx, "garbage")
	assert.ErrorIs(t, err, ErrToken)
}

func TestLoginUpgradesLegacyHash(t *testing.T) {
	fast, err := password.NewArgon2(password.Argon2Config{Memory: 8 * 1024, Time: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32})
	require.NoError(t, err)
	legacy := newTestHasher(t)
	chain := password.NewChain(fast, legacy)

	repo := newMemRepository()
	svc, err := New().
		WithConfig(testConfig()).
		WithRepository(repo).
		WithHasher(chain).
		WithLookupEnv(noEnv).
		BuildJWT()
	require.NoError(t, err)
	defer svc.Close()

	user := seedUser(t, repo, legacy, testPassword)
	_, err = svc.Login(context.Background(), LoginRequest{Credentials: credentials(user, testPassword)})
	require.NoError(t, err)

	id, _ := user.ID()
	stored := repo.row(id).String("password")
	assert.True(t, fast.Recognizes(stored), "hash not upgraded: %s", stored)

	_, err = svc.Login(context.Background(), LoginRequest{Credentials: credentials(user, testPassword)})
	assert.NoError(t, err)
}

func TestLoginUpgradesLowerCostHash(t *testing.T) {
	low := newTestHasher(t)
	current, err := password.NewBcrypt(5)
	require.NoError(t, err)

	repo := newMemRepository()
	svc, err := New().
		WithConfig(testConfig()).
		WithRepository(repo).
		WithHasher(current).
		WithLookupEnv(noEnv).
		BuildJWT()
	require.NoError(t, err)
	defer svc.Close()

	user := seedUser(t, repo, low, testPassword)
	_, err = svc.Login(context.Background(), LoginRequest{Credentials: credentials(user, testPassword)})
	require.NoError(t, err)

	id, _ := user.ID()
	cost, err := bcrypt.Cost([]byte(repo.row(id).String("password")))
	require.NoError(t, err)
	assert.Equal(t, 5, cost)
	assert.Equal(t, 1, repo.updates)
}
