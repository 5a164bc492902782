package tokenauth

import (
	"context"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrEthical07/tokenauth/jwt"
	"github.com/MrEthical07/tokenauth/storage"
)

func TestBuilderRequiresRepository(t *testing.T) {
	_, err := New().WithConfig(testConfig()).WithLookupEnv(noEnv).BuildJWT()
	assert.Error(t, err)
}

func TestBuilderSingleUse(t *testing.T) {
	b := New().WithConfig(testConfig()).WithRepository(newMemRepository()).WithHasher(newTestHasher(t)).WithLookupEnv(noEnv)

	svc, err := b.BuildJWT()
	require.NoError(t, err)
	defer svc.Close()

	_, err = b.BuildJWT()
	assert.EqualError(t, err, "builder already used")
}

func TestBuilderRejectsInvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.TokenPayloadFields = []string{"password"}

	_, err := New().WithConfig(cfg).WithRepository(newMemRepository()).WithLookupEnv(noEnv).BuildJWT()
	assert.Error(t, err)
}

func TestBuilderEnvironmentKeysWin(t *testing.T) {
	env := map[string]string{
		EnvJWTKey:        "env-access",
		EnvJWTRefreshKey: "env-refresh",
		EnvAppKey:        "env-app",
	}
	cfg := testConfig()

	svc, err := New().
		WithConfig(cfg).
		WithRepository(newMemRepository()).
		WithHasher(newTestHasher(t)).
		WithLookupEnv(func(k string) (string, bool) {
			v, ok := env[k]
			return v, ok
		}).
		BuildJWT()
	require.NoError(t, err)
	defer svc.Close()

	got := svc.Config()
	assert.Equal(t, "env-access", got.JWTKey)
	assert.Equal(t, "env-refresh", got.JWTRefreshKey)
	assert.Equal(t, "env-app", got.AppKey)
}

func TestBuilderEmptyEnvironmentKeepsConfig(t *testing.T) {
	svc, err := New().
		WithConfig(testConfig()).
		WithRepository(newMemRepository()).
		WithHasher(newTestHasher(t)).
		WithLookupEnv(func(string) (string, bool) { return "", true }).
		BuildJWT()
	require.NoError(t, err)
	defer svc.Close()

	assert.Equal(t, "access-secret-for-tests", svc.Config().JWTKey)
}

func TestBuilderWithoutKeysFailsOnIssue(t *testing.T) {
	cfg := testConfig()
	cfg.JWTKey = ""
	repo := newMemRepository()
	hasher := newTestHasher(t)

	svc, err := New().WithConfig(cfg).WithRepository(repo).WithHasher(hasher).WithLookupEnv(noEnv).BuildJWT()
	require.NoError(t, err)
	defer svc.Close()
	user := seedUser(t, repo, hasher, testPassword)

	_, err = svc.Login(context.Background(), LoginRequest{Credentials: credentials(user, testPassword)})
	assert.ErrorIs(t, err, jwt.ErrKeyNotConfigured)
}

func TestBuilderDefaultHasherVerifiesBcrypt(t *testing.T) {
	repo := newMemRepository()
	svc, err := New().WithConfig(testConfig()).WithRepository(repo).WithLookupEnv(noEnv).BuildJWT()
	require.NoError(t, err)
	defer svc.Close()

	user := seedUser(t, repo, newTestHasher(t), testPassword)
	_, err = svc.Login(context.Background(), LoginRequest{Credentials: credentials(user, testPassword)})
	assert.NoError(t, err)
}

func TestBuilderPrefixedStorageNamespacesRevocationKeys(t *testing.T) {
	orders := map[string]func(*Builder, redis.UniversalClient) *Builder{
		"storage after redis": func(b *Builder, c redis.UniversalClient) *Builder {
			return b.WithRedis(c).WithStorage(storage.NewRedis(c, "myapp"))
		},
		"storage before redis": func(b *Builder, c redis.UniversalClient) *Builder {
			return b.WithStorage(storage.NewRedis(c, "myapp")).WithRedis(c)
		},
	}
	for name, wire := range orders {
		t.Run(name, func(t *testing.T) {
			mr := miniredis.RunT(t)
			rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
			t.Cleanup(func() { _ = rdb.Close() })

			repo := newMemRepository()
			hasher := newTestHasher(t)
			b := New().WithConfig(testConfig()).WithRepository(repo).WithHasher(hasher).WithLookupEnv(noEnv)
			svc, err := wire(b, rdb).BuildJWT()
			require.NoError(t, err)
			defer svc.Close()

			user := seedUser(t, repo, hasher, testPassword)
			res, err := svc.Login(context.Background(), LoginRequest{Credentials: credentials(user, testPassword)})
			require.NoError(t, err)
			require.NoError(t, svc.Revoke(context.Background(), res.Auth.AccessToken))

			keys := mr.Keys()
			require.NotEmpty(t, keys)
			for _, k := range keys {
				assert.True(t, strings.HasPrefix(k, "myapp:"), "key %q outside namespace", k)
			}
		})
	}
}

func TestBuilderRedisKeysUnprefixedByDefault(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	repo := newMemRepository()
	hasher := newTestHasher(t)
	svc, err := New().WithConfig(testConfig()).WithRepository(repo).WithHasher(hasher).WithLookupEnv(noEnv).WithRedis(rdb).BuildJWT()
	require.NoError(t, err)
	defer svc.Close()

	user := seedUser(t, repo, hasher, testPassword)
	res, err := svc.Login(context.Background(), LoginRequest{Credentials: credentials(user, testPassword)})
	require.NoError(t, err)
	require.NoError(t, svc.Revoke(context.Background(), res.Auth.AccessToken))

	p, err := svc.Tokens().Decode(context.Background(), res.Auth.AccessToken, jwt.Access, false)
	require.NoError(t, err)
	assert.True(t, mr.Exists(p.Jti))
}
