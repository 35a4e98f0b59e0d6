package tokenstore_test

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/jrsteele09/go-portal/tokenstore"
	"github.com/jrsteele09/go-portal/users"
	"github.com/stretchr/testify/require"
)

// brokenKV simulates storage that is not available in the current runtime
type brokenKV struct{}

func (brokenKV) Get(context.Context, string) (string, error) {
	return "", errors.New("storage unavailable")
}
func (brokenKV) Set(context.Context, string, string) error { return errors.New("storage unavailable") }
func (brokenKV) Delete(context.Context, ...string) error   { return errors.New("storage unavailable") }

func TestStore_SetAndClearTokens(t *testing.T) {
	ctx := context.Background()
	kv := tokenstore.NewMemoryKV()
	s := tokenstore.New(kv)

	require.Nil(t, s.Tokens(ctx))

	require.NoError(t, s.SetTokens(ctx, &tokenstore.Pair{AccessToken: "a1", RefreshToken: "r1"}))
	require.Equal(t, &tokenstore.Pair{AccessToken: "a1", RefreshToken: "r1"}, s.Tokens(ctx))
	require.NoError(t, s.SetCachedUser(ctx, &users.User{ID: "u1", Email: "a@b.com"}))
	require.Equal(t, 2, kv.Len())

	require.NoError(t, s.SetTokens(ctx, nil))
	require.Nil(t, s.Tokens(ctx))
	require.Nil(t, s.CachedUser(ctx))
	require.Equal(t, 0, kv.Len())
}

func TestStore_ReturnedPairIsACopy(t *testing.T) {
	ctx := context.Background()
	s := tokenstore.New(tokenstore.NewMemoryKV())
	require.NoError(t, s.SetTokens(ctx, &tokenstore.Pair{AccessToken: "a1", RefreshToken: "r1"}))

	p := s.Tokens(ctx)
	p.AccessToken = "tampered"
	require.Equal(t, "a1", s.Tokens(ctx).AccessToken)
}

func TestStore_SurvivesReload(t *testing.T) {
	ctx := context.Background()
	kv := tokenstore.NewMemoryKV()
	require.NoError(t, tokenstore.New(kv).SetTokens(ctx, &tokenstore.Pair{AccessToken: "a1", RefreshToken: "r1"}))

	reloaded := tokenstore.New(kv)
	require.Equal(t, "a1", reloaded.Tokens(ctx).AccessToken)
}

func TestStore_UnavailableStorageReadsAsSignedOut(t *testing.T) {
	ctx := context.Background()
	s := tokenstore.New(brokenKV{})

	require.NotPanics(t, func() {
		require.Nil(t, s.Tokens(ctx))
		require.Nil(t, s.CachedUser(ctx))
	})

	err := s.SetTokens(ctx, &tokenstore.Pair{AccessToken: "a1"})
	require.Error(t, err)
	// the in-memory view still follows the latest write
	require.Equal(t, "a1", s.Tokens(ctx).AccessToken)

	require.Error(t, s.SetTokens(ctx, nil))
	require.Nil(t, s.Tokens(ctx))
}

func TestStore_EmptyAccessTokenClears(t *testing.T) {
	ctx := context.Background()
	s := tokenstore.New(tokenstore.NewMemoryKV())
	require.NoError(t, s.SetTokens(ctx, &tokenstore.Pair{AccessToken: "a1"}))
	require.NoError(t, s.SetTokens(ctx, &tokenstore.Pair{RefreshToken: "r-only"}))
	require.Nil(t, s.Tokens(ctx))
}

func TestPair_NeverPrintsTokens(t *testing.T) {
	p := tokenstore.Pair{AccessToken: "secret-access", RefreshToken: "secret-refresh"}
	for _, out := range []string{p.String(), fmt.Sprintf("%v", p), fmt.Sprintf("%+v", p), fmt.Sprintf("%#v", p)} {
		require.NotContains(t, out, "secret-access")
		require.NotContains(t, out, "secret-refresh")
	}
}

func TestFileKV_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "sessions.json")

	kv, err := tokenstore.NewFileKV(path)
	require.NoError(t, err)
	s := tokenstore.New(kv)
	require.NoError(t, s.SetTokens(ctx, &tokenstore.Pair{AccessToken: "a1", RefreshToken: "r1"}))

	reopened, err := tokenstore.NewFileKV(path)
	require.NoError(t, err)
	require.Equal(t, "r1", tokenstore.New(reopened).Tokens(ctx).RefreshToken)

	require.NoError(t, s.SetTokens(ctx, nil))
	reopened, err = tokenstore.NewFileKV(path)
	require.NoError(t, err)
	_, err = reopened.Get(ctx, "auth.tokens")
	require.ErrorIs(t, err, tokenstore.ErrKeyNotFound)
}

func TestFileKV_RequiresPath(t *testing.T) {
	_, err := tokenstore.NewFileKV("")
	require.Error(t, err)
}

func TestNamespace_IsolatesSessions(t *testing.T) {
	ctx := context.Background()
	kv := tokenstore.NewMemoryKV()
	a := tokenstore.New(tokenstore.Namespace(kv, "session-a"))
	b := tokenstore.New(tokenstore.Namespace(kv, "session-b"))

	require.NoError(t, a.SetTokens(ctx, &tokenstore.Pair{AccessToken: "a"}))
	require.Nil(t, b.Tokens(ctx))

	raw, err := kv.Get(ctx, "session-a:auth.tokens")
	require.NoError(t, err)
	require.Contains(t, raw, `"accessToken":"a"`)
}

func TestSealedKV(t *testing.T) {
	ctx := context.Background()
	inner := tokenstore.NewMemoryKV()
	sealed, err := tokenstore.NewSealedKV(inner, "top-secret")
	require.NoError(t, err)

	t.Run("round trip hides plaintext", func(t *testing.T) {
		require.NoError(t, sealed.Set(ctx, "k", "plain-value"))
		raw, err := inner.Get(ctx, "k")
		require.NoError(t, err)
		require.NotContains(t, raw, "plain-value")

		v, err := sealed.Get(ctx, "k")
		require.NoError(t, err)
		require.Equal(t, "plain-value", v)
	})

	t.Run("wrong secret cannot open", func(t *testing.T) {
		other, err := tokenstore.NewSealedKV(inner, "another-secret")
		require.NoError(t, err)
		_, err = other.Get(ctx, "k")
		require.ErrorIs(t, err, tokenstore.ErrSealedValue)
	})

	t.Run("value moved to another key cannot open", func(t *testing.T) {
		raw, err := inner.Get(ctx, "k")
		require.NoError(t, err)
		require.NoError(t, inner.Set(ctx, "moved", raw))
		_, err = sealed.Get(ctx, "moved")
		require.ErrorIs(t, err, tokenstore.ErrSealedValue)
	})

	t.Run("missing key", func(t *testing.T) {
		_, err := sealed.Get(ctx, "absent")
		require.ErrorIs(t, err, tokenstore.ErrKeyNotFound)
	})

	t.Run("requires secret", func(t *testing.T) {
		_, err := tokenstore.NewSealedKV(inner, "")
		require.Error(t, err)
	})
}
