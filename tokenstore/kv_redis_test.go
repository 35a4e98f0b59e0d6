package tokenstore_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-portal/tokenstore"
	"github.com/stretchr/testify/require"
)

func TestRedisKV(t *testing.T) {
	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("REDIS_URL not set")
	}
	ctx := context.Background()
	client, err := tokenstore.DialRedis(ctx, url)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	kv := tokenstore.NewRedisKV(client, "portal-test:"+uuid.NewString()+":", time.Minute)
	s := tokenstore.New(kv)

	require.NoError(t, s.SetTokens(ctx, &tokenstore.Pair{AccessToken: "a1", RefreshToken: "r1"}))
	require.Equal(t, "r1", tokenstore.New(kv).Tokens(ctx).RefreshToken)

	require.NoError(t, s.SetTokens(ctx, nil))
	_, err = kv.Get(ctx, "auth.tokens")
	require.ErrorIs(t, err, tokenstore.ErrKeyNotFound)
}
