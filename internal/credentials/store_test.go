package credentials

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	mr "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestFileStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "strava_tokens.json")
	store := NewFileStore(path)

	_, err := store.Load(ctx)
	require.ErrorIs(t, err, ErrNotFound)

	cred := &Credential{
		AccessToken:  "at-1",
		RefreshToken: "rt-1",
		ExpiresAt:    time.Now().Add(6 * time.Hour).Unix(),
	}
	require.NoError(t, store.Save(ctx, cred))

	got, err := store.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, cred, got)

	// persisted layout matches the original tokens file field names
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(b), `"access_token"`)
	require.Contains(t, string(b), `"refresh_token"`)
	require.Contains(t, string(b), `"expires_at"`)
}

func TestFileStoreSaveOverwrites(t *testing.T) {
	ctx := context.Background()
	store := NewFileStore(filepath.Join(t.TempDir(), "tokens.json"))

	require.NoError(t, store.Save(ctx, &Credential{AccessToken: "old", RefreshToken: "r1", ExpiresAt: 1}))
	require.NoError(t, store.Save(ctx, &Credential{AccessToken: "new", RefreshToken: "r2", ExpiresAt: 2}))

	got, err := store.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, "new", got.AccessToken)
	require.Equal(t, "r2", got.RefreshToken)
}

func TestRedisStoreRoundTrip(t *testing.T) {
	s, err := mr.Run()
	require.NoError(t, err)
	defer s.Close()

	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	store := NewRedisStore(client, "")
	ctx := context.Background()

	_, err = store.Load(ctx)
	require.ErrorIs(t, err, ErrNotFound)

	cred := &Credential{AccessToken: "at", RefreshToken: "rt", ExpiresAt: 1700000000}
	require.NoError(t, store.Save(ctx, cred))

	got, err := store.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, cred, got)
}

func TestCredentialStale(t *testing.T) {
	fresh := &Credential{ExpiresAt: time.Now().Add(time.Hour).Unix()}
	if fresh.Stale(5 * time.Minute) {
		t.Fatalf("credential with 1h left should not be stale")
	}
	inMargin := &Credential{ExpiresAt: time.Now().Add(2 * time.Minute).Unix()}
	if !inMargin.Stale(5 * time.Minute) {
		t.Fatalf("credential inside the safety margin should be stale")
	}
	expired := &Credential{ExpiresAt: time.Now().Add(-time.Hour).Unix()}
	if !expired.Stale(5 * time.Minute) {
		t.Fatalf("expired credential should be stale")
	}
}
