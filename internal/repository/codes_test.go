package repository

import (
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var sixDigits = regexp.MustCompile(`^\d{6}$`)

func newTestCodeStore(t *testing.T) *RedisCodeStore {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewRedisCodeStore(rdb)
}

func TestRedisCodeStore_GenerateAndRedeem(t *testing.T) {
	store := newTestCodeStore(t)

	code, err := store.Generate(t.Context(), "elder-1", 10*time.Minute)
	require.NoError(t, err)
	assert.Regexp(t, sixDigits, code.Code)
	assert.Equal(t, "elder-1", code.ElderID)
	assert.True(t, code.ExpiresAt.After(code.IssuedAt))

	elderID, err := store.Redeem(t.Context(), code.Code)
	require.NoError(t, err)
	assert.Equal(t, "elder-1", elderID)
}

func TestRedisCodeStore_RedeemTwice(t *testing.T) {
	store := newTestCodeStore(t)

	code, err := store.Generate(t.Context(), "elder-1", 10*time.Minute)
	require.NoError(t, err)

	_, err = store.Redeem(t.Context(), code.Code)
	require.NoError(t, err)

	_, err = store.Redeem(t.Context(), code.Code)
	assert.ErrorIs(t, err, ErrCodeConsumed)
}

func TestRedisCodeStore_RedeemUnknown(t *testing.T) {
	store := newTestCodeStore(t)

	_, err := store.Redeem(t.Context(), "000000")
	assert.ErrorIs(t, err, ErrCodeNotFound)
}

func TestRedisCodeStore_RedeemExpired(t *testing.T) {
	store := newTestCodeStore(t)

	// expires_ms in the record is the expiry source of truth, so a real
	// millisecond-scale TTL expires without touching the server clock.
	code, err := store.Generate(t.Context(), "elder-1", time.Millisecond)
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)

	_, err = store.Redeem(t.Context(), code.Code)
	assert.ErrorIs(t, err, ErrCodeExpired, "expired must not collapse into not-found while the record is retained")
}

func TestRedisCodeStore_ConcurrentRedeem(t *testing.T) {
	store := newTestCodeStore(t)

	code, err := store.Generate(t.Context(), "elder-1", 10*time.Minute)
	require.NoError(t, err)

	const redeemers = 20
	var wg sync.WaitGroup
	results := make(chan error, redeemers)
	for i := 0; i < redeemers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.Redeem(t.Context(), code.Code)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	won, lost := 0, 0
	for err := range results {
		if err == nil {
			won++
		} else {
			assert.ErrorIs(t, err, ErrCodeConsumed)
			lost++
		}
	}
	assert.Equal(t, 1, won, "exactly one redeemer may win")
	assert.Equal(t, redeemers-1, lost)
}

func TestMemoryCodeStore_MatchesRedisSemantics(t *testing.T) {
	store := NewMemoryCodeStore()
	now := time.Now().UTC()
	store.SetClock(func() time.Time { return now })

	code, err := store.Generate(t.Context(), "elder-1", 10*time.Minute)
	require.NoError(t, err)
	assert.Regexp(t, sixDigits, code.Code)

	// Past the expiry boundary the code is dead even though it was never used.
	now = code.ExpiresAt
	_, err = store.Redeem(t.Context(), code.Code)
	assert.ErrorIs(t, err, ErrCodeExpired)

	// A fresh code consumed once stays consumed.
	now = time.Now().UTC()
	code2, err := store.Generate(t.Context(), "elder-2", 10*time.Minute)
	require.NoError(t, err)
	elderID, err := store.Redeem(t.Context(), code2.Code)
	require.NoError(t, err)
	assert.Equal(t, "elder-2", elderID)
	_, err = store.Redeem(t.Context(), code2.Code)
	assert.ErrorIs(t, err, ErrCodeConsumed)

	_, err = store.Redeem(t.Context(), "999999")
	assert.ErrorIs(t, err, ErrCodeNotFound)
}
