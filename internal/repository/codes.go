package repository

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ggokuldas06/senior-launcher-sub001/internal/model"
)

// CodeStore issues and redeems pairing codes. Redemption must be atomic:
// when N guardians redeem the same code concurrently, exactly one wins and
// the rest observe ErrCodeConsumed.
type CodeStore interface {
	// Generate creates a fresh 6-digit code for the elder with the given
	// time-to-live. Codes never collide with another live (unconsumed,
	// unexpired) code.
	Generate(ctx context.Context, elderID string, ttl time.Duration) (model.PairingCode, error)
	// Redeem consumes a code and returns the elder it was issued for.
	// Returns ErrCodeNotFound, ErrCodeExpired or ErrCodeConsumed on failure.
	Redeem(ctx context.Context, code string) (string, error)
}

// codeKeyPrefix namespaces pairing code hashes in Redis.
const codeKeyPrefix = "paircode:"

// codeRetention keeps consumed and expired code records around after they
// stop being redeemable, so late redemption attempts can still be told apart
// (ALREADY_CONSUMED / EXPIRED) instead of collapsing into NOT_FOUND.
const codeRetention = time.Hour

// maxGenerateAttempts bounds collision retries. With 900k possible codes and
// minute-scale TTLs, hitting this means Redis is unhealthy, not unlucky.
const maxGenerateAttempts = 25

// claimScript atomically claims a code slot. The slot is free when no record
// exists, or when the existing record is consumed or past its expiry; a live
// code blocks the claim so two elders can never share a code.
var claimScript = redis.NewScript(`
    local key = KEYS[1]
    local now_ms = tonumber(ARGV[1])
    local expires_ms = tonumber(ARGV[2])

    local cur = redis.call('HMGET', key, 'expires_ms', 'consumed')
    if cur[1] and cur[2] ~= '1' and now_ms < tonumber(cur[1]) then
        return 0
    end

    redis.call('DEL', key)
    redis.call('HSET', key,
        'elder', ARGV[3],
        'issued_ms', ARGV[4],
        'expires_ms', expires_ms,
        'consumed', '0')
    redis.call('PEXPIRE', key, (expires_ms - now_ms) + tonumber(ARGV[5]))
    return 1
`)

// redeemScript performs the validity check and the consumption as one
// indivisible step. expires_ms is the source of truth for expiry; the key
// TTL only garbage-collects the record afterwards.
var redeemScript = redis.NewScript(`
    local key = KEYS[1]
    local now_ms = tonumber(ARGV[1])

    local cur = redis.call('HMGET', key, 'elder', 'expires_ms', 'consumed')
    if not cur[1] then
        return {'NOT_FOUND', ''}
    end
    if cur[3] == '1' then
        return {'ALREADY_CONSUMED', ''}
    end
    if now_ms >= tonumber(cur[2]) then
        return {'EXPIRED', ''}
    end

    redis.call('HSET', key, 'consumed', '1')
    return {'OK', cur[1]}
`)

// RedisCodeStore keeps pairing codes in Redis hashes. Atomicity of
// generation and redemption comes from Lua scripts, so concurrent redeemers
// race inside Redis rather than in application code.
type RedisCodeStore struct {
	rdb *redis.Client
}

// NewRedisCodeStore returns a CodeStore backed by the given client.
func NewRedisCodeStore(rdb *redis.Client) *RedisCodeStore {
	return &RedisCodeStore{rdb: rdb}
}

// Generate picks random 6-digit codes until one claims a free slot.
func (s *RedisCodeStore) Generate(ctx context.Context, elderID string, ttl time.Duration) (model.PairingCode, error) {
	for attempt := 0; attempt < maxGenerateAttempts; attempt++ {
		code, err := randomCode()
		if err != nil {
			return model.PairingCode{}, err
		}
		now := time.Now().UTC()
		expires := now.Add(ttl)

		ok, err := claimScript.Run(ctx, s.rdb, []string{codeKeyPrefix + code},
			now.UnixMilli(),
			expires.UnixMilli(),
			elderID,
			now.UnixMilli(),
			codeRetention.Milliseconds(),
		).Int()
		if err != nil {
			return model.PairingCode{}, fmt.Errorf("claim pairing code: %w", err)
		}
		if ok == 1 {
			return model.PairingCode{
				Code:      code,
				ElderID:   elderID,
				IssuedAt:  now,
				ExpiresAt: expires,
			}, nil
		}
	}
	return model.PairingCode{}, errors.New("could not allocate a unique pairing code")
}

// Redeem consumes the code atomically and returns its elder id.
func (s *RedisCodeStore) Redeem(ctx context.Context, code string) (string, error) {
	res, err := redeemScript.Run(ctx, s.rdb, []string{codeKeyPrefix + code},
		time.Now().UTC().UnixMilli(),
	).StringSlice()
	if err != nil {
		return "", fmt.Errorf("redeem pairing code: %w", err)
	}
	if len(res) != 2 {
		return "", fmt.Errorf("redeem pairing code: unexpected script reply %v", res)
	}
	switch res[0] {
	case "OK":
		return res[1], nil
	case "EXPIRED":
		return "", ErrCodeExpired
	case "ALREADY_CONSUMED":
		return "", ErrCodeConsumed
	default:
		return "", ErrCodeNotFound
	}
}

// randomCode draws a uniformly distributed 6-digit code from crypto/rand.
func randomCode() (string, error) {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	n := binary.BigEndian.Uint64(b[:]) % 900000
	return fmt.Sprintf("%06d", 100000+n), nil
}
