package sequence

import (
	"context"
	"crypto/rand"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
)

var Module = fx.Module("sequence",
	fx.Provide(NewRedisGenerator),
)

// Generator mints human-readable codes for rows that are surfaced to
// operators and support staff. Codes are not identifiers; rows keep their
// snowflake ids.
type Generator interface {
	NextTransactionCode(ctx context.Context, brandID string) (string, error)
	NextSpinCode(ctx context.Context, brandID string) (string, error)
}

type RedisGenerator struct {
	rdb *redis.Client
}

type Params struct {
	fx.In

	Redis *redis.Client
}

func NewRedisGenerator(p Params) Generator {
	return &RedisGenerator{
		rdb: p.Redis,
	}
}

func (g *RedisGenerator) NextTransactionCode(ctx context.Context, brandID string) (string, error) {
	return g.nextDailyCode(ctx, "TXN", brandID)
}

func (g *RedisGenerator) NextSpinCode(ctx context.Context, brandID string) (string, error) {
	return g.nextDailyCode(ctx, "SPN", brandID)
}

func (g *RedisGenerator) nextDailyCode(ctx context.Context, prefix, brandID string) (string, error) {
	today := time.Now().UTC().Format("060102")
	key := fmt.Sprintf("seq:%s:%s:%s", prefix, brandID, today)

	seq, err := g.rdb.Incr(ctx, key).Result()
	if err != nil {
		return "", err
	}

	if seq == 1 {
		expire := time.Until(time.Now().Truncate(24 * time.Hour).Add(24*time.Hour - time.Second))
		_ = g.rdb.Expire(ctx, key, expire).Err()
	}

	encodedSeq := strings.ToUpper(fmt.Sprintf("%03s", strconv.FormatInt(seq, 36)))

	return fmt.Sprintf("%s-%s-%s", prefix, today, encodedSeq), nil
}

// LocalGenerator mints codes without redis, used in tests and as a fallback
// for single-node deployments. Daily sequencing is replaced by a random
// suffix, so codes are unique but not ordered.
type LocalGenerator struct{}

func NewLocalGenerator() Generator {
	return &LocalGenerator{}
}

func (g *LocalGenerator) NextTransactionCode(ctx context.Context, brandID string) (string, error) {
	return localCode("TXN")
}

func (g *LocalGenerator) NextSpinCode(ctx context.Context, brandID string) (string, error) {
	return localCode("SPN")
}

func localCode(prefix string) (string, error) {
	datePart := time.Now().UTC().Format("060102")

	r := make([]byte, 3)
	if _, err := rand.Read(r); err != nil {
		return "", err
	}
	randomPart := strings.ToUpper(fmt.Sprintf("%x", r))

	return fmt.Sprintf("%s-%s-%s", prefix, datePart, randomPart), nil
}
