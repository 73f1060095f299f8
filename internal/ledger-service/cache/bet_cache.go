package cache

import (
	"context"
	_ "embed"
	"encoding/json"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

//go:embed scripts/set_if_newer.lua
var setIfNewerLua string

// BetCache guarda o BetDetails serializado no Redis, num hash com a versão da
// aposta ("v") e o JSON ("d"). Uma escrita só vence se a versão for maior que
// a guardada, então uma leitura atrasada não sobrescreve o estado de uma
// mutação mais nova. O TTL limita o quanto o status derivado do relógio envelhece.
//
// Chave: ledger:{instância}:bet:{betID}
type BetCache struct {
	R        *redis.Client
	Instance string
	TTL      time.Duration

	setIfNewer *redis.Script
}

func New(r *redis.Client, instance string, ttl time.Duration) *BetCache {
	return &BetCache{R: r, Instance: instance, TTL: ttl, setIfNewer: redis.NewScript(setIfNewerLua)}
}

func (c *BetCache) keyBet(betID uint64) string {
	return "ledger:" + c.Instance + ":bet:" + strconv.FormatUint(betID, 10)
}

func (c *BetCache) Get(ctx context.Context, betID uint64, dst any) (bool, error) {
	b, err := c.R.HGet(ctx, c.keyBet(betID), "d").Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, json.Unmarshal(b, dst)
}

// Set grava v se version for maior que a versão em cache, com o menor entre o
// TTL configurado e ttl (zero ou negativo = configurado)
func (c *BetCache) Set(ctx context.Context, betID, version uint64, v any, ttl time.Duration) error {
	if ttl <= 0 || ttl > c.TTL {
		ttl = c.TTL
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.setIfNewer.Run(ctx, c.R, []string{c.keyBet(betID)}, version, b, ttl.Milliseconds()).Err()
}

func (c *BetCache) Invalidate(ctx context.Context, betID uint64) error {
	return c.R.Del(ctx, c.keyBet(betID)).Err()
}
