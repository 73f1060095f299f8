package cache

import (
	"time"

	"github.com/dgraph-io/ristretto"
	"go.uber.org/zap"
)

// Idempotency lembra o betId criado para cada Idempotency-Key por um TTL
type Idempotency struct {
	cache  *ristretto.Cache
	ttl    time.Duration
	logger *zap.Logger
}

// NewIdempotency cria o cache local; maxKeys limita quantas chaves ficam retidas
func NewIdempotency(maxKeys int64, ttl time.Duration, logger *zap.Logger) (*Idempotency, error) {
	c, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: maxKeys * 10,
		MaxCost:     maxKeys,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &Idempotency{cache: c, ttl: ttl, logger: logger}, nil
}

func (i *Idempotency) Lookup(key string) (uint64, bool) {
	v, ok := i.cache.Get(key)
	if !ok {
		return 0, false
	}
	id, ok := v.(uint64)
	if ok {
		i.logger.Debug("idempotent replay", zap.String("key", key), zap.Uint64("betId", id))
	}
	return id, ok
}

// Remember grava e espera o buffer do ristretto para que o próximo Lookup já veja a chave
func (i *Idempotency) Remember(key string, betID uint64) {
	if i.cache.SetWithTTL(key, betID, 1, i.ttl) {
		i.cache.Wait()
	}
}

func (i *Idempotency) Close() { i.cache.Close() }
