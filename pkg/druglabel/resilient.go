package druglabel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"github.com/biologic-optimizer/internal/domain"
)

const defaultLocalCacheSize = 256

// ResilientClient wraps a label client with a circuit breaker and two
// cache tiers: an in-process expirable LRU and an optional shared Redis
// cache. Cached labels keep the screener working while openFDA is down
// or the breaker is open.
type ResilientClient struct {
	next    domain.DrugLabelService
	breaker *gobreaker.CircuitBreaker
	local   *expirable.LRU[string, *domain.DrugLabelFact]
	redis   *redis.Client
	ttl     time.Duration
	logger  *logrus.Logger
}

// NewResilientClient builds the resilient wrapper. redisClient may be nil,
// in which case only the local cache tier is used.
func NewResilientClient(next domain.DrugLabelService, cfg *domain.DrugLabelConfig, redisClient *redis.Client, logger *logrus.Logger) *ResilientClient {
	localSize := cfg.LocalCache
	if localSize <= 0 {
		localSize = defaultLocalCacheSize
	}
	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "DrugLabel",
		MaxRequests: 5,
		Interval:    30 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		// A label miss is a valid answer, not a service failure.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, domain.ErrNotFound)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.WithFields(logrus.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("Drug label circuit breaker state changed")
		},
	})

	return &ResilientClient{
		next:    next,
		breaker: breaker,
		local:   expirable.NewLRU[string, *domain.DrugLabelFact](localSize, nil, ttl),
		redis:   redisClient,
		ttl:     ttl,
		logger:  logger,
	}
}

// GetLabelFacts resolves label facts through the cache tiers, falling back
// to the upstream client behind the circuit breaker. Misses are not cached:
// a drug absent today may gain a label tomorrow.
func (c *ResilientClient) GetLabelFacts(ctx context.Context, drugName string) (*domain.DrugLabelFact, error) {
	key := labelKey(drugName)

	if fact, ok := c.local.Get(key); ok {
		return fact, nil
	}
	if fact := c.redisGet(ctx, key); fact != nil {
		c.local.Add(key, fact)
		return fact, nil
	}

	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.next.GetLabelFacts(ctx, drugName)
	})
	if err != nil {
		return nil, fmt.Errorf("drug label lookup failed: %w", err)
	}

	fact := result.(*domain.DrugLabelFact)
	c.local.Add(key, fact)
	c.redisSet(ctx, key, fact)
	return fact, nil
}

func (c *ResilientClient) redisGet(ctx context.Context, key string) *domain.DrugLabelFact {
	if c.redis == nil {
		return nil
	}
	payload, err := c.redis.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.WithError(err).Debug("Drug label redis read failed")
		}
		return nil
	}
	var fact domain.DrugLabelFact
	if err := json.Unmarshal(payload, &fact); err != nil {
		c.logger.WithError(err).WithField("key", key).Warn("Discarding corrupt cached drug label")
		c.redis.Del(ctx, key)
		return nil
	}
	return &fact
}

func (c *ResilientClient) redisSet(ctx context.Context, key string, fact *domain.DrugLabelFact) {
	if c.redis == nil {
		return
	}
	payload, err := json.Marshal(fact)
	if err != nil {
		return
	}
	if err := c.redis.Set(ctx, key, payload, c.ttl).Err(); err != nil {
		c.logger.WithError(err).Debug("Drug label redis write failed")
	}
}

func labelKey(drugName string) string {
	return "druglabel:" + strings.ToLower(strings.TrimSpace(drugName))
}

var _ domain.DrugLabelService = (*ResilientClient)(nil)
