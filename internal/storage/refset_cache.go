package storage

import (
	"encoding/json"
	"log"
	"time"

	"registration-service/internal/models"
)

const refsetKey = "regs:coords"

// RefsetCache caches the coordinate-bearing registration reference set used
// by advisory duplicate checks, so a device emitting noisy GPS updates does
// not hammer Postgres. Every method fails open: a cache error behaves like
// a miss.
type RefsetCache struct {
	client *RedisClient
	ttl    time.Duration
}

// NewRefsetCache creates a reference-set cache with the given TTL.
func NewRefsetCache(client *RedisClient, ttl time.Duration) *RefsetCache {
	return &RefsetCache{client: client, ttl: ttl}
}

// Get returns the cached reference set, or ok=false on miss or error.
func (c *RefsetCache) Get() ([]models.Registration, bool) {
	if c == nil || c.client == nil {
		return nil, false
	}
	data, err := c.client.GetBytes(refsetKey)
	if err != nil {
		log.Printf("Refset cache read failed: %v", err)
		return nil, false
	}
	if data == nil {
		return nil, false
	}
	var regs []models.Registration
	if err := json.Unmarshal(data, &regs); err != nil {
		log.Printf("Refset cache payload invalid, dropping: %v", err)
		_ = c.client.Delete(refsetKey)
		return nil, false
	}
	return regs, true
}

// Store caches the reference set for the configured TTL.
func (c *RefsetCache) Store(regs []models.Registration) {
	if c == nil || c.client == nil {
		return
	}
	data, err := json.Marshal(regs)
	if err != nil {
		return
	}
	if err := c.client.SetBytes(refsetKey, data, c.ttl); err != nil {
		log.Printf("Refset cache write failed: %v", err)
	}
}

// Invalidate drops the cached reference set, called after a new
// registration is inserted.
func (c *RefsetCache) Invalidate() {
	if c == nil || c.client == nil {
		return
	}
	if err := c.client.Delete(refsetKey); err != nil {
		log.Printf("Refset cache invalidation failed: %v", err)
	}
}
