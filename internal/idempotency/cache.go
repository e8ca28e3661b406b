package idempotency

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/coocood/freecache"
	log "github.com/sirupsen/logrus"
)

const HeaderKey = "Idempotency-Key"

const megabyte = 1024 * 1024

// StoredResponse is a completed response kept for replay.
type StoredResponse struct {
	Status      int    `json:"status"`
	ContentType string `json:"contentType"`
	Body        []byte `json:"body"`
}

// Cache keeps responses of mutating requests per (user, route, key), so a client
// retrying with the same Idempotency-Key gets the first answer back.
type Cache struct {
	cache *freecache.Cache
	ttl   time.Duration
}

func NewCache(sizeMB int, ttl time.Duration) *Cache {
	if sizeMB <= 0 {
		sizeMB = 1
	}
	return &Cache{
		cache: freecache.NewCache(sizeMB * megabyte),
		ttl:   ttl,
	}
}

func cacheKey(userID, route, key string) []byte {
	return []byte(fmt.Sprintf("%s::%s::%s", userID, route, key))
}

func (c *Cache) Get(userID, route, key string) (*StoredResponse, bool) {
	respBytes, err := c.cache.Get(cacheKey(userID, route, key))
	if err != nil {
		if !errors.Is(err, freecache.ErrNotFound) {
			log.Errorf("idempotency cache get: %s", err)
		}
		return nil, false
	}

	resp := &StoredResponse{}
	if err := json.Unmarshal(respBytes, resp); err != nil {
		log.Errorf("idempotency cache, unmarshal stored response: %s", err)
		return nil, false
	}
	return resp, true
}

func (c *Cache) Put(userID, route, key string, resp StoredResponse) error {
	respBytes, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("marshal stored response: %w", err)
	}
	if err := c.cache.Set(cacheKey(userID, route, key), respBytes, int(c.ttl.Seconds())); err != nil {
		return fmt.Errorf("cache set: %w", err)
	}
	return nil
}

func (c *Cache) EntryCount() int64 {
	return c.cache.EntryCount()
}
