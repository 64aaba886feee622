package cache

import (
	"container/list"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

var (
	ErrKeyExists = errors.New("key already exists in cache")
)

// Cache is a weighted LRU cache with an optional time to live per entry.
type Cache interface {
	SetVerbose(verbose bool)
	GetWeight() int
	GetBudget() int

	// Insert adds an item, evicting the least recently used items until the
	// total weight fits the budget. Existing keys are rejected with
	// ErrKeyExists.
	Insert(key string, value interface{}, weight int) error

	// Retrieve returns an unexpired item and marks it as recently used.
	Retrieve(key string) (interface{}, bool)

	Clear()
}

type entry struct {
	key       string
	value     interface{}
	weight    int
	expiresAt time.Time
}

type cache struct {
	log *logrus.Entry

	mu      sync.Mutex
	order   *list.List // front is most recently used
	lookup  map[string]*list.Element
	weight  int
	budget  int
	ttl     time.Duration
	verbose bool

	now func() time.Time
}

// NewCache returns a cache whose entries never expire.
func NewCache(budget int) Cache {
	return NewCacheWithTTL(budget, 0)
}

// NewCacheWithTTL returns a cache whose entries expire ttl after insertion.
// A non-positive ttl disables expiry.
func NewCacheWithTTL(budget int, ttl time.Duration) Cache {
	return &cache{
		log:    logrus.StandardLogger().WithField("type", "cache"),
		order:  list.New(),
		lookup: make(map[string]*list.Element),
		budget: budget,
		ttl:    ttl,
		now:    time.Now,
	}
}

func (c *cache) SetVerbose(verbose bool) {
	c.mu.Lock()
	c.verbose = verbose
	c.mu.Unlock()
}

func (c *cache) GetWeight() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.weight
}

func (c *cache) GetBudget() int {
	return c.budget
}

func (c *cache) Insert(key string, value interface{}, weight int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if element, found := c.lookup[key]; found {
		if !c.isExpired(element.Value.(*entry)) {
			return ErrKeyExists
		}
		c.remove(element)
	}

	e := &entry{
		key:    key,
		value:  value,
		weight: weight,
	}
	if c.ttl > 0 {
		e.expiresAt = c.now().Add(c.ttl)
	}

	c.lookup[key] = c.order.PushFront(e)
	c.weight += weight

	for c.weight > c.budget && c.order.Len() > 0 {
		evicted := c.order.Back()
		c.remove(evicted)

		if c.verbose {
			c.log.WithFields(logrus.Fields{
				"key":          evicted.Value.(*entry).key,
				"weight":       evicted.Value.(*entry).weight,
				"spare_weight": c.budget - c.weight,
			}).Debug("evicted cache entry")
		}
	}

	return nil
}

func (c *cache) Retrieve(key string) (interface{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	element, found := c.lookup[key]
	if !found {
		return nil, false
	}

	e := element.Value.(*entry)
	if c.isExpired(e) {
		c.remove(element)
		return nil, false
	}

	c.order.MoveToFront(element)
	return e.value, true
}

func (c *cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.order.Init()
	c.lookup = make(map[string]*list.Element)
	c.weight = 0
}

func (c *cache) isExpired(e *entry) bool {
	return !e.expiresAt.IsZero() && !c.now().Before(e.expiresAt)
}

func (c *cache) remove(element *list.Element) {
	e := c.order.Remove(element).(*entry)
	delete(c.lookup, e.key)
	c.weight -= e.weight
}
