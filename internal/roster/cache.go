// Package roster caches chat entities (users, rooms, conversations) keyed by
// one or more lookup properties, with a staleness policy per entry.
//
// Every entity has a primary key property and a set of lookup properties.
// Map stores the entity under its primary key and installs one index route
// per lookup property, (type, property, value) → key, replacing any routes a
// previous Map of the same entity installed. Unmap follows a route back to
// the entry.
//
// Staleness policies:
//
//   - NeverExpires: entries are always fresh.
//   - ServeStale: expired entries are still returned, nothing else happens.
//   - ServeStaleRefresh: expired entries are returned immediately and the
//     refresh callback registered for the entity type is invoked, once per
//     stale read, so a fresher copy can be mapped later. Readers never wait.
package roster

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// ErrNotFound is returned when no entry is routed for a lookup.
var ErrNotFound = errors.New("roster: entity not found")

// ErrUnmappable is returned by Map when the primary key value is empty.
var ErrUnmappable = errors.New("roster: entity has no key value")

// Policy is a staleness policy.
type Policy int

const (
	NeverExpires Policy = iota
	ServeStale
	ServeStaleRefresh
)

func (p Policy) String() string {
	switch p {
	case NeverExpires:
		return "never_expires"
	case ServeStale:
		return "serve_stale"
	case ServeStaleRefresh:
		return "serve_stale_refresh"
	default:
		return fmt.Sprintf("policy(%d)", int(p))
	}
}

// Entity is anything the roster can cache.
type Entity interface {
	// MapType is the entity type tag, e.g. "User".
	MapType() string
	// MapKey names the primary key property.
	MapKey() string
	// MapProperties lists the lookup properties (the key may be included).
	MapProperties() []string
	// MapValue returns the current value of a property.
	MapValue(prop string) string
	// CachePolicy returns the staleness policy and time to live (0 = none).
	CachePolicy() (Policy, time.Duration)
}

// RefreshFunc receives a stale entity. It must not block.
type RefreshFunc func(Entity)

type route struct {
	typ, prop, value string
}

type entry struct {
	policy  Policy
	expires time.Time
	entity  Entity
	routes  []route
}

// Cache is the generic entity cache. It is safe for concurrent use.
type Cache struct {
	mu      sync.Mutex
	entries map[string]*entry
	index   map[route]string
	refresh map[string]RefreshFunc
	now     func() time.Time
	log     zerolog.Logger
}

// Option configures a Cache.
type Option func(*Cache)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		if now != nil {
			c.now = now
		}
	}
}

// WithLogger sets the cache logger.
func WithLogger(l zerolog.Logger) Option { return func(c *Cache) { c.log = l } }

// NewCache returns an empty cache.
func NewCache(opts ...Option) *Cache {
	c := &Cache{
		entries: make(map[string]*entry),
		index:   make(map[route]string),
		refresh: make(map[string]RefreshFunc),
		now:     time.Now,
		log:     zerolog.Nop(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func primaryKey(e Entity) string {
	return e.MapType() + "::" + e.MapKey() + "(" + e.MapValue(e.MapKey()) + ")"
}

// Map stores or replaces e and rebuilds its index routes.
func (c *Cache) Map(e Entity) error {
	if e == nil || e.MapValue(e.MapKey()) == "" {
		return ErrUnmappable
	}
	key := primaryKey(e)
	policy, ttl := e.CachePolicy()

	c.mu.Lock()
	defer c.mu.Unlock()

	if old, ok := c.entries[key]; ok {
		for _, r := range old.routes {
			if c.index[r] == key {
				delete(c.index, r)
			}
		}
	}

	ent := &entry{policy: policy, entity: e}
	if policy != NeverExpires && ttl > 0 {
		ent.expires = c.now().Add(ttl)
	}
	props := e.MapProperties()
	seen := make(map[string]bool, len(props)+1)
	for _, p := range append([]string{e.MapKey()}, props...) {
		if seen[p] {
			continue
		}
		seen[p] = true
		v := e.MapValue(p)
		if v == "" {
			continue
		}
		r := route{typ: e.MapType(), prop: p, value: v}
		c.index[r] = key
		ent.routes = append(ent.routes, r)
	}
	c.entries[key] = ent
	return nil
}

// Unmap returns the entity routed for (typ, prop, value). Expired entries
// are still returned; see the package documentation for refresh behavior.
func (c *Cache) Unmap(typ, prop, value string) (Entity, error) {
	c.mu.Lock()
	key, ok := c.index[route{typ: typ, prop: prop, value: value}]
	if !ok {
		c.mu.Unlock()
		lookups.WithLabelValues(typ, "miss").Inc()
		return nil, fmt.Errorf("%w: %s::%s(%s)", ErrNotFound, typ, prop, value)
	}
	ent, ok := c.entries[key]
	if !ok {
		c.mu.Unlock()
		lookups.WithLabelValues(typ, "miss").Inc()
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	stale := !ent.expires.IsZero() && c.now().After(ent.expires)
	var fn RefreshFunc
	if stale && ent.policy == ServeStaleRefresh {
		fn = c.refresh[typ]
	}
	e := ent.entity
	c.mu.Unlock()

	if !stale {
		lookups.WithLabelValues(typ, "hit").Inc()
		return e, nil
	}
	lookups.WithLabelValues(typ, "stale").Inc()
	if fn != nil {
		c.log.Debug().Str("type", typ).Str("key", key).Msg("serving stale entity, refresh requested")
		fn(e)
	}
	return e, nil
}

// Forget removes e and all of its routes.
func (c *Cache) Forget(e Entity) {
	if e == nil {
		return
	}
	key := primaryKey(e)
	c.mu.Lock()
	defer c.mu.Unlock()
	ent, ok := c.entries[key]
	if !ok {
		return
	}
	for _, r := range ent.routes {
		if c.index[r] == key {
			delete(c.index, r)
		}
	}
	delete(c.entries, key)
}

// Purge empties the cache. Refresh callbacks stay registered.
func (c *Cache) Purge() {
	c.mu.Lock()
	c.entries = make(map[string]*entry)
	c.index = make(map[route]string)
	c.mu.Unlock()
}

// OnRefresh registers fn for stale reads of typ, replacing any previous one.
func (c *Cache) OnRefresh(typ string, fn RefreshFunc) {
	c.mu.Lock()
	c.refresh[typ] = fn
	c.mu.Unlock()
}

// Len returns the number of cached entities.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// All returns every cached entity of typ, in no particular order.
func (c *Cache) All(typ string) []Entity {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []Entity
	for _, ent := range c.entries {
		if ent.entity.MapType() == typ {
			out = append(out, ent.entity)
		}
	}
	return out
}
