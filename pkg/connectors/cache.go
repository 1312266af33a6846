// Package connectors owns the lazily-initialized handles to the gateway's
// external backends. Construction is deferred to first use and failure is
// isolated: the process boots and serves health checks even when every
// backend is unreachable.
package connectors

import (
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Kind identifies one external backend.
type Kind string

const (
	KindRecordStore Kind = "record_store"
	KindMerchantAPI Kind = "merchant_api"
	KindAssistant   Kind = "assistant"
)

// State is the lifecycle of one connector handle.
type State string

const (
	StateUninitialized State = "uninitialized"
	StateReady         State = "ready"
	StateFailed        State = "failed"
)

// Constructor builds the underlying client for a kind. Returning an error
// marks the handle FAILED; it is not retried until Reset is called.
type Constructor func() (any, error)

type handle struct {
	state  State
	client any
}

// Cache memoizes connector handles per kind. Many handlers read it
// concurrently; first access for a kind runs its constructor exactly once
// via singleflight so racing callers never fire duplicate auth calls.
type Cache struct {
	constructors map[Kind]Constructor
	log          *slog.Logger

	mu      sync.RWMutex
	handles map[Kind]*handle
	group   singleflight.Group
}

// NewCache creates a cache with one injectable constructor per kind.
func NewCache(constructors map[Kind]Constructor, log *slog.Logger) *Cache {
	return &Cache{
		constructors: constructors,
		log:          log,
		handles:      make(map[Kind]*handle, len(constructors)),
	}
}

// Get returns the client for kind, constructing it on first access. The
// second return is false when the connector is unavailable: unknown kind,
// missing configuration, or a failed construction. Get never panics and
// never returns an error; a FAILED handle stays failed until Reset.
func (c *Cache) Get(kind Kind) (any, bool) {
	c.mu.RLock()
	h, ok := c.handles[kind]
	c.mu.RUnlock()
	if ok {
		return h.client, h.state == StateReady
	}

	v, _, _ := c.group.Do(string(kind), func() (any, error) {
		// Re-check under the flight: a previous winner may have stored it.
		c.mu.RLock()
		h, ok := c.handles[kind]
		c.mu.RUnlock()
		if ok {
			return h, nil
		}

		h = c.construct(kind)
		c.mu.Lock()
		c.handles[kind] = h
		c.mu.Unlock()
		return h, nil
	})

	h = v.(*handle)
	return h.client, h.state == StateReady
}

func (c *Cache) construct(kind Kind) *handle {
	ctor, ok := c.constructors[kind]
	if !ok {
		c.log.Warn("no constructor for connector kind", "kind", kind)
		return &handle{state: StateFailed}
	}

	client, err := safeConstruct(ctor)
	if err != nil {
		c.log.Warn("connector initialization failed", "kind", kind, "error", err)
		return &handle{state: StateFailed}
	}
	c.log.Info("connector initialized", "kind", kind)
	return &handle{state: StateReady, client: client}
}

// safeConstruct isolates constructor panics as errors.
func safeConstruct(ctor Constructor) (client any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("constructor panic: %v", r)
		}
	}()
	return ctor()
}

// StateOf reports the current state without triggering initialization.
// Health and diagnostics use this; it must stay cheap and side-effect free.
func (c *Cache) StateOf(kind Kind) State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if h, ok := c.handles[kind]; ok {
		return h.state
	}
	return StateUninitialized
}

// Kinds returns the configured kinds in stable order.
func (c *Cache) Kinds() []Kind {
	all := []Kind{KindRecordStore, KindMerchantAPI, KindAssistant}
	kinds := make([]Kind, 0, len(c.constructors))
	for _, k := range all {
		if _, ok := c.constructors[k]; ok {
			kinds = append(kinds, k)
		}
	}
	return kinds
}

// Reset discards the handle for kind so the next Get re-runs the
// constructor. This is the only way out of FAILED.
func (c *Cache) Reset(kind Kind) {
	c.mu.Lock()
	delete(c.handles, kind)
	c.mu.Unlock()
}
