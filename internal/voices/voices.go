// Package voices caches the voice catalog of the active speech backend.
package voices

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dooshek/readaloud/internal/apperr"
	"github.com/dooshek/readaloud/internal/logger"
)

// Descriptor describes one voice. Rates are in the voice's native units; a
// zero MinRate and MaxRate means the backend accepts any rate.
type Descriptor struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Language    string  `json:"language"`
	Gender      string  `json:"gender,omitempty"`
	MinRate     float64 `json:"min_rate"`
	MaxRate     float64 `json:"max_rate"`
	DefaultRate float64 `json:"default_rate"`
	Default     bool    `json:"default,omitempty"`
}

// ClampRate maps rate into the voice's range. Zero selects DefaultRate.
// clamped is true when rate had to be moved.
func (d Descriptor) ClampRate(rate float64) (value float64, clamped bool) {
	if rate == 0 {
		return d.DefaultRate, false
	}
	if d.MinRate == 0 && d.MaxRate == 0 {
		return rate, false
	}
	if rate < d.MinRate {
		return d.MinRate, true
	}
	if d.MaxRate > 0 && rate > d.MaxRate {
		return d.MaxRate, true
	}
	return rate, false
}

// Source enumerates voices, normally a tts.Backend
type Source interface {
	Voices(ctx context.Context) ([]Descriptor, error)
}

// Catalog is an immutable snapshot of the voices
type Catalog struct {
	list     []Descriptor
	byID     map[string]Descriptor
	LoadedAt time.Time
}

func newCatalog(list []Descriptor) *Catalog {
	c := &Catalog{
		list:     append([]Descriptor(nil), list...),
		byID:     make(map[string]Descriptor, len(list)),
		LoadedAt: time.Now(),
	}
	for _, d := range c.list {
		c.byID[d.ID] = d
	}
	return c
}

// List returns a copy of the voices in backend order
func (c *Catalog) List() []Descriptor {
	return append([]Descriptor(nil), c.list...)
}

// Default returns the voice marked default. Without one it returns a
// Descriptor with an empty ID, meaning "whatever the engine uses", carrying
// the rate range of the first voice.
func (c *Catalog) Default() Descriptor {
	for _, d := range c.list {
		if d.Default {
			return d
		}
	}
	if len(c.list) > 0 {
		first := c.list[0]
		return Descriptor{
			Name:        "default",
			MinRate:     first.MinRate,
			MaxRate:     first.MaxRate,
			DefaultRate: first.DefaultRate,
		}
	}
	return Descriptor{}
}

// Lookup finds a voice by id. The empty id resolves to Default.
func (c *Catalog) Lookup(id string) (Descriptor, error) {
	if id == "" {
		return c.Default(), nil
	}
	if d, ok := c.byID[id]; ok {
		return d, nil
	}
	return Descriptor{}, fmt.Errorf("%w: %q", apperr.ErrUnknownVoice, id)
}

// Cache holds the process-wide catalog. Readers never block each other; the
// catalog is loaded on first use and replaced only by Refresh.
type Cache struct {
	src     Source
	current atomic.Pointer[Catalog]
	loadMu  sync.Mutex
}

func NewCache(src Source) *Cache {
	return &Cache{src: src}
}

// Get returns the catalog, loading it on first use
func (c *Cache) Get(ctx context.Context) (*Catalog, error) {
	if cat := c.current.Load(); cat != nil {
		return cat, nil
	}

	c.loadMu.Lock()
	defer c.loadMu.Unlock()
	if cat := c.current.Load(); cat != nil {
		return cat, nil
	}
	return c.load(ctx)
}

// List is a shorthand for Get followed by Catalog.List
func (c *Cache) List(ctx context.Context) ([]Descriptor, error) {
	cat, err := c.Get(ctx)
	if err != nil {
		return nil, err
	}
	return cat.List(), nil
}

// Lookup is a shorthand for Get followed by Catalog.Lookup
func (c *Cache) Lookup(ctx context.Context, id string) (Descriptor, error) {
	cat, err := c.Get(ctx)
	if err != nil {
		return Descriptor{}, err
	}
	return cat.Lookup(id)
}

// Invalidate drops the catalog; the next Get reloads it
func (c *Cache) Invalidate() {
	c.current.Store(nil)
}

// Refresh reloads the catalog now. On failure the previous catalog stays.
func (c *Cache) Refresh(ctx context.Context) (*Catalog, error) {
	c.loadMu.Lock()
	defer c.loadMu.Unlock()
	return c.load(ctx)
}

func (c *Cache) load(ctx context.Context) (*Catalog, error) {
	list, err := c.src.Voices(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate voices: %w", err)
	}
	cat := newCatalog(list)
	c.current.Store(cat)
	logger.Debugf("voices: loaded %d voices", len(list))
	return cat, nil
}
