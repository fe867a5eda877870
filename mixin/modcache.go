package mixin

import (
	"os"
	"slices"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// Module is a loaded auxiliary mixin file.
type Module struct {
	Path string
	Body Body
	// Deps lists every file module was built from, including Path itself for
	// formats which could import other files.
	Deps []string

	stamps map[string]stamp
}

// stamp is what we know about a file module was read from. Zero stamp means
// file did not exist.
type stamp struct {
	mod  time.Time
	size int64
}

func stampOf(path string) stamp {
	fi, err := os.Stat(path)
	if err != nil {
		return stamp{}
	}
	return stamp{mod: fi.ModTime(), size: fi.Size()}
}

// fresh reports whether none of the files module was built from changed on
// disk since it was loaded.
func (m *Module) fresh() bool {
	for path, st := range m.stamps {
		if stampOf(path) != st {
			return false
		}
	}
	return true
}

// LoadFunc loads module from resolved path.
type LoadFunc func(path string) (*Module, error)

// ModuleCache keeps loaded modules between processing sessions. It is owned by
// the caller and is safe for concurrent use.
//
// Cached module is returned only while its file and every file it depends on
// are unchanged on disk, otherwise it is read again. Callers which learn
// about changes from elsewhere (file system notifications) drop entries with
// Evict.
type ModuleCache struct {
	cache *gocache.Cache
}

// NewModuleCache returns an empty cache. Entries never expire, they are
// replaced when stale.
func NewModuleCache() *ModuleCache {
	return &ModuleCache{cache: gocache.New(gocache.NoExpiration, 0)}
}

// Get returns cached module for path.
func (c *ModuleCache) Get(path string) (*Module, bool) {
	v, found := c.cache.Get(path)
	if !found {
		return nil, false
	}
	m, ok := v.(*Module)
	return m, ok
}

// Load returns cached module for path when it is still fresh, otherwise loads
// it with load and caches the result. Failed loads are not cached.
func (c *ModuleCache) Load(path string, load LoadFunc) (*Module, error) {
	if m, ok := c.Get(path); ok && m.fresh() {
		return m, nil
	}
	c.cache.Delete(path)

	before := stampOf(path)
	m, err := load(path)
	if err != nil {
		return nil, err
	}
	m.stamps = map[string]stamp{path: before}
	for _, dep := range m.Deps {
		if dep != path {
			m.stamps[dep] = stampOf(dep)
		}
	}
	c.cache.Set(path, m, gocache.NoExpiration)
	return m, nil
}

// Evict drops cached entries for paths together with every module which
// depends on any of them.
func (c *ModuleCache) Evict(paths ...string) {
	for key, item := range c.cache.Items() {
		m, ok := item.Object.(*Module)
		if slices.Contains(paths, key) || ok && slices.ContainsFunc(m.Deps, func(dep string) bool {
			return slices.Contains(paths, dep)
		}) {
			c.cache.Delete(key)
		}
	}
}

// Len returns number of cached modules.
func (c *ModuleCache) Len() int {
	return c.cache.ItemCount()
}
