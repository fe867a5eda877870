package state

import (
	"time"

	"pmix/mixin"
)

// newLocalEnv creates a new LocalEnv instance with default values
func newLocalEnv() *LocalEnv {
	return &LocalEnv{
		start: time.Now(),
		Cache: mixin.NewModuleCache(),
	}
}
