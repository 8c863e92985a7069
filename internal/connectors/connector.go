package connectors

import (
	"context"
	"fmt"
	"sync"

	"github.com/ai-audit/backend/internal/models"
)

// Connector fetches a public profile snapshot for one platform.
type Connector interface {
	Platform() models.Platform
	FetchProfile(ctx context.Context, username string) (*models.ProfileSnapshot, error)
	Configured() bool
}

// Registry maps platforms to their connectors.
type Registry struct {
	mu         sync.RWMutex
	connectors map[models.Platform]Connector
}

func NewRegistry() *Registry {
	return &Registry{
		connectors: make(map[models.Platform]Connector),
	}
}

func (r *Registry) Register(c Connector) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.connectors[c.Platform()] = c
}

func (r *Registry) Lookup(platform models.Platform) (Connector, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.connectors[platform]
	if !ok {
		return nil, fmt.Errorf("no connector registered for platform %q", platform)
	}
	return c, nil
}

// ConfiguredPlatforms lists platforms whose connector is ready to use.
func (r *Registry) ConfiguredPlatforms() []models.Platform {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []models.Platform
	for _, p := range models.AllPlatforms {
		if c, ok := r.connectors[p]; ok && c.Configured() {
			out = append(out, p)
		}
	}
	return out
}
