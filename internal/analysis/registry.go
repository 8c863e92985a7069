package analysis

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/ai-audit/backend/internal/models"
	"github.com/ai-audit/backend/pkg/logger"
)

// Findings is the free-form result of one extension run. Findings are
// attached to the audit report as extras and never feed the risk score.
type Findings map[string]interface{}

// Extension is a supplemental analyzer that runs over the collected
// snapshots and accepted inferences after the main pipeline.
type Extension interface {
	Name() string
	Analyze(snapshots []models.ProfileSnapshot, inferences []models.Inference) (Findings, error)
}

// Registry holds extensions in registration order.
type Registry struct {
	mu         sync.RWMutex
	extensions []Extension
}

func NewRegistry() *Registry {
	return &Registry{}
}

func (r *Registry) Register(ext Extension) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.extensions {
		if existing.Name() == ext.Name() {
			return fmt.Errorf("extension %q already registered", ext.Name())
		}
	}
	r.extensions = append(r.extensions, ext)
	return nil
}

func (r *Registry) Extensions() []Extension {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Extension, len(r.extensions))
	copy(out, r.extensions)
	return out
}

// RunAll executes every registered extension. A failing extension is
// logged and skipped so one bad analyzer cannot sink the report.
func (r *Registry) RunAll(snapshots []models.ProfileSnapshot, inferences []models.Inference) map[string]Findings {
	results := make(map[string]Findings)

	for _, ext := range r.Extensions() {
		findings, err := ext.Analyze(snapshots, inferences)
		if err != nil {
			logger.Warn("Analysis extension failed",
				zap.String("extension", ext.Name()),
				zap.Error(err),
			)
			continue
		}
		if len(findings) > 0 {
			results[ext.Name()] = findings
		}
	}

	return results
}

// DefaultRegistry returns a registry with the built-in extensions.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(NewHealthSignalExtension())
	r.Register(NewFinancialSignalExtension())
	r.Register(NewUsernameReuseExtension())
	return r
}
