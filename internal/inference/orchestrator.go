package inference

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ai-audit/backend/internal/models"
	"github.com/ai-audit/backend/pkg/logger"
)

// ErrNoProducer is returned before any snapshot is processed when the
// orchestrator has no usable producer. A configuration error, not a
// pipeline error.
var ErrNoProducer = errors.New("no inference producer configured")

const defaultConcurrency = 8

// Orchestrator drives producers over a batch of snapshots, probing
// every inference type per snapshot, and collects the surviving
// records. Per-(snapshot, type) failures never abort the batch.
type Orchestrator struct {
	producers   map[string]Producer
	defaultID   string
	types       []models.InferenceType
	concurrency int
}

type OrchestratorOption func(*Orchestrator)

// WithInferenceTypes narrows the set of attempted types, mainly for tests.
func WithInferenceTypes(types []models.InferenceType) OrchestratorOption {
	return func(o *Orchestrator) { o.types = types }
}

// WithConcurrency bounds the number of in-flight producer calls.
func WithConcurrency(n int) OrchestratorOption {
	return func(o *Orchestrator) {
		if n > 0 {
			o.concurrency = n
		}
	}
}

func NewOrchestrator(producers []Producer, defaultID string, opts ...OrchestratorOption) *Orchestrator {
	registry := make(map[string]Producer, len(producers))
	for _, p := range producers {
		registry[p.ID()] = p
	}

	o := &Orchestrator{
		producers:   registry,
		defaultID:   defaultID,
		types:       models.AllInferenceTypes,
		concurrency: defaultConcurrency,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// AvailableProducers lists the registered producer IDs.
func (o *Orchestrator) AvailableProducers() []string {
	ids := make([]string, 0, len(o.producers))
	for id := range o.producers {
		ids = append(ids, id)
	}
	return ids
}

// resolveProducer picks the default producer, falling back to any
// registered one. Resolution happens once per batch, not per call.
func (o *Orchestrator) resolveProducer() (Producer, error) {
	if p, ok := o.producers[o.defaultID]; ok {
		return p, nil
	}
	for _, p := range o.producers {
		return p, nil
	}
	return nil, ErrNoProducer
}

// AnalyzeProfiles produces the complete inference set for a batch of
// snapshots. Output is snapshot-major, type-minor, deduplicated on
// (type, value) with the higher-confidence record winning. Callers must
// not rely on ordering for correctness; downstream aggregation is
// order-independent.
func (o *Orchestrator) AnalyzeProfiles(ctx context.Context, snapshots []models.ProfileSnapshot) ([]models.Inference, error) {
	producer, err := o.resolveProducer()
	if err != nil {
		return nil, err
	}

	// Slot per (snapshot, type) pair so concurrent completion order
	// cannot reorder the result.
	slots := make([]*models.Inference, len(snapshots)*len(o.types))

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(o.concurrency)

	for snapIdx, snapshot := range snapshots {
		for typeIdx, typ := range o.types {
			snapshot, typ := snapshot, typ
			slot := snapIdx*len(o.types) + typeIdx

			group.Go(func() error {
				if err := groupCtx.Err(); err != nil {
					return err
				}

				inf, err := producer.MakeInference(groupCtx, snapshot, typ)
				if err != nil {
					// Isolated per-item failure: log and move on.
					logger.Warn("Inference attempt failed",
						zap.String("platform", string(snapshot.Platform)),
						zap.String("username", snapshot.Username),
						zap.String("type", string(typ)),
						zap.Error(err),
					)
					return nil
				}
				slots[slot] = inf
				return nil
			})
		}
	}

	if err := group.Wait(); err != nil {
		// Only context cancellation propagates out of the group.
		return nil, err
	}

	records := make([]models.Inference, 0, len(slots))
	for _, inf := range slots {
		if inf != nil {
			records = append(records, *inf)
		}
	}

	deduped := dedupeInferences(records)

	logger.Info("Profile batch analyzed",
		zap.Int("snapshots", len(snapshots)),
		zap.Int("raw_inferences", len(records)),
		zap.Int("inferences", len(deduped)),
		zap.String("producer", producer.ID()),
	)

	return deduped, nil
}

// dedupeInferences collapses records that make the same (type, value)
// claim. The higher-confidence record survives; source platforms merge.
func dedupeInferences(records []models.Inference) []models.Inference {
	index := make(map[string]int, len(records))
	out := make([]models.Inference, 0, len(records))

	for _, rec := range records {
		key := string(rec.Type) + "\x00" + strings.ToLower(strings.TrimSpace(rec.Value))
		pos, ok := index[key]
		if !ok {
			index[key] = len(out)
			out = append(out, rec)
			continue
		}

		kept := &out[pos]
		kept.SourcePlatforms = mergePlatforms(kept.SourcePlatforms, rec.SourcePlatforms)
		if rec.Confidence > kept.Confidence {
			merged := kept.SourcePlatforms
			*kept = rec
			kept.SourcePlatforms = merged
		}
	}
	return out
}

func mergePlatforms(a, b []models.Platform) []models.Platform {
	seen := make(map[models.Platform]struct{}, len(a)+len(b))
	out := make([]models.Platform, 0, len(a)+len(b))
	for _, list := range [][]models.Platform{a, b} {
		for _, p := range list {
			if _, ok := seen[p]; ok {
				continue
			}
			seen[p] = struct{}{}
			out = append(out, p)
		}
	}
	return out
}
