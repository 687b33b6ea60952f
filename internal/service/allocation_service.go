// internal/service/allocation_service.go
package service

import (
	"context"
	"fmt"
	"sort"

	"github.com/oplift/buyplan/internal/cache"
	"github.com/oplift/buyplan/internal/domain"
	"github.com/oplift/buyplan/internal/engine"
	"github.com/oplift/buyplan/internal/pipeline"
	"github.com/oplift/buyplan/pkg/logger"
	"golang.org/x/sync/errgroup"
)

// scenarioConcurrency bounds how many budgets run at once in a batch.
const scenarioConcurrency = 4

// BudgetScenario is one allocation result of a scenario batch.
type BudgetScenario struct {
	Budget float64                  `json:"budget"`
	Result *domain.AllocationResult `json:"result"`
}

// AllocationService fronts the engine and the staged pipeline with result
// caching. The engine itself is pure; the service owns all I/O.
type AllocationService struct {
	engine   *engine.Engine
	pipeline *pipeline.Pipeline
	cache    cache.ResultCache
}

// NewAllocationService wires the engine, pipeline and cache together.
func NewAllocationService(cfg engine.Config, resultCache cache.ResultCache) *AllocationService {
	if resultCache == nil {
		resultCache = cache.NewNoopResultCache()
	}
	return &AllocationService{
		engine:   engine.New(cfg),
		pipeline: pipeline.New(cfg),
		cache:    resultCache,
	}
}

// Allocate runs the monolithic path, memoizing results per request. Cache
// failures are logged and ignored: the engine answer always wins.
func (s *AllocationService) Allocate(ctx context.Context, req domain.AllocationRequest) (*domain.AllocationResult, error) {
	if cached, found, err := s.cache.Get(ctx, req); err != nil {
		logger.Log.Warn().Err(err).Msg("allocation cache read failed")
	} else if found {
		logger.Log.Debug().Msg("allocation served from cache")
		return cached, nil
	}

	result, err := s.engine.Allocate(req)
	if err != nil {
		return nil, err
	}

	if err := s.cache.Set(ctx, req, result); err != nil {
		logger.Log.Warn().Err(err).Msg("allocation cache write failed")
	}
	return result, nil
}

// InvalidateCache drops every memoized allocation result. Called after
// master data changes so stale quotes are not served against new tariffs.
func (s *AllocationService) InvalidateCache(ctx context.Context) error {
	return s.cache.InvalidateAll(ctx)
}

// RunStage executes one pipeline stage. State is threaded by the caller and
// never cached: the whole point of the staged path is auditability.
func (s *AllocationService) RunStage(ctx context.Context, state *pipeline.State, inputs pipeline.Inputs, data pipeline.Data, stage int) (*pipeline.State, error) {
	return s.pipeline.Run(state, inputs, data, stage)
}

// AllocateScenarios runs the same request under several budgets
// concurrently. Each run is independent (the engine keeps no shared state),
// so a bounded errgroup is all the coordination needed.
func (s *AllocationService) AllocateScenarios(ctx context.Context, req domain.AllocationRequest, budgets []float64) ([]BudgetScenario, error) {
	if len(budgets) == 0 {
		return nil, engine.NewInputError("no scenario budgets supplied")
	}

	scenarios := make([]BudgetScenario, len(budgets))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(scenarioConcurrency)

	for i, budget := range budgets {
		g.Go(func() error {
			scenarioReq := req
			scenarioReq.Budget = budget

			result, err := s.Allocate(gctx, scenarioReq)
			if err != nil {
				return fmt.Errorf("scenario budget %.2f: %w", budget, err)
			}
			scenarios[i] = BudgetScenario{Budget: budget, Result: result}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(scenarios, func(i, j int) bool { return scenarios[i].Budget < scenarios[j].Budget })
	return scenarios, nil
}
