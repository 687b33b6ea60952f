package pipeline

import (
	"errors"
	"fmt"
	"time"

	"github.com/oplift/buyplan/internal/engine"
	"github.com/oplift/buyplan/pkg/logger"
)

// StageDependencyError reports a stage invoked without its prerequisite
// stage's output present. It is fatal and stage-named; the pipeline has no
// retry semantics.
type StageDependencyError struct {
	Stage    int
	Requires int
}

func (e *StageDependencyError) Error() string {
	return fmt.Sprintf("stage %d (%s) requires stage %d (%s) output",
		e.Stage, StageName(e.Stage), e.Requires, StageName(e.Requires))
}

// IsStageDependencyError reports whether err is a StageDependencyError
// anywhere in its chain.
func IsStageDependencyError(err error) bool {
	var sde *StageDependencyError
	return errors.As(err, &sde)
}

// Pipeline executes single stages over an explicit state value. It holds
// only policy; all data flows through State.
type Pipeline struct {
	cfg engine.Config
}

// New builds a pipeline with the given policy.
func New(cfg engine.Config) *Pipeline {
	return &Pipeline{cfg: cfg}
}

// Run executes exactly the requested stage. When no prior state is supplied
// the load stage runs implicitly first. Stages never cascade beyond that:
// the caller drives the pipeline stage by stage and forwards the returned
// state itself. The input state is never mutated.
//
// Re-running the load stage on an advanced state starts a fresh pass: the
// returned state is rebuilt from the stored inputs and data, without the
// later stage outputs, since those describe the previous load. The caller's
// original state keeps its full audit trail.
func (p *Pipeline) Run(state *State, inputs Inputs, data Data, stage int) (*State, error) {
	if stage < StageLoad || stage > StageFinalize {
		return nil, engine.NewInputError(fmt.Sprintf("unknown stage %d", stage))
	}
	if inputs.Budget <= 0 && state == nil {
		return nil, engine.NewInputError("budget must be positive")
	}

	now := time.Now().UTC()

	if state == nil {
		state = p.load(inputs, data, now)
		if stage == StageLoad {
			return state, nil
		}
	} else {
		copied := *state
		state = &copied
	}

	if state.Inputs.Budget <= 0 {
		return nil, engine.NewInputError(fmt.Sprintf("stage %d (%s): budget must be positive", stage, StageName(stage)))
	}

	var err error
	switch stage {
	case StageLoad:
		state = p.load(state.Inputs, state.Data, state.Meta.CreatedAt)
	case StageMOQBlocks:
		err = p.runMOQBlocks(state)
	case StageEstimatedASF:
		err = p.runEstimatedASF(state)
	case StageRankCut:
		err = p.runRankCut(state)
	case StageExactASF:
		err = p.runExactASF(state)
	case StageReallocation:
		err = p.runReallocation(state)
	case StageSubstitution:
		err = p.runSubstitution(state)
	case StageFinalize:
		err = p.runFinalize(state)
	}
	if err != nil {
		return nil, err
	}

	state.Meta.Stage = stage
	state.Meta.StageName = StageName(stage)
	state.Meta.UpdatedAt = now

	logger.Log.Debug().
		Int("stage", stage).
		Str("name", StageName(stage)).
		Msg("pipeline stage complete")

	return state, nil
}

// requireStage returns a dependency error unless the prerequisite slot of the
// requested stage is present and non-empty.
func requireStage(stage, requires int, present bool) error {
	if !present {
		return &StageDependencyError{Stage: stage, Requires: requires}
	}
	return nil
}
