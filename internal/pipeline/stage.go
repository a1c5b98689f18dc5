package pipeline

import "fmt"

// Stage names one step of an analysis run.
type Stage string

const (
	StageWorkspace  Stage = "workspace"
	StageExtract    Stage = "extract"
	StageClip       Stage = "clip"
	StageIndex      Stage = "index"
	StageDifference Stage = "difference"
	StageFilter     Stage = "filter"
	StageReclassify Stage = "reclassify"
	StageVectorize  Stage = "vectorize"
	StageComposites Stage = "composites"
	StageProjection Stage = "projection"
	StageCleanup    Stage = "cleanup"
)

// RunError reports the stage at which a run failed. The wrapped error carries
// one of the domain error kinds.
type RunError struct {
	Stage Stage
	Err   error
}

func (e *RunError) Error() string {
	return fmt.Sprintf("%s stage: %v", e.Stage, e.Err)
}

func (e *RunError) Unwrap() error {
	return e.Err
}
