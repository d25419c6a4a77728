package service

import (
	"errors"
	"fmt"

	"github.com/DrishtiShrrrma/political-bias-eval/internal/core/domain/models"
)

var (
	// ErrGeneration marks a unit whose provider call failed or panicked.
	ErrGeneration = errors.New("generation failed")
	// ErrWrite marks a unit whose sample could not be persisted.
	ErrWrite = errors.New("write failed")
)

// Stage names where a unit failed.
const (
	StageGenerate = "generate"
	StageWrite    = "write"
	StagePanic    = "panic"
)

// UnitError carries the unit and stage of a per-unit failure.
type UnitError struct {
	Stage string
	Unit  models.GenerationUnit
	Err   error
}

func (e *UnitError) Error() string {
	return fmt.Sprintf("%s %s/%s/%s #%d: %v",
		e.Stage, e.Unit.Topic, e.Unit.Language, e.Unit.Stance, e.Unit.Index, e.Err)
}

func (e *UnitError) Unwrap() error {
	return e.Err
}

func (e *UnitError) failure() models.UnitFailure {
	return models.UnitFailure{Unit: e.Unit, Stage: e.Stage, Error: e.Err.Error()}
}
