package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrNotYAMLPipeline = errors.New("pipeline does not use a YAML configuration file")
)

// Stage names the step of a pipeline's assembly that failed.
type Stage string

const (
	StageProject        Stage = "project"
	StageDefinitions    Stage = "definitions"
	StageDefinition     Stage = "definition"
	StageLatestBuild    Stage = "latest_build"
	StageVariableGroups Stage = "variable_groups"
	StageConfigText     Stage = "config_text"
	StageCancelled      Stage = "cancelled"
)

type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string { return fmt.Sprintf("%s: %v", e.Stage, e.Err) }

func (e *StageError) Unwrap() error { return e.Err }

func StageErr(stage Stage, err error) error {
	if err == nil {
		return nil
	}
	return &StageError{Stage: stage, Err: err}
}

// StageOf returns the stage attached to err, or "" when there is none.
func StageOf(err error) Stage {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage
	}
	return ""
}
