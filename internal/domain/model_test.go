package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestShortBranch(t *testing.T) {
	assert.Equal(t, "main", ShortBranch("refs/heads/main"))
	assert.Equal(t, "feature/a", ShortBranch("Refs/Heads/feature/a"))
	assert.Equal(t, "refs/tags/v1", ShortBranch("refs/tags/v1"))
	assert.Equal(t, "", ShortBranch(""))
}

func TestStageOf(t *testing.T) {
	err := fmt.Errorf("pipeline 4: %w", StageErr(StageLatestBuild, ErrNotFound))
	assert.Equal(t, StageLatestBuild, StageOf(err))
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.Equal(t, Stage(""), StageOf(errors.New("plain")))
	assert.NoError(t, StageErr(StageDefinition, nil))
}
