package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWrappedKindSurvivesErrorsIs(t *testing.T) {
	err := fmt.Errorf("load workspace.parquet: %w", ErrFileNotExists)

	assert.True(t, errors.Is(err, ErrFileNotExists))
	assert.False(t, errors.Is(err, ErrCorruptedFile))
}

func TestTaskStopIsDistinctFromOtherKinds(t *testing.T) {
	wrapped := fmt.Errorf("preprocess stage: %w", ErrTaskStop)

	assert.True(t, errors.Is(wrapped, ErrTaskStop))
	assert.False(t, errors.Is(wrapped, ErrUnsyncedVectors))
}
