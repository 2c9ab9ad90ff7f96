package errors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindAndStatus(t *testing.T) {
	tests := []struct {
		err    error
		kind   string
		status int
	}{
		{New(ErrTimeout, 0, "exceeded 150s"), KindTimeout, http.StatusGatewayTimeout},
		{fmt.Errorf("drafting: %w", ErrGeneration), KindGeneration, http.StatusBadGateway},
		{ErrIncompleteResult, KindIncompleteResult, http.StatusBadGateway},
		{ErrInvalidInput, KindInvalidInput, http.StatusBadRequest},
		{ErrNotInitialized, KindNotInitialized, http.StatusServiceUnavailable},
		{ErrConfig, KindConfig, http.StatusBadRequest},
		{ErrProvider, KindProvider, http.StatusBadGateway},
		{errors.New("disk full"), KindInternal, http.StatusInternalServerError},
		{New(ErrInvalidInput, http.StatusRequestEntityTooLarge, "too big"), KindInvalidInput, http.StatusRequestEntityTooLarge},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.kind, Kind(tt.err), tt.err.Error())
		assert.Equal(t, tt.status, HTTPStatusCode(tt.err), tt.err.Error())
	}
	assert.Equal(t, "", Kind(nil))
}

func TestAtStageKeepsInnermostStage(t *testing.T) {
	err := AtStage("critiquing", New(ErrGeneration, 0, "empty choices"))
	err = AtStage("synthesizing", fmt.Errorf("wrapped: %w", err))

	assert.Equal(t, "critiquing", Stage(err))
	assert.True(t, errors.Is(err, ErrGeneration))
	assert.Nil(t, AtStage("drafting", nil))
	assert.Equal(t, "", Stage(context.Canceled))
}
