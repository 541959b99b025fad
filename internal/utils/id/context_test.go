package id

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContextRoundTrip(t *testing.T) {
	ctx := WithRunID(context.Background(), "run-1")
	ctx = WithLogID(ctx, "log-1")
	ctx = WithTaskID(ctx, "risk_classification")

	ids := IDsFromContext(ctx)
	assert.Equal(t, "run-1", ids.RunID)
	assert.Equal(t, "log-1", ids.LogID)
	assert.Equal(t, "risk_classification", ids.TaskID)
}

func TestEmptyValuesAreNotStored(t *testing.T) {
	ctx := WithRunID(context.Background(), "")
	assert.Empty(t, RunIDFromContext(ctx))
}

func TestGeneratedIDsArePrefixedAndUnique(t *testing.T) {
	a, b := NewRunID(), NewRunID()
	assert.True(t, strings.HasPrefix(a, "run-"))
	assert.NotEqual(t, a, b)
	assert.True(t, strings.HasPrefix(NewMessageID(), "msg-"))
}
