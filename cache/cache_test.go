package cache

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/techthiyanes/langtest/sample"
)

func TestMemoryCache(t *testing.T) {
	ctx := context.Background()
	c := NewMemory()
	key := Key("gpt-4o", sample.TaskQuestionAnswering, "Who wrote Hamlet?")

	_, ok, err := c.Get(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, key, sample.TextOutput("Shakespeare")))

	out, ok, err := c.Get(ctx, key)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Shakespeare", out.Text)
	assert.Equal(t, 1, c.Len())
}

func TestKey(t *testing.T) {
	a := Key("m1", sample.TaskNER, "John lives in Berlin")
	b := Key("m1", sample.TaskNER, "John lives in Berlin")
	assert.Equal(t, a, b)

	// Different model, task or input each produce a distinct key.
	assert.NotEqual(t, a, Key("m2", sample.TaskNER, "John lives in Berlin"))
	assert.NotEqual(t, a, Key("m1", sample.TaskTextGeneration, "John lives in Berlin"))
	assert.NotEqual(t, a, Key("m1", sample.TaskNER, "John lives in Paris"))

	// Raw input text never leaks into the key.
	assert.NotContains(t, a, "John")
}
