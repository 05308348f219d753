package langtest

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorFormatting(t *testing.T) {
	err := &Error{Op: "Harness.Run", Kind: KindInvocation, Err: ErrModelUnavailable}
	assert.Equal(t, "langtest: Harness.Run (invocation): model unavailable", err.Error())

	withCtx := err.WithContext(map[string]any{"test": "uppercase"})
	assert.Contains(t, withCtx.Error(), "uppercase")

	bare := &Error{Op: "Harness.Run", Kind: KindInvocation}
	assert.Equal(t, "langtest: Harness.Run: invocation", bare.Error())
}

func TestErrorUnwrapping(t *testing.T) {
	inner := fmt.Errorf("wrap: %w", ErrTestNotFound)
	err := NewConfigurationError("New", inner)

	assert.ErrorIs(t, err, ErrTestNotFound)

	var e *Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, KindConfiguration, e.Kind)
	assert.Equal(t, "New", e.Op)
}

func TestErrorKindMatching(t *testing.T) {
	err := NewInvocationError("Harness.Run", errors.New("boom"))

	assert.ErrorIs(t, err, &Error{Kind: KindInvocation})
	assert.ErrorIs(t, err, &Error{Kind: KindInvocation, Op: "Harness.Run"})
	assert.NotErrorIs(t, err, &Error{Kind: KindEvaluation})
	assert.NotErrorIs(t, err, &Error{Kind: KindInvocation, Op: "Harness.Evaluate"})
}

func TestErrorWithContextCopies(t *testing.T) {
	base := NewStoreError("Report", errors.New("db down"))
	a := base.WithContext(map[string]any{"run_id": "r1"})
	b := base.WithContext(map[string]any{"run_id": "r2"})

	assert.Nil(t, base.Context)
	assert.Equal(t, "r1", a.Context["run_id"])
	assert.Equal(t, "r2", b.Context["run_id"])
}
