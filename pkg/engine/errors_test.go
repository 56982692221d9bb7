package engine

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInstallErrorWrapping(t *testing.T) {
	cause := errors.New("disk full")
	err := NewError(KindInsufficientResources, "cannot scaffold", cause).
		WithStep("create-directories").
		WithDetail("free_gb", 0.2)

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "insufficient_resources")
	assert.Contains(t, err.Error(), "create-directories")
	assert.Equal(t, 0.2, err.Details["free_gb"])
}

func TestKindOf(t *testing.T) {
	err := NewError(KindPermissionDenied, "no write access", nil)
	wrapped := fmt.Errorf("stage failed: %w", err)

	assert.Equal(t, KindPermissionDenied, KindOf(wrapped))
	assert.Equal(t, KindInternal, KindOf(errors.New("plain")))
	assert.Equal(t, KindInternal, KindOf(nil))
}

func TestErrorSeverityPredicates(t *testing.T) {
	assert.True(t, IsWarning(NewError(KindNetworkUnreachable, "offline", nil)))
	assert.False(t, IsWarning(NewError(KindPermissionDenied, "denied", nil)))

	assert.True(t, IsCancelled(NewError(KindUserCancelled, "interrupt", nil)))
	assert.False(t, IsCancelled(NewError(KindInternal, "oops", nil)))

	assert.False(t, IsFatal(nil))
	assert.False(t, IsFatal(NewError(KindNetworkUnreachable, "offline", nil)))
	assert.True(t, IsFatal(NewError(KindSystemIncompatible, "bad os", nil)))
}

func TestClassifyPreservesExisting(t *testing.T) {
	original := NewError(KindDependencyInstallFailed, "docker missing", nil)
	classified := Classify(fmt.Errorf("wrap: %w", original), "resolve-dependencies")

	require.NotNil(t, classified)
	assert.Equal(t, KindDependencyInstallFailed, classified.Kind)
	assert.Equal(t, "resolve-dependencies", classified.Step)

	plain := Classify(errors.New("surprise"), "some-step")
	assert.Equal(t, KindInternal, plain.Kind)
	assert.Equal(t, "some-step", plain.Step)

	assert.Nil(t, Classify(nil, "x"))
}
