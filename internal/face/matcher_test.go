package face

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBackend struct {
	cmp Comparison
	err error
}

func (f *fakeBackend) Compare(_ context.Context, _, _ []byte) (Comparison, error) {
	return f.cmp, f.err
}

func TestVerifyMatchWithinTolerance(t *testing.T) {
	v := NewVerifier(&fakeBackend{cmp: Comparison{EmbeddingDistance: 0.15, ProbeFaceCount: 1}}, 0.6, 4)

	res, err := v.Verify(context.Background(), []byte("ref"), []byte("probe"))
	require.NoError(t, err)
	assert.True(t, res.Matched)
	assert.InDelta(t, 85, res.Confidence, 1e-9)
	assert.Equal(t, 0.6, res.Tolerance)
}

func TestVerifyMismatchBeyondTolerance(t *testing.T) {
	v := NewVerifier(&fakeBackend{cmp: Comparison{EmbeddingDistance: 0.75, ProbeFaceCount: 1}}, 0.6, 4)

	res, err := v.Verify(context.Background(), []byte("ref"), []byte("probe"))
	require.NoError(t, err)
	assert.False(t, res.Matched)
	assert.InDelta(t, 25, res.Confidence, 1e-9)
}

func TestVerifyConfidenceClamped(t *testing.T) {
	low := NewVerifier(&fakeBackend{cmp: Comparison{EmbeddingDistance: 1.4, ProbeFaceCount: 1}}, 0.6, 4)
	res, err := low.Verify(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 0.0, res.Confidence)

	high := NewVerifier(&fakeBackend{cmp: Comparison{EmbeddingDistance: -0.2, ProbeFaceCount: 1}}, 0.6, 4)
	res, err = high.Verify(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 100.0, res.Confidence)
}

func TestVerifyNoFaceIsRejection(t *testing.T) {
	v := NewVerifier(&fakeBackend{cmp: Comparison{EmbeddingDistance: 0.1, ProbeFaceCount: 0}}, 0.6, 4)

	_, err := v.Verify(context.Background(), nil, nil)
	assert.ErrorIs(t, err, ErrNoFaceDetected)
}

func TestVerifyMultipleFacesIsRejection(t *testing.T) {
	v := NewVerifier(&fakeBackend{cmp: Comparison{EmbeddingDistance: 0.1, ProbeFaceCount: 3}}, 0.6, 4)

	_, err := v.Verify(context.Background(), nil, nil)
	assert.ErrorIs(t, err, ErrMultipleFacesDetected)
}

func TestVerifyPropagatesBackendError(t *testing.T) {
	backendErr := errors.New("backend exploded")
	v := NewVerifier(&fakeBackend{err: backendErr}, 0.6, 4)

	_, err := v.Verify(context.Background(), nil, nil)
	assert.ErrorIs(t, err, backendErr)
}

func TestDisabledBackend(t *testing.T) {
	v := NewVerifier(NewDisabledBackend(), 0.6, 1)

	_, err := v.Verify(context.Background(), []byte("ref"), []byte("probe"))
	assert.ErrorIs(t, err, ErrBackendDisabled)
}

func TestVerifierDefaultsTolerance(t *testing.T) {
	v := NewVerifier(&fakeBackend{cmp: Comparison{EmbeddingDistance: 0.59, ProbeFaceCount: 1}}, 0, 0)

	res, err := v.Verify(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.True(t, res.Matched)
	assert.Equal(t, DefaultTolerance, res.Tolerance)
}
