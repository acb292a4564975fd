package face

import (
	"context"
	"errors"

	"golang.org/x/sync/semaphore"
)

var (
	// ErrNoFaceDetected means the probe image contained no detectable face.
	// Distinct from a low-confidence match.
	ErrNoFaceDetected = errors.New("no face detected in probe image")
	// ErrMultipleFacesDetected means more than one face was found in the probe.
	ErrMultipleFacesDetected = errors.New("multiple faces detected in probe image")
	// ErrBackendDisabled means biometric matching is switched off by config.
	ErrBackendDisabled = errors.New("face matching backend is disabled")
)

// DefaultTolerance is the embedding-distance threshold below which two faces
// are considered the same person.
const DefaultTolerance = 0.6

// Comparison is the raw output of a biometric backend.
type Comparison struct {
	EmbeddingDistance float64 `json:"embedding_distance"`
	ProbeFaceCount    int     `json:"probe_face_count"`
}

// Backend compares a stored reference image against a live probe capture.
// Selection between implementations happens at construction time via
// configuration, never through runtime probing.
type Backend interface {
	Compare(ctx context.Context, reference, probe []byte) (Comparison, error)
}

// MatchResult is the adapter's decision for one comparison.
type MatchResult struct {
	Matched           bool    `json:"matched"`
	Confidence        float64 `json:"confidence"`
	EmbeddingDistance float64 `json:"embedding_distance"`
	Tolerance         float64 `json:"tolerance"`
}

// Verifier wraps a Backend with the precondition and scoring contract:
// exactly one face in the probe, confidence derived from embedding distance,
// and a cap on concurrent comparisons so slow matches cannot stall the
// request pool.
type Verifier struct {
	backend   Backend
	tolerance float64
	sem       *semaphore.Weighted
}

func NewVerifier(backend Backend, tolerance float64, maxConcurrent int64) *Verifier {
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	return &Verifier{
		backend:   backend,
		tolerance: tolerance,
		sem:       semaphore.NewWeighted(maxConcurrent),
	}
}

// Verify runs one comparison. Zero or multiple probe faces are rejections,
// not low-confidence matches.
func (v *Verifier) Verify(ctx context.Context, reference, probe []byte) (MatchResult, error) {
	if err := v.sem.Acquire(ctx, 1); err != nil {
		return MatchResult{}, err
	}
	defer v.sem.Release(1)

	cmp, err := v.backend.Compare(ctx, reference, probe)
	if err != nil {
		return MatchResult{}, err
	}

	switch {
	case cmp.ProbeFaceCount == 0:
		return MatchResult{}, ErrNoFaceDetected
	case cmp.ProbeFaceCount > 1:
		return MatchResult{}, ErrMultipleFacesDetected
	}

	return MatchResult{
		Matched:           cmp.EmbeddingDistance <= v.tolerance,
		Confidence:        confidenceFromDistance(cmp.EmbeddingDistance),
		EmbeddingDistance: cmp.EmbeddingDistance,
		Tolerance:         v.tolerance,
	}, nil
}

// confidenceFromDistance maps an embedding distance to [0,100].
func confidenceFromDistance(distance float64) float64 {
	confidence := (1 - distance) * 100
	if confidence < 0 {
		return 0
	}
	if confidence > 100 {
		return 100
	}
	return confidence
}
