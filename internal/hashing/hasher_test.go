package hashing

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContentHashDeterministic(t *testing.T) {
	payload := []byte("probe image bytes")
	assert.Equal(t, ContentHash(payload), ContentHash(payload))
	assert.Len(t, ContentHash(payload), 64)
}

func TestContentHashDiffers(t *testing.T) {
	assert.NotEqual(t, ContentHash([]byte("a")), ContentHash([]byte("b")))
}

func TestVerifyContentHash(t *testing.T) {
	payload := []byte("reference image")
	digest := ContentHash(payload)

	assert.True(t, VerifyContentHash(payload, digest))
	assert.False(t, VerifyContentHash([]byte("tampered"), digest))
	assert.True(t, VerifyContentHash(payload, ""), "legacy rows without a digest pass")
}
