package frame

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDistance(t *testing.T) {
	assert.Equal(t, 0.0, Distance(0xdeadbeef, 0xdeadbeef))
	assert.Equal(t, 64.0, Distance(0, 0xffffffffffffffff))
	assert.Equal(t, 1.0, Distance(0x8000000000000000, 0))

	// Symmetric.
	a, b := Fingerprint(0xcafe), Fingerprint(0xbeef)
	assert.Equal(t, Distance(a, b), Distance(b, a))
}

func TestFingerprintHex(t *testing.T) {
	assert.Equal(t, "0000000000000000", Fingerprint(0).Hex())
	assert.Equal(t, "00000000deadbeef", Fingerprint(0xdeadbeef).Hex())
	assert.Equal(t, "ffffffffffffffff", Fingerprint(0xffffffffffffffff).Hex())
}

func TestFingerprintJSONRoundTrip(t *testing.T) {
	orig := Fingerprint(0x123456789abcdef0)

	data, err := json.Marshal(orig)
	require.NoError(t, err)
	assert.Equal(t, `"123456789abcdef0"`, string(data))

	var decoded Fingerprint
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, orig, decoded)
}

func TestCandidateReleasePixels(t *testing.T) {
	c := &Candidate{Width: 2, Height: 2, RGB: make([]byte, 12)}
	require.True(t, c.HasPixels())

	c.Score = QualityScore{Sharpness: 42}
	c.ReleasePixels()

	assert.False(t, c.HasPixels())
	assert.Nil(t, c.RGB)
	assert.Equal(t, 42.0, c.Score.Sharpness, "score survives pixel release")
}
