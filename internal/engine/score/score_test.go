package score

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KaedenMonroe/VIP-FLIE-GaussianSplattPipeline/internal/engine/frame"
)

// gray builds a candidate where every pixel has the same R=G=B value.
func gray(w, h int, val byte) *frame.Candidate {
	buf := make([]byte, w*h*3)
	for i := range buf {
		buf[i] = val
	}
	return &frame.Candidate{Width: w, Height: h, RGB: buf}
}

// checkerboard alternates 0 and 255 per pixel, the maximum high-frequency
// content a frame can carry.
func checkerboard(w, h int) *frame.Candidate {
	buf := make([]byte, w*h*3)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if (x+y)%2 == 0 {
				p := (y*w + x) * 3
				buf[p], buf[p+1], buf[p+2] = 255, 255, 255
			}
		}
	}
	return &frame.Candidate{Width: w, Height: h, RGB: buf}
}

// hGradient ramps luma left to right, so all gradient energy points along x.
func hGradient(w, h int) *frame.Candidate {
	buf := make([]byte, w*h*3)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := byte(x * 255 / (w - 1))
			p := (y*w + x) * 3
			buf[p], buf[p+1], buf[p+2] = v, v, v
		}
	}
	return &frame.Candidate{Width: w, Height: h, RGB: buf}
}

// blocks tiles 4x4 alternating squares: edge energy in both directions.
func blocks(w, h int) *frame.Candidate {
	buf := make([]byte, w*h*3)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if (x/4+y/4)%2 == 0 {
				p := (y*w + x) * 3
				buf[p], buf[p+1], buf[p+2] = 255, 255, 255
			}
		}
	}
	return &frame.Candidate{Width: w, Height: h, RGB: buf}
}

func TestLumaGrayIdentity(t *testing.T) {
	c := gray(8, 6, 128)
	luma, w, h := Luma(c, 512)

	assert.Equal(t, 8, w)
	assert.Equal(t, 6, h)
	require.Len(t, luma, 48)
	for _, v := range luma {
		assert.InDelta(t, 128.0, v, 0.001)
	}
}

func TestLumaDownsamples(t *testing.T) {
	c := gray(1024, 512, 200)
	luma, w, h := Luma(c, 512)

	assert.Equal(t, 512, w)
	assert.Equal(t, 256, h)
	assert.Len(t, luma, 512*256)
	assert.InDelta(t, 200.0, luma[0], 0.001)
}

func TestSharpnessOrdersFlatBelowSharp(t *testing.T) {
	flat := Compute(gray(64, 64, 128))
	sharp := Compute(checkerboard(64, 64))

	assert.Zero(t, flat.Sharpness)
	assert.Greater(t, sharp.Sharpness, 1000.0)
}

func TestExposureFlatFrameScoresZero(t *testing.T) {
	// Collapsed histogram: no spread, nothing usable for exposure.
	s := Compute(gray(64, 64, 128))
	assert.Zero(t, s.Exposure)
}

func TestExposureClippedFrameScoresLow(t *testing.T) {
	// Every pixel sits in the extreme tails, so the clipping penalty wipes
	// out the full spread.
	clipped := Compute(checkerboard(64, 64))
	spread := Compute(hGradient(256, 32))

	assert.Less(t, clipped.Exposure, 0.1)
	assert.Greater(t, spread.Exposure, 0.5)
}

func TestBlurMagnitudeFlagsDirectionalSmear(t *testing.T) {
	directional := Compute(hGradient(64, 64))
	isotropic := Compute(blocks(64, 64))
	flat := Compute(gray(64, 64, 100))

	assert.Zero(t, flat.BlurMagnitude)
	assert.Greater(t, directional.BlurMagnitude, 100.0)
	assert.Less(t, isotropic.BlurMagnitude, 1.0)
	assert.Greater(t, directional.BlurMagnitude, 10*isotropic.BlurMagnitude)
}

func TestComputeIsDeterministic(t *testing.T) {
	c := blocks(48, 48)
	first := Compute(c)
	second := Compute(c)
	assert.Equal(t, first, second)
}
