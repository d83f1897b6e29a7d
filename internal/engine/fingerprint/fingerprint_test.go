package fingerprint

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/KaedenMonroe/VIP-FLIE-GaussianSplattPipeline/internal/engine/frame"
)

func solid(w, h int, val byte) *frame.Candidate {
	buf := make([]byte, w*h*3)
	for i := range buf {
		buf[i] = val
	}
	return &frame.Candidate{Width: w, Height: h, RGB: buf}
}

// halves splits the frame into a dark left half and a bright right half.
func halves(w, h int) *frame.Candidate {
	buf := make([]byte, w*h*3)
	for y := 0; y < h; y++ {
		for x := w / 2; x < w; x++ {
			p := (y*w + x) * 3
			buf[p], buf[p+1], buf[p+2] = 255, 255, 255
		}
	}
	return &frame.Candidate{Width: w, Height: h, RGB: buf}
}

// stripes alternates bright and dark columns.
func stripes(w, h int) *frame.Candidate {
	buf := make([]byte, w*h*3)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x += 2 {
			p := (y*w + x) * 3
			buf[p], buf[p+1], buf[p+2] = 255, 255, 255
		}
	}
	return &frame.Candidate{Width: w, Height: h, RGB: buf}
}

func TestIdenticalFramesMatch(t *testing.T) {
	a := Compute(halves(90, 80))
	b := Compute(halves(90, 80))
	assert.Equal(t, 0.0, frame.Distance(a, b))
}

func TestDistinctContentDiffers(t *testing.T) {
	a := Compute(halves(90, 80))
	b := Compute(stripes(90, 80))
	assert.Greater(t, frame.Distance(a, b), 8.0)
}

func TestFlatFrameHashesToZero(t *testing.T) {
	// No horizontal gradient anywhere, so no bit is ever set.
	assert.Equal(t, frame.Fingerprint(0), Compute(solid(64, 48, 200)))
}

func TestResolutionInvariance(t *testing.T) {
	// The same halved composition at different resolutions collapses to the
	// same coarse gradient structure.
	small := Compute(halves(90, 80))
	large := Compute(halves(900, 800))
	assert.Equal(t, small, large)
}

func TestExposureShiftStability(t *testing.T) {
	// A uniform brightness offset keeps every pairwise comparison intact.
	dim := halves(90, 80)
	for i := range dim.RGB {
		if dim.RGB[i] == 255 {
			dim.RGB[i] = 180
		} else {
			dim.RGB[i] = 30
		}
	}
	assert.Equal(t, Compute(halves(90, 80)), Compute(dim))
}
