// Package score computes the per-frame quality vector: sharpness, exposure
// and motion-blur magnitude. All functions are pure and deterministic; the
// pixel buffer is never mutated.
package score

import (
	"math"

	"github.com/KaedenMonroe/VIP-FLIE-GaussianSplattPipeline/internal/engine/frame"
)

// compareWidth is the luma downsample width all metrics are computed on,
// keeping the scores roughly resolution-invariant and the cost bounded.
const compareWidth = 512

// Compute scores one candidate. The candidate's pixel plane must still be
// attached.
func Compute(c *frame.Candidate) frame.QualityScore {
	luma, w, h := Luma(c, compareWidth)
	return frame.QualityScore{
		Sharpness:     laplacianVariance(luma, w, h),
		Exposure:      exposureScore(luma),
		BlurMagnitude: gradientAnisotropy(luma, w, h),
	}
}

// Luma converts the candidate's RGB plane to a grayscale plane box-resampled
// to at most targetWidth columns. Returns the plane and its dimensions.
func Luma(c *frame.Candidate, targetWidth int) ([]float64, int, int) {
	srcW, srcH := c.Width, c.Height
	outW := srcW
	if targetWidth > 0 && targetWidth < srcW {
		outW = targetWidth
	}
	outH := srcH * outW / srcW
	if outH < 1 {
		outH = 1
	}

	out := make([]float64, outW*outH)
	for y := 0; y < outH; y++ {
		sy0 := y * srcH / outH
		sy1 := (y + 1) * srcH / outH
		if sy1 <= sy0 {
			sy1 = sy0 + 1
		}
		for x := 0; x < outW; x++ {
			sx0 := x * srcW / outW
			sx1 := (x + 1) * srcW / outW
			if sx1 <= sx0 {
				sx1 = sx0 + 1
			}

			var sum float64
			for sy := sy0; sy < sy1; sy++ {
				row := sy * srcW * 3
				for sx := sx0; sx < sx1; sx++ {
					p := row + sx*3
					r := float64(c.RGB[p])
					g := float64(c.RGB[p+1])
					b := float64(c.RGB[p+2])
					// BT.601 luma weights.
					sum += 0.299*r + 0.587*g + 0.114*b
				}
			}
			out[y*outW+x] = sum / float64((sy1-sy0)*(sx1-sx0))
		}
	}
	return out, outW, outH
}

// laplacianVariance is the variance of the 4-neighbour Laplacian response, a
// cheap proxy for focus quality: sharp frames carry more high-frequency
// energy.
func laplacianVariance(luma []float64, w, h int) float64 {
	if w < 3 || h < 3 {
		return 0
	}

	n := (w - 2) * (h - 2)
	responses := make([]float64, 0, n)
	var sum float64
	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			i := y*w + x
			lap := luma[i-w] + luma[i+w] + luma[i-1] + luma[i+1] - 4*luma[i]
			responses = append(responses, lap)
			sum += lap
		}
	}

	mean := sum / float64(n)
	var variance float64
	for _, r := range responses {
		d := r - mean
		variance += d * d
	}
	return variance / float64(n)
}

// exposureScore builds a 256-bin histogram and scores spread while
// penalizing clipped tails. 1 means well-exposed; heavy clipping or a
// collapsed histogram pushes the score toward 0.
func exposureScore(luma []float64) float64 {
	if len(luma) == 0 {
		return 0
	}

	var hist [256]int
	for _, v := range luma {
		bin := int(v)
		if bin < 0 {
			bin = 0
		} else if bin > 255 {
			bin = 255
		}
		hist[bin]++
	}
	total := float64(len(luma))

	// Fraction of pixels crushed into the extreme tails.
	var clipped float64
	for b := 0; b < 4; b++ {
		clipped += float64(hist[b] + hist[255-b])
	}
	clipped /= total

	// Occupied dynamic range between the 1st and 99th percentile.
	lo, hi := percentileBounds(hist[:], total, 0.01, 0.99)
	spread := float64(hi-lo) / 255.0

	s := spread * (1 - clipped)
	if s < 0 {
		s = 0
	} else if s > 1 {
		s = 1
	}
	return s
}

func percentileBounds(hist []int, total float64, pLo, pHi float64) (int, int) {
	lo, hi := 0, 255
	var acc float64
	for b := 0; b < 256; b++ {
		acc += float64(hist[b])
		if acc/total >= pLo {
			lo = b
			break
		}
	}
	acc = 0
	for b := 255; b >= 0; b-- {
		acc += float64(hist[b])
		if acc/total >= 1-pHi {
			hi = b
			break
		}
	}
	if hi < lo {
		hi = lo
	}
	return lo, hi
}

// gradientAnisotropy estimates motion blur from the structure tensor of the
// gradient field. A frame smeared along one direction has a dominant
// eigenvalue much larger than the minor one; the returned magnitude is the
// eigenvalue ratio minus one, so an isotropic frame scores near zero.
func gradientAnisotropy(luma []float64, w, h int) float64 {
	if w < 3 || h < 3 {
		return 0
	}

	var jxx, jyy, jxy float64
	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			i := y*w + x
			gx := (luma[i+1] - luma[i-1]) / 2
			gy := (luma[i+w] - luma[i-w]) / 2
			jxx += gx * gx
			jyy += gy * gy
			jxy += gx * gy
		}
	}

	trace := jxx + jyy
	if trace < 1e-9 {
		// No gradients at all: flat frame, no directional smear to measure.
		return 0
	}

	// Eigenvalues of the 2x2 structure tensor.
	root := math.Sqrt((jxx-jyy)*(jxx-jyy) + 4*jxy*jxy)
	major := (trace + root) / 2
	minor := (trace - root) / 2
	if minor < 1e-9 {
		minor = 1e-9
	}
	return major/minor - 1
}
