// Package fingerprint computes the compact visual descriptor used for
// near-duplicate detection: a 64-bit difference hash over a 9x8 luma
// thumbnail. The hash is fixed-size regardless of source resolution, so
// pairwise comparison cost is O(1).
package fingerprint

import (
	"github.com/KaedenMonroe/VIP-FLIE-GaussianSplattPipeline/internal/engine/frame"
)

const (
	hashCols = 9
	hashRows = 8
)

// Compute builds the candidate's fingerprint. Each bit compares two
// horizontally adjacent cells of the thumbnail, so the hash captures the
// coarse gradient structure of the frame and is stable under small exposure
// shifts.
func Compute(c *frame.Candidate) frame.Fingerprint {
	thumb := thumbnail(c)

	var bitsOut uint64
	bit := 0
	for row := 0; row < hashRows; row++ {
		for col := 0; col < hashCols-1; col++ {
			if thumb[row*hashCols+col] < thumb[row*hashCols+col+1] {
				bitsOut |= 1 << (63 - bit)
			}
			bit++
		}
	}
	return frame.Fingerprint(bitsOut)
}

// thumbnail averages the RGB plane down to a hashCols x hashRows luma grid.
func thumbnail(c *frame.Candidate) [hashCols * hashRows]float64 {
	var out [hashCols * hashRows]float64

	for row := 0; row < hashRows; row++ {
		sy0 := row * c.Height / hashRows
		sy1 := (row + 1) * c.Height / hashRows
		if sy1 <= sy0 {
			sy1 = sy0 + 1
		}
		for col := 0; col < hashCols; col++ {
			sx0 := col * c.Width / hashCols
			sx1 := (col + 1) * c.Width / hashCols
			if sx1 <= sx0 {
				sx1 = sx0 + 1
			}

			var sum float64
			for sy := sy0; sy < sy1; sy++ {
				rowOff := sy * c.Width * 3
				for sx := sx0; sx < sx1; sx++ {
					p := rowOff + sx*3
					sum += 0.299*float64(c.RGB[p]) + 0.587*float64(c.RGB[p+1]) + 0.114*float64(c.RGB[p+2])
				}
			}
			out[row*hashCols+col] = sum / float64((sy1-sy0)*(sx1-sx0))
		}
	}
	return out
}
