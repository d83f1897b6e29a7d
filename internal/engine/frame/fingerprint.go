package frame

import (
	"encoding/hex"
	"math/bits"
)

// Fingerprint is a 64-bit difference hash of the luma thumbnail. Fixed size
// regardless of source resolution, so pairwise comparison is O(1).
type Fingerprint uint64

// Distance is the symmetric Hamming distance between two fingerprints.
// Near-identical frames yield near-zero distance. It is used for relative
// ranking only, not as a strict metric.
func Distance(a, b Fingerprint) float64 {
	return float64(bits.OnesCount64(uint64(a ^ b)))
}

// Hex renders the fingerprint as a 16-character lowercase hex string, the
// form stored in the export manifest.
func (f Fingerprint) Hex() string {
	var buf [8]byte
	for i := 0; i < 8; i++ {
		buf[i] = byte(uint64(f) >> (56 - 8*i))
	}
	return hex.EncodeToString(buf[:])
}

// MarshalJSON encodes the fingerprint as its hex form.
func (f Fingerprint) MarshalJSON() ([]byte, error) {
	return []byte(`"` + f.Hex() + `"`), nil
}

// UnmarshalJSON decodes the hex form produced by MarshalJSON.
func (f *Fingerprint) UnmarshalJSON(data []byte) error {
	if len(data) >= 2 && data[0] == '"' {
		data = data[1 : len(data)-1]
	}
	raw, err := hex.DecodeString(string(data))
	if err != nil {
		return err
	}
	var v uint64
	for _, b := range raw {
		v = v<<8 | uint64(b)
	}
	*f = Fingerprint(v)
	return nil
}
