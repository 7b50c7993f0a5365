package scheduler

import (
	"bufio"
	"io"
	"os"

	"github.com/cespare/xxhash/v2"
)

// hashOutputFile content-hashes a produced output file the same way the
// Fingerprint Engine hashes a declared input, so a manifest's recorded
// Hash is directly comparable to what a later fingerprint computation
// would see.
func hashOutputFile(path string) (string, error) {
	//nolint:gosec // path comes from a declared output glob the task itself just produced
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := xxhash.New()
	if _, err := io.Copy(h, bufio.NewReader(f)); err != nil {
		return "", err
	}

	sum := h.Sum64()
	const hexDigits = "0123456789abcdef"
	out := make([]byte, 16)
	for i := 0; i < 8; i++ {
		b := byte(sum >> (56 - 8*i))
		out[i*2] = hexDigits[b>>4]
		out[i*2+1] = hexDigits[b&0x0f]
	}
	return string(out), nil
}
