// README: Cryptographically strong random strings for passwords and one-off tokens.
package secret

import (
	"crypto/rand"
	"errors"
	"math/big"
)

const alphabet = "ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz23456789!@#$%^&*"

var ErrLength = errors.New("length must be positive")

// RandomString draws n characters uniformly from a fixed alphabet.
func RandomString(n int) (string, error) {
	if n <= 0 {
		return "", ErrLength
	}
	max := big.NewInt(int64(len(alphabet)))
	out := make([]byte, n)
	for i := range out {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		out[i] = alphabet[idx.Int64()]
	}
	return string(out), nil
}
