package utils

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
)

// suffixCharset is lowercase so ids stay valid as resource names, hostnames,
// and workspace directory names on every provider.
const suffixCharset = "0123456789abcdefghijklmnopqrstuvwxyz"

// RandomSuffix returns n random characters drawn from suffixCharset.
func RandomSuffix(n int) (string, error) {
	if n <= 0 {
		return "", fmt.Errorf("suffix length must be positive, got %d", n)
	}
	var b strings.Builder
	b.Grow(n)
	for i := 0; i < n; i++ {
		idx, err := rand.Int(rand.Reader, big.NewInt(int64(len(suffixCharset))))
		if err != nil {
			return "", err
		}
		b.WriteByte(suffixCharset[idx.Int64()])
	}
	return b.String(), nil
}
