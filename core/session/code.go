package session

import (
	"crypto/rand"
	"math/big"
)

const (
	defaultCodeLength = 6
	// no 0/O, 1/I/L: codes are read off a board
	codeAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"
)

func generateCode(n int) (string, error) {
	max := big.NewInt(int64(len(codeAlphabet)))
	code := make([]byte, n)
	for i := range code {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		code[i] = codeAlphabet[idx.Int64()]
	}
	return string(code), nil
}
