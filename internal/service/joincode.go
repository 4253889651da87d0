package service

import (
	"crypto/rand"
	"math/big"

	"github.com/Kerhoff/synclist/internal/models"
)

// joinCodeAlphabet leaves out O, 0, I and 1, which are easy to mistype.
const joinCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// GenerateJoinCode returns a random join code. Uniqueness is enforced by the
// store, not here.
func GenerateJoinCode() (string, error) {
	size := big.NewInt(int64(len(joinCodeAlphabet)))
	code := make([]byte, models.JoinCodeLength)
	for i := range code {
		n, err := rand.Int(rand.Reader, size)
		if err != nil {
			return "", err
		}
		code[i] = joinCodeAlphabet[n.Int64()]
	}
	return string(code), nil
}
