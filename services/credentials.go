package services

import (
	"crypto/rand"
	"crypto/sha256"
	"io"
	"math/big"

	"github.com/juho05/log"
	"github.com/xdg-go/pbkdf2"
)

func init() {
	buf := make([]byte, 1)

	_, err := io.ReadFull(rand.Reader, buf)
	if err != nil {
		log.Fatalf("crypto/rand is unavailable: Read() failed with %#v", err)
	}
}

// GenerateToken returns a URL-safe random secret of the given length.
// 64 characters of this alphabet carry well over 256 bits of entropy.
func GenerateToken(length int) string {
	const letters = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"
	ret := make([]byte, length)
	for i := 0; i < length; i++ {
		num, err := rand.Int(rand.Reader, big.NewInt(int64(len(letters))))
		if err != nil {
			panic(err)
		}
		ret[i] = letters[num.Int64()]
	}

	return string(ret)
}

// HashToken derives the storage digest of a raw secret. Only the digest is
// ever persisted; the raw secret leaves the process exactly once, via email.
func HashToken(token string) []byte {
	return pbkdf2.Key([]byte(token), []byte("safe-job-auth"), 10000, 32, sha256.New)
}
