// Package shortid generates the random tokens used as short URL keys.
package shortid

import (
	"crypto/rand"
	"math/big"
)

// Alphabet is URL safe: letters, digits, '_' and '-'.
const Alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789_-"

// Length of generated tokens. 64^10 keeps collisions negligible.
const Length = 10

// Generator produces random tokens of a fixed length.
type Generator struct {
	alphabet string
	length   int
}

// New returns a Generator producing Length-character tokens from Alphabet.
func New() *Generator {
	return &Generator{
		alphabet: Alphabet,
		length:   Length,
	}
}

// Generate returns a new random token using crypto/rand.
func (g *Generator) Generate() string {
	b := make([]byte, g.length)
	n := big.NewInt(int64(len(g.alphabet)))

	for i := range b {
		idx, err := rand.Int(rand.Reader, n)
		if err != nil {
			panic("crypto/rand failed: " + err.Error())
		}
		b[i] = g.alphabet[idx.Int64()]
	}

	return string(b)
}
