package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"math/big"
	"strings"

	"golang.org/x/crypto/pbkdf2"

	"nyx/internal/domain"
	"nyx/internal/util/memzero"
)

const (
	// PhraseWords is the number of words in a recovery phrase.
	PhraseWords = 12

	phraseSalt       = "securechat_salt"
	phraseIterations = 100000
)

// GeneratePhrase draws PhraseWords words uniformly, with replacement.
func GeneratePhrase() (string, error) {
	n := big.NewInt(int64(len(wordList)))
	words := make([]string, PhraseWords)
	for i := range words {
		idx, err := rand.Int(rand.Reader, n)
		if err != nil {
			return "", err
		}
		words[i] = wordList[idx.Int64()]
	}
	return strings.Join(words, " "), nil
}

// NormalizePhrase lower-cases phrase and collapses runs of whitespace. It
// fails if the result is not PhraseWords dictionary words.
func NormalizePhrase(phrase string) (string, error) {
	words := strings.Fields(strings.ToLower(phrase))
	if len(words) != PhraseWords {
		return "", fmt.Errorf("%w: want %d words, got %d", domain.ErrInvalidCredential, PhraseWords, len(words))
	}
	for i, w := range words {
		if _, ok := wordIndex[w]; !ok {
			return "", fmt.Errorf("%w: word %d not in dictionary", domain.ErrInvalidCredential, i+1)
		}
	}
	return strings.Join(words, " "), nil
}

// SeedFromPhrase runs PBKDF2-HMAC-SHA256 over the normalized phrase.
func SeedFromPhrase(phrase string) (domain.Seed, error) {
	var seed domain.Seed
	norm, err := NormalizePhrase(phrase)
	if err != nil {
		return seed, err
	}
	key := pbkdf2.Key([]byte(norm), []byte(phraseSalt), phraseIterations, len(seed), sha256.New)
	copy(seed[:], key)
	memzero.Zero(key)
	return seed, nil
}
