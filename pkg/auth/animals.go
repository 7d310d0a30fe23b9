package auth

import (
	"errors"
	"fmt"
	"strings"

	"github.com/samber/lo"
	"golang.org/x/crypto/bcrypt"
)

// MinAnimals is the shortest accepted secret sequence.
const MinAnimals = 3

// Animals are the words a secret sequence is picked from.
var Animals = []string{
	"bear", "cat", "cow", "deer", "dog", "dolphin", "duck", "eagle",
	"elephant", "fox", "frog", "giraffe", "horse", "koala", "lion", "monkey",
	"owl", "panda", "penguin", "pig", "rabbit", "shark", "tiger", "turtle",
	"whale", "wolf", "zebra",
}

var ErrSequenceMismatch = errors.New("animal sequence does not match")

// NormalizeSequence validates animals and joins them in order.
func NormalizeSequence(animals []string) (string, error) {
	if len(animals) < MinAnimals {
		return "", fmt.Errorf("at least %d animals are required", MinAnimals)
	}

	normalized := lo.Map(animals, func(a string, _ int) string {
		return strings.ToLower(strings.TrimSpace(a))
	})

	for _, a := range normalized {
		if !lo.Contains(Animals, a) {
			return "", fmt.Errorf("unknown animal %q", a)
		}
	}
	return strings.Join(normalized, "-"), nil
}

func HashSequence(animals []string) (string, error) {
	seq, err := NormalizeSequence(animals)
	if err != nil {
		return "", err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(seq), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hashing sequence: %w", err)
	}
	return string(hash), nil
}

func CompareSequence(hash string, animals []string) error {
	seq, err := NormalizeSequence(animals)
	if err != nil {
		return ErrSequenceMismatch
	}

	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(seq)); err != nil {
		return ErrSequenceMismatch
	}
	return nil
}
