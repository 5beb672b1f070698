// Package otp issues and verifies single-use numeric codes keyed by recipient.
package otp

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"time"
)

// DefaultTTL is how long an issued code stays verifiable.
const DefaultTTL = 300 * time.Second

const (
	codeMin   = 100000
	codeRange = 900000
)

// ErrEmptyRecipient is returned when a code is requested without a recipient.
var ErrEmptyRecipient = errors.New("recipient is required")

// Result is the outcome of a verification attempt.
type Result int

const (
	// ResultNotFound means no live code exists for the recipient.
	ResultNotFound Result = iota
	// ResultMismatch means a code exists but the candidate differs. The code is kept.
	ResultMismatch
	// ResultSuccess means the candidate matched and the code was consumed.
	ResultSuccess
)

func (r Result) String() string {
	switch r {
	case ResultSuccess:
		return "success"
	case ResultMismatch:
		return "mismatch"
	default:
		return "not_found"
	}
}

// Store holds at most one live code per recipient.
type Store interface {
	// Issue generates a code for recipient, replacing any previous one.
	Issue(ctx context.Context, recipient string) (string, error)
	// Verify checks candidate against the live code and consumes it on success.
	Verify(ctx context.Context, recipient, candidate string) (Result, error)
}

// GenerateCode returns a uniformly random 6-digit code in [100000, 999999].
func GenerateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(codeRange))
	if err != nil {
		return "", fmt.Errorf("generate otp: %w", err)
	}
	return fmt.Sprintf("%d", n.Int64()+codeMin), nil
}

func digest(code string) string {
	sum := sha256.Sum256([]byte(code))
	return hex.EncodeToString(sum[:])
}

func digestEqual(candidate, stored string) bool {
	return subtle.ConstantTimeCompare([]byte(digest(candidate)), []byte(stored)) == 1
}
