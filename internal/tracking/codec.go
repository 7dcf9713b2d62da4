package tracking

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"unicode"

	"boxrental-backend/internal/domain"
)

const (
	// Alphabet leaves out 0/O and 1/I/L so codes survive being read aloud.
	Alphabet = "23456789ABCDEFGHJKMNPQRSTUVWXYZ"

	DefaultCodeLength = 10
	MinCodeLength     = 8
	FragmentLength    = 4

	maxGenerateAttempts = 8
)

var ErrCodeSpaceExhausted = errors.New("tracking: could not find an unused code")

// DeriveIdentityFragment returns the last four digits of a national ID
// before its check digit, left padded with zeros. Punctuation is ignored and
// a trailing K check digit is accepted.
func DeriveIdentityFragment(nationalID string) (string, error) {
	s := strings.TrimSpace(nationalID)
	if n := len(s); n > 0 && (s[n-1] == 'k' || s[n-1] == 'K') {
		s = s[:n-1] + "0"
	}
	var digits strings.Builder
	for _, r := range s {
		if unicode.IsDigit(r) {
			digits.WriteRune(r)
		}
	}
	d := digits.String()
	if len(d) < 2 {
		return "", domain.InvalidInput("national id %q has no digits before the check digit", nationalID)
	}
	body := d[:len(d)-1]
	if len(body) > FragmentLength {
		body = body[len(body)-FragmentLength:]
	}
	return strings.Repeat("0", FragmentLength-len(body)) + body, nil
}

// NormalizeCode uppercases a user typed code and strips surrounding space.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// MasterCode joins an identity fragment and a tracking code.
func MasterCode(fragment, code string) string {
	return fragment + "-" + code
}

// ParseMasterCode splits a master code on its last hyphen.
func ParseMasterCode(master string) (fragment, code string, err error) {
	master = NormalizeCode(master)
	i := strings.LastIndexByte(master, '-')
	if i <= 0 || i == len(master)-1 {
		return "", "", domain.InvalidInput("malformed master code")
	}
	return master[:i], master[i+1:], nil
}

// CodeExists reports whether a tracking code is already taken.
type CodeExists interface {
	TrackingCodeExists(ctx context.Context, code string) (bool, error)
}

type Generator struct {
	length int
}

func NewGenerator(length int) (*Generator, error) {
	if length == 0 {
		length = DefaultCodeLength
	}
	if length < MinCodeLength {
		return nil, fmt.Errorf("tracking code length %d is below the minimum of %d", length, MinCodeLength)
	}
	return &Generator{length: length}, nil
}

// Random returns a fresh code without checking for collisions.
func (g *Generator) Random() (string, error) {
	max := big.NewInt(int64(len(Alphabet)))
	b := make([]byte, g.length)
	for i := range b {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("tracking: read random: %w", err)
		}
		b[i] = Alphabet[n.Int64()]
	}
	return string(b), nil
}

// Generate returns a code that exists reports as unused.
func (g *Generator) Generate(ctx context.Context, exists CodeExists) (string, error) {
	for attempt := 0; attempt < maxGenerateAttempts; attempt++ {
		code, err := g.Random()
		if err != nil {
			return "", err
		}
		taken, err := exists.TrackingCodeExists(ctx, code)
		if err != nil {
			return "", err
		}
		if !taken {
			return code, nil
		}
	}
	return "", ErrCodeSpaceExhausted
}

type RentalFinder interface {
	GetByTrackingCode(ctx context.Context, code string) (*domain.Rental, error)
}

type CustomerFinder interface {
	GetByID(ctx context.Context, id int64) (*domain.Customer, error)
}

// Verifier resolves a (fragment, code) credential to its rental. Every
// failure to match is reported as domain.ErrCredentialMismatch.
type Verifier struct {
	rentals   RentalFinder
	customers CustomerFinder
}

func NewVerifier(rentals RentalFinder, customers CustomerFinder) *Verifier {
	return &Verifier{rentals: rentals, customers: customers}
}

func (v *Verifier) Verify(ctx context.Context, fragment, code string) (*domain.Rental, error) {
	code = NormalizeCode(code)
	fragment = strings.TrimSpace(fragment)
	if code == "" || fragment == "" {
		return nil, domain.ErrCredentialMismatch
	}

	rental, err := v.rentals.GetByTrackingCode(ctx, code)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.ErrCredentialMismatch
	}
	if err != nil {
		return nil, err
	}

	customer, err := v.customers.GetByID(ctx, rental.CustomerID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.ErrCredentialMismatch
	}
	if err != nil {
		return nil, err
	}

	expected, err := DeriveIdentityFragment(customer.NationalID)
	if err != nil {
		return nil, domain.ErrCredentialMismatch
	}
	if subtle.ConstantTimeCompare([]byte(expected), []byte(fragment)) != 1 {
		return nil, domain.ErrCredentialMismatch
	}
	return rental, nil
}

// VerifyMaster resolves a master code the same way Verify resolves a pair.
func (v *Verifier) VerifyMaster(ctx context.Context, master string) (*domain.Rental, error) {
	fragment, code, err := ParseMasterCode(master)
	if err != nil {
		return nil, domain.ErrCredentialMismatch
	}
	return v.Verify(ctx, fragment, code)
}
