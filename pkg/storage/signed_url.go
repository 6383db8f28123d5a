package storage

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken is returned for tokens that fail signature or format checks.
var ErrInvalidToken = errors.New("invalid download token")

// ErrTokenExpired is returned for well-formed tokens past their expiry.
var ErrTokenExpired = errors.New("download token expired")

type downloadClaims struct {
	Path string `json:"path"`
	jwt.RegisteredClaims
}

// SignedURLSigner creates and validates signed download tokens. Tokens are
// HS256 JWTs whose subject is the export id.
type SignedURLSigner struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewSignedURLSigner constructs a signer with the provided secret and TTL.
func NewSignedURLSigner(secret string, ttl time.Duration) *SignedURLSigner {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &SignedURLSigner{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Generate returns a signed token referencing the export and stored file path.
func (s *SignedURLSigner) Generate(exportID, relPath string) (string, time.Time, error) {
	if exportID == "" || relPath == "" {
		return "", time.Time{}, fmt.Errorf("export id and path required")
	}
	if len(s.secret) == 0 {
		return "", time.Time{}, fmt.Errorf("signing secret missing")
	}

	now := s.now()
	expiresAt := now.Add(s.ttl).Truncate(time.Second)
	claims := downloadClaims{
		Path: relPath,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   exportID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign download token: %w", err)
	}
	return token, expiresAt, nil
}

// Parse validates a token and returns the embedded export id and path. When
// allowExpired is true the expiry check is skipped.
func (s *SignedURLSigner) Parse(token string, allowExpired bool) (exportID, relPath string, expiresAt time.Time, err error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	}
	if allowExpired {
		opts = append(opts, jwt.WithoutClaimsValidation())
	}

	claims := &downloadClaims{}
	_, err = jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, opts...)
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return "", "", time.Time{}, ErrTokenExpired
	case err != nil:
		return "", "", time.Time{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Subject == "" || claims.Path == "" || claims.ExpiresAt == nil {
		return "", "", time.Time{}, ErrInvalidToken
	}
	return claims.Subject, claims.Path, claims.ExpiresAt.Time, nil
}
