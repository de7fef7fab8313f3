package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lestrrat-go/jwx/v3/jwa"
	"github.com/lestrrat-go/jwx/v3/jwt"

	"github.com/zimbuild/sitebackend/internal/model"
)

const (
	// DefaultTokenTTL applies when no expiry is configured.
	DefaultTokenTTL = 7 * 24 * time.Hour
	// DefaultTokenIssuer is stamped into every issued token.
	DefaultTokenIssuer = "sitebackend"

	claimRole  = "role"
	claimEmail = "email"

	errorMessageMissingSecret = "auth: missing token secret"
	errorMessageSignToken     = "auth: sign token"
	errorMessageBuildToken    = "auth: build token"
)

// ErrMissingSecret indicates tokens were configured without a signing secret.
var ErrMissingSecret = errors.New(errorMessageMissingSecret)

// TokenConfig configures token signing.
type TokenConfig struct {
	Secret string
	TTL    time.Duration
	Issuer string
	Clock  func() time.Time
}

// Tokens issues and verifies HS256 bearer tokens whose subject is a user id.
type Tokens struct {
	secret []byte
	ttl    time.Duration
	issuer string
	clock  func() time.Time
}

// NewTokens validates the configuration and returns a Tokens instance.
func NewTokens(configuration TokenConfig) (*Tokens, error) {
	secret := strings.TrimSpace(configuration.Secret)
	if secret == "" {
		return nil, ErrMissingSecret
	}
	ttl := configuration.TTL
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	issuer := strings.TrimSpace(configuration.Issuer)
	if issuer == "" {
		issuer = DefaultTokenIssuer
	}
	clock := configuration.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Tokens{secret: []byte(secret), ttl: ttl, issuer: issuer, clock: clock}, nil
}

// Issue signs a token for user and reports when it expires.
func (tokens *Tokens) Issue(user model.User) (string, time.Time, error) {
	issuedAt := tokens.clock()
	expiresAt := issuedAt.Add(tokens.ttl)

	token, buildErr := jwt.NewBuilder().
		Issuer(tokens.issuer).
		Subject(user.ID).
		IssuedAt(issuedAt).
		Expiration(expiresAt).
		Claim(claimEmail, user.Email).
		Claim(claimRole, string(user.Role)).
		Build()
	if buildErr != nil {
		return "", time.Time{}, fmt.Errorf("%s: %w", errorMessageBuildToken, buildErr)
	}

	signed, signErr := jwt.Sign(token, jwt.WithKey(jwa.HS256(), tokens.secret))
	if signErr != nil {
		return "", time.Time{}, fmt.Errorf("%s: %w", errorMessageSignToken, signErr)
	}
	return string(signed), expiresAt, nil
}

// Verify checks the signature, issuer and expiry of raw and returns its subject.
func (tokens *Tokens) Verify(raw string) (string, error) {
	token, parseErr := jwt.Parse(
		[]byte(raw),
		jwt.WithKey(jwa.HS256(), tokens.secret),
		jwt.WithValidate(true),
		jwt.WithIssuer(tokens.issuer),
		jwt.WithClock(jwt.ClockFunc(tokens.clock)),
	)
	if parseErr != nil {
		return "", fmt.Errorf("%w: %v", ErrAuthenticationRequired, parseErr)
	}
	subject, ok := token.Subject()
	if !ok || strings.TrimSpace(subject) == "" {
		return "", fmt.Errorf("%w: missing subject", ErrAuthenticationRequired)
	}
	return subject, nil
}
