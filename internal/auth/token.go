package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/hongminglow/kaisurf-be/internal/apperr"
	"github.com/hongminglow/kaisurf-be/internal/models"
	"github.com/hongminglow/kaisurf-be/internal/storage"
)

// TokenManager issues signed JWTs for identities.
type TokenManager struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenManager creates a manager with the provided secret, issuer, and lifetime.
func NewTokenManager(secret, issuer string, ttl time.Duration) *TokenManager {
	return &TokenManager{
		secret: []byte(secret),
		issuer: issuer,
		ttl:    ttl,
		now:    time.Now,
	}
}

// Generate issues a signed JWT string whose subject is the identity's auth uid.
func (t *TokenManager) Generate(identity models.Identity) (string, error) {
	if len(t.secret) == 0 {
		return "", ErrMisconfigured
	}
	now := t.now()
	claims := jwt.RegisteredClaims{
		Issuer:    t.issuer,
		Subject:   identity.AuthUID,
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(t.secret)
}

// IdentityLookup resolves a token subject to a stored identity.
type IdentityLookup interface {
	GetIdentity(ctx context.Context, authUID string) (models.Identity, error)
}

// Authenticator validates bearer tokens and resolves them to identities.
// It has no side effects and never retries.
type Authenticator struct {
	secret     []byte
	identities IdentityLookup
	now        func() time.Time
}

// AuthenticatorOption customises an Authenticator.
type AuthenticatorOption func(*Authenticator)

// WithClock overrides the time source used for expiry checks.
func WithClock(now func() time.Time) AuthenticatorOption {
	return func(a *Authenticator) { a.now = now }
}

// NewAuthenticator returns an authenticator for HS256 tokens signed with
// secret. An empty secret is accepted here and reported per request as
// ErrMisconfigured.
func NewAuthenticator(secret string, identities IdentityLookup, opts ...AuthenticatorOption) *Authenticator {
	a := &Authenticator{
		secret:     []byte(secret),
		identities: identities,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Authenticate checks, in order: presence, signing secret, structure, expiry,
// signature, subject presence and subject existence. An expired token is
// reported as expired whether or not its signature is valid.
func (a *Authenticator) Authenticate(ctx context.Context, credential string) (models.Identity, error) {
	credential = strings.TrimSpace(credential)
	if credential == "" {
		return models.Identity{}, ErrMissingCredential
	}
	if len(a.secret) == 0 {
		return models.Identity{}, ErrMisconfigured
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(a.now),
	)

	var unverified jwt.RegisteredClaims
	if _, _, err := parser.ParseUnverified(credential, &unverified); err != nil {
		return models.Identity{}, fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}
	if unverified.ExpiresAt == nil {
		return models.Identity{}, fmt.Errorf("%w: missing exp claim", ErrMalformedToken)
	}
	if !a.now().Before(unverified.ExpiresAt.Time) {
		return models.Identity{}, ErrTokenExpired
	}

	var claims jwt.RegisteredClaims
	_, err := parser.ParseWithClaims(credential, &claims, func(*jwt.Token) (any, error) {
		return a.secret, nil
	})
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return models.Identity{}, ErrTokenExpired
		case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
			return models.Identity{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
		default:
			return models.Identity{}, fmt.Errorf("%w: %v", ErrMalformedToken, err)
		}
	}

	subject := strings.TrimSpace(claims.Subject)
	if subject == "" {
		return models.Identity{}, ErrMissingSubject
	}

	identity, err := a.identities.GetIdentity(ctx, subject)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return models.Identity{}, ErrUnknownSubject
		}
		return models.Identity{}, apperr.Wrap(apperr.KindUnavailable, "Failed to resolve user.", err)
	}
	return identity, nil
}

// Resolve authenticates the bearer token carried by r.
func (a *Authenticator) Resolve(r *http.Request) (models.Identity, error) {
	token, ok := bearerToken(r.Header.Get("Authorization"))
	if !ok {
		return models.Identity{}, ErrMissingCredential
	}
	return a.Authenticate(r.Context(), token)
}

func bearerToken(header string) (string, bool) {
	parts := strings.SplitN(strings.TrimSpace(header), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	return token, token != ""
}
