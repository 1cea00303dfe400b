package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hongminglow/kaisurf-be/internal/apperr"
	"github.com/hongminglow/kaisurf-be/internal/models"
	"github.com/hongminglow/kaisurf-be/internal/storage"
)

// SessionHeader carries the session username issued by /login.
const SessionHeader = "X-Auth-Username"

// SessionStore is the persistence Sessions needs.
type SessionStore interface {
	CreateSession(ctx context.Context, session models.Session) (models.Session, error)
	GetSession(ctx context.Context, name string) (models.Session, error)
}

// Sessions issues and resolves session usernames.
type Sessions struct {
	store      SessionStore
	identities IdentityLookup
	ttl        time.Duration
	now        func() time.Time
	newName    func() string
}

// NewSessions returns a session manager whose sessions live for ttl.
func NewSessions(store SessionStore, identities IdentityLookup, ttl time.Duration) *Sessions {
	return &Sessions{
		store:      store,
		identities: identities,
		ttl:        ttl,
		now:        time.Now,
		newName:    uuid.NewString,
	}
}

// Issue creates a fresh session for identity.
func (s *Sessions) Issue(ctx context.Context, identity models.Identity) (models.Session, error) {
	now := s.now().UTC()
	session := models.Session{
		Name:      s.newName(),
		AuthUID:   identity.AuthUID,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}
	created, err := s.store.CreateSession(ctx, session)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return models.Session{}, ErrSessionUserMissing
		}
		return models.Session{}, apperr.Wrap(apperr.KindUnavailable, "Failed to create session.", err)
	}
	return created, nil
}

// Authenticate resolves a session username to its identity.
func (s *Sessions) Authenticate(ctx context.Context, name string) (models.Identity, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return models.Identity{}, ErrMissingSession
	}
	session, err := s.store.GetSession(ctx, name)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return models.Identity{}, ErrInvalidSession
		}
		return models.Identity{}, apperr.Wrap(apperr.KindUnavailable, "Failed to resolve session.", err)
	}
	if session.Expired(s.now()) {
		return models.Identity{}, ErrInvalidSession
	}
	identity, err := s.identities.GetIdentity(ctx, session.AuthUID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return models.Identity{}, ErrSessionUserMissing
		}
		return models.Identity{}, apperr.Wrap(apperr.KindUnavailable, "Failed to resolve user.", err)
	}
	return identity, nil
}

// Resolve authenticates the session header carried by r.
func (s *Sessions) Resolve(r *http.Request) (models.Identity, error) {
	return s.Authenticate(r.Context(), r.Header.Get(SessionHeader))
}
