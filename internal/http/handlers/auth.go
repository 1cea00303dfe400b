package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/hongminglow/kaisurf-be/internal/apperr"
	"github.com/hongminglow/kaisurf-be/internal/events"
	"github.com/hongminglow/kaisurf-be/internal/http/respond"
	"github.com/hongminglow/kaisurf-be/internal/logging"
	"github.com/hongminglow/kaisurf-be/internal/models"
	"github.com/hongminglow/kaisurf-be/internal/models/dto"
)

const maxAuthUIDLength = 128

var errAuthUIDRequired = apperr.New(apperr.KindValidation, "auth_uid is required and must be at most 128 characters.")

// IdentityRegistrar creates identities on behalf of the trusted auth service.
type IdentityRegistrar interface {
	CreateIdentity(ctx context.Context, authUID string) (models.Identity, bool, error)
}

// SessionIssuer hands out session usernames.
type SessionIssuer interface {
	Issue(ctx context.Context, identity models.Identity) (models.Session, error)
}

// ActivityRecorder appends internal events to the activity log.
type ActivityRecorder interface {
	Record(ctx context.Context, identity models.Identity, eventType string, details any) (models.AuditLogEntry, error)
}

// AuthHandler owns registration, login and the profile endpoint.
type AuthHandler struct {
	identities IdentityRegistrar
	sessions   SessionIssuer
	activity   ActivityRecorder
	log        logrus.FieldLogger
}

// NewAuthHandler constructs the handler.
func NewAuthHandler(identities IdentityRegistrar, sessions SessionIssuer, activity ActivityRecorder, log logrus.FieldLogger) *AuthHandler {
	return &AuthHandler{identities: identities, sessions: sessions, activity: activity, log: log}
}

// Register attaches auth routes to the router.
func (h *AuthHandler) Register(r *mux.Router, gates Gates) {
	r.HandleFunc("/register", gates.Trusted.Public(h.handleRegister)).Methods(http.MethodPost)
	r.HandleFunc("/login", gates.Bearer.Then(h.handleLogin)).Methods(http.MethodPost)
	r.HandleFunc("/user/profile", gates.Session.Then(h.handleProfile)).Methods(http.MethodGet)
}

func (h *AuthHandler) handleRegister(w http.ResponseWriter, r *http.Request) {
	body, err := readJSON(w, r)
	if err != nil {
		fail(w, r, h.log, err)
		return
	}
	var req dto.RegisterRequest
	if err := json.Unmarshal(body, &req); err != nil {
		fail(w, r, h.log, errAuthUIDRequired)
		return
	}
	uid := strings.TrimSpace(req.AuthUID)
	if uid == "" || utf8.RuneCountInString(uid) > maxAuthUIDLength {
		fail(w, r, h.log, errAuthUIDRequired)
		return
	}

	identity, created, err := h.identities.CreateIdentity(r.Context(), uid)
	if err != nil {
		fail(w, r, h.log, apperr.Wrap(apperr.KindUnavailable, "Failed to register user.", err))
		return
	}
	if !created {
		respond.JSON(w, http.StatusOK, dto.RegisterResponse{Message: "User already registered.", UserID: identity.AuthUID})
		return
	}

	h.record(r.Context(), identity, events.TypeRegistration, map[string]string{"status": "Account created."})
	respond.JSON(w, http.StatusCreated, dto.RegisterResponse{Message: "User registered.", UserID: identity.AuthUID, Created: true})
}

func (h *AuthHandler) handleLogin(w http.ResponseWriter, r *http.Request, identity models.Identity) {
	session, err := h.sessions.Issue(r.Context(), identity)
	if err != nil {
		fail(w, r, h.log, err)
		return
	}
	h.record(r.Context(), identity, events.TypeLogin, map[string]string{"status": "Successful authentication."})
	respond.JSON(w, http.StatusOK, dto.LoginResponse{
		Message:         "Access Granted",
		SessionUsername: session.Name,
		ExpiresAt:       session.ExpiresAt,
	})
}

func (h *AuthHandler) handleProfile(w http.ResponseWriter, _ *http.Request, identity models.Identity) {
	respond.JSON(w, http.StatusOK, dto.ProfileResponse{
		UserID:          identity.AuthUID,
		RegisteredSince: identity.CreatedAt,
	})
}

// record writes to the activity log. The primary action already succeeded, so
// a failure here is logged rather than returned.
func (h *AuthHandler) record(ctx context.Context, identity models.Identity, eventType string, details any) {
	if _, err := h.activity.Record(ctx, identity, eventType, details); err != nil {
		logging.FromContext(ctx, h.log).WithError(err).WithField("event_type", eventType).Warn("record activity failed")
	}
}
