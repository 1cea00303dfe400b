package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"

	"github.com/hongminglow/kaisurf-be/internal/apperr"
	"github.com/hongminglow/kaisurf-be/internal/http/guard"
	"github.com/hongminglow/kaisurf-be/internal/http/respond"
	"github.com/hongminglow/kaisurf-be/internal/logging"
)

// MaxBodyBytes caps request bodies.
const MaxBodyBytes = 1 << 20

var (
	errInvalidJSON  = apperr.New(apperr.KindValidation, "invalid JSON payload")
	errBodyTooLarge = apperr.New(apperr.KindValidation, "request body too large")
)

// Gates are the guard pipelines routes are composed from.
type Gates struct {
	// Bearer resolves the caller from a bearer token.
	Bearer guard.Pipeline
	// Trusted only checks the shared service key.
	Trusted guard.Pipeline
	// TrustedBearer checks the service key, then resolves the bearer token.
	TrustedBearer guard.Pipeline
	// Session resolves the caller from the session header.
	Session guard.Pipeline
	// KonesTrustedBearer is TrustedBearer behind the rewards flag.
	KonesTrustedBearer guard.Pipeline
	// KonesSession is Session behind the rewards flag.
	KonesSession guard.Pipeline
}

// readJSON reads a JSON object body of at most MaxBodyBytes.
func readJSON(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, errBodyTooLarge
		}
		return nil, errInvalidJSON
	}
	if !gjson.ValidBytes(body) || !gjson.ParseBytes(body).IsObject() {
		return nil, errInvalidJSON
	}
	return body, nil
}

func fail(w http.ResponseWriter, r *http.Request, log logrus.FieldLogger, err error) {
	respond.Problem(w, logging.FromContext(r.Context(), log), err)
}
