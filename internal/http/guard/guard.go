// Package guard composes the per-route authentication gates.
package guard

import (
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/hongminglow/kaisurf-be/internal/apperr"
	"github.com/hongminglow/kaisurf-be/internal/auth"
	"github.com/hongminglow/kaisurf-be/internal/http/respond"
	"github.com/hongminglow/kaisurf-be/internal/logging"
	"github.com/hongminglow/kaisurf-be/internal/metrics"
	"github.com/hongminglow/kaisurf-be/internal/models"
)

// Check admits or rejects a request without resolving an identity.
type Check interface {
	Check(r *http.Request) error
}

// CheckFunc adapts a function to Check.
type CheckFunc func(r *http.Request) error

func (f CheckFunc) Check(r *http.Request) error { return f(r) }

// Resolver turns a request into the caller's identity.
type Resolver interface {
	Resolve(r *http.Request) (models.Identity, error)
}

// Handler receives the identity resolved by the pipeline as a parameter.
type Handler func(w http.ResponseWriter, r *http.Request, identity models.Identity)

// Feature rejects every request with disabled while enabled returns false.
// The flag is read per request.
func Feature(enabled func() bool, disabled error) Check {
	return CheckFunc(func(*http.Request) error {
		if !enabled() {
			return disabled
		}
		return nil
	})
}

// Pipeline runs its checks in order, then its resolver. The first failure ends
// the request.
type Pipeline struct {
	checks   []Check
	resolver Resolver
	log      logrus.FieldLogger
	metrics  *metrics.Metrics
}

// New returns a pipeline resolving identities with resolver.
func New(log logrus.FieldLogger, m *metrics.Metrics, resolver Resolver, checks ...Check) Pipeline {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return Pipeline{checks: checks, resolver: resolver, log: log, metrics: m}
}

// Then wraps h.
func (p Pipeline) Then(h Handler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !p.admit(w, r) {
			return
		}
		identity, err := p.resolver.Resolve(r)
		if err != nil {
			p.reject(w, r, err)
			return
		}
		h(w, r, identity)
	}
}

// Public wraps a handler that needs the checks but no identity.
func (p Pipeline) Public(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if p.admit(w, r) {
			h(w, r)
		}
	}
}

func (p Pipeline) admit(w http.ResponseWriter, r *http.Request) bool {
	for _, c := range p.checks {
		if err := c.Check(r); err != nil {
			p.reject(w, r, err)
			return false
		}
	}
	return true
}

func (p Pipeline) reject(w http.ResponseWriter, r *http.Request, err error) {
	if apperr.KindOf(err) != apperr.KindDisabled {
		p.metrics.AuthFailed(auth.Reason(err))
	}
	respond.Problem(w, logging.FromContext(r.Context(), p.log), err)
}
