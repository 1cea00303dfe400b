package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/hongminglow/kaisurf-be/internal/http/respond"
	"github.com/hongminglow/kaisurf-be/internal/models"
	"github.com/hongminglow/kaisurf-be/internal/models/dto"
	"github.com/hongminglow/kaisurf-be/internal/rewards"
)

// RewardRules manages reward rule definitions.
type RewardRules interface {
	Set(ctx context.Context, rule models.RewardRule) (models.RewardRule, error)
	List(ctx context.Context) ([]models.RewardRule, error)
}

// RewardsHandler exposes the reward rule admin endpoints.
type RewardsHandler struct {
	rules RewardRules
	log   logrus.FieldLogger
}

func NewRewardsHandler(rules RewardRules, log logrus.FieldLogger) *RewardsHandler {
	return &RewardsHandler{rules: rules, log: log}
}

func (h *RewardsHandler) Register(r *mux.Router, gates Gates) {
	r.HandleFunc("/admin/rewards/set", gates.KonesSession.Then(h.handleSet)).Methods(http.MethodPost)
	r.HandleFunc("/admin/rewards", gates.KonesSession.Then(h.handleList)).Methods(http.MethodGet)
}

func (h *RewardsHandler) handleSet(w http.ResponseWriter, r *http.Request, _ models.Identity) {
	body, err := readJSON(w, r)
	if err != nil {
		fail(w, r, h.log, err)
		return
	}
	var req dto.RewardRuleRequest
	if err := json.Unmarshal(body, &req); err != nil {
		fail(w, r, h.log, rewards.ErrRuleAmount)
		return
	}
	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}

	saved, err := h.rules.Set(r.Context(), models.RewardRule{
		Name:        req.RuleName,
		KoneAmount:  req.KoneAmount,
		Description: req.Description,
		Active:      active,
	})
	if err != nil {
		fail(w, r, h.log, err)
		return
	}
	respond.JSON(w, http.StatusOK, dto.RewardRuleSaved{
		Message: fmt.Sprintf("Reward rule '%s' has been saved.", saved.Name),
		Rule:    saved,
	})
}

func (h *RewardsHandler) handleList(w http.ResponseWriter, r *http.Request, _ models.Identity) {
	rules, err := h.rules.List(r.Context())
	if err != nil {
		fail(w, r, h.log, err)
		return
	}
	if rules == nil {
		rules = []models.RewardRule{}
	}
	respond.JSON(w, http.StatusOK, rules)
}
