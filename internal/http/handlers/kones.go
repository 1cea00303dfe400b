package handlers

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"

	"github.com/hongminglow/kaisurf-be/internal/apperr"
	"github.com/hongminglow/kaisurf-be/internal/http/respond"
	"github.com/hongminglow/kaisurf-be/internal/ledger"
	"github.com/hongminglow/kaisurf-be/internal/models"
	"github.com/hongminglow/kaisurf-be/internal/models/dto"
)

var errDescriptionType = apperr.New(apperr.KindValidation, "Description must be a string.")

// Wallet is the ledger surface the Kones endpoints use.
type Wallet interface {
	Credit(ctx context.Context, identity models.Identity, amount int64, description string) (ledger.CreditResult, error)
	Balance(ctx context.Context, identity models.Identity) (models.Balance, error)
	History(ctx context.Context, identity models.Identity) ([]models.LedgerEntry, error)
}

// KonesHandler serves crediting and the wallet views.
type KonesHandler struct {
	wallet Wallet
	log    logrus.FieldLogger
}

func NewKonesHandler(wallet Wallet, log logrus.FieldLogger) *KonesHandler {
	return &KonesHandler{wallet: wallet, log: log}
}

func (h *KonesHandler) Register(r *mux.Router, gates Gates) {
	r.HandleFunc("/earn/kones", gates.KonesTrustedBearer.Then(h.handleEarn)).Methods(http.MethodPost)
	r.HandleFunc("/kones/balance", gates.KonesSession.Then(h.handleBalance)).Methods(http.MethodGet)
	r.HandleFunc("/kones/ledger", gates.KonesSession.Then(h.handleLedger)).Methods(http.MethodGet)
}

func (h *KonesHandler) handleEarn(w http.ResponseWriter, r *http.Request, identity models.Identity) {
	body, err := readJSON(w, r)
	if err != nil {
		fail(w, r, h.log, err)
		return
	}
	fields := gjson.GetManyBytes(body, "amount", "description")
	rawAmount, rawDescription := fields[0], fields[1]
	if !rawAmount.Exists() || !rawDescription.Exists() {
		fail(w, r, h.log, ledger.ErrMissingFields)
		return
	}
	amount, err := ledger.ParseAmount(rawAmount)
	if err != nil {
		fail(w, r, h.log, err)
		return
	}
	if rawDescription.Type != gjson.String {
		fail(w, r, h.log, errDescriptionType)
		return
	}

	res, err := h.wallet.Credit(r.Context(), identity, amount, rawDescription.String())
	if err != nil {
		fail(w, r, h.log, err)
		return
	}
	respond.JSON(w, http.StatusOK, dto.EarnResponse{
		Message:    fmt.Sprintf("Successfully added %d Kones.", amount),
		NewBalance: res.Balance.Balance,
	})
}

func (h *KonesHandler) handleBalance(w http.ResponseWriter, r *http.Request, identity models.Identity) {
	balance, err := h.wallet.Balance(r.Context(), identity)
	if err != nil {
		fail(w, r, h.log, err)
		return
	}
	respond.JSON(w, http.StatusOK, dto.BalanceResponse{UserID: identity.AuthUID, KoneBalance: balance.Balance})
}

func (h *KonesHandler) handleLedger(w http.ResponseWriter, r *http.Request, identity models.Identity) {
	entries, err := h.wallet.History(r.Context(), identity)
	if err != nil {
		fail(w, r, h.log, err)
		return
	}
	items := make([]dto.LedgerItem, 0, len(entries))
	for _, e := range entries {
		items = append(items, dto.LedgerItem{
			Timestamp:   e.CreatedAt,
			Type:        e.Type,
			Amount:      e.Amount,
			Description: e.Description,
		})
	}
	respond.JSON(w, http.StatusOK, items)
}
