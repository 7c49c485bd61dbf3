package api

import (
	"net/http"
	"strconv"

	"savings-intents-go/internal/intent"
	"savings-intents-go/internal/models"
	"savings-intents-go/internal/query"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// CreateIntent registers a new PENDING intent for the caller
func (h *Handlers) CreateIntent(w http.ResponseWriter, r *http.Request) {
	principal := principalFrom(r)

	var req models.CreateIntentRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	in, err := h.intents.Create(r.Context(), intent.CreateParams{
		UserId:        principal.UserId,
		AccountId:     req.AccountId,
		Type:          req.Type,
		Amount:        req.Amount,
		PaymentMethod: req.PaymentMethod,
		Tranche:       req.Tranche,
		Term:          req.Term,
		Notes:         req.Notes,
	})
	if err != nil {
		zap.L().Warn("Intent creation rejected",
			zap.String("user_id", principal.UserId),
			zap.String("account_id", req.AccountId),
			zap.String("amount", req.Amount.String()),
			zap.Error(err))
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, viewOf(in, principal))
}

func (h *Handlers) GetIntent(w http.ResponseWriter, r *http.Request) {
	principal := principalFrom(r)
	in, err := h.queries.GetById(r.Context(), principal, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, models.NewIntentView(*in, principal.IsAdmin()))
}

func (h *Handlers) GetIntentByReference(w http.ResponseWriter, r *http.Request) {
	principal := principalFrom(r)
	in, err := h.queries.GetByReference(r.Context(), principal, chi.URLParam(r, "reference"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, models.NewIntentView(*in, principal.IsAdmin()))
}

// ListIntents accepts status, page, limit and, for admins, userId and accountId
func (h *Handlers) ListIntents(w http.ResponseWriter, r *http.Request) {
	values := r.URL.Query()
	params := query.ListParams{
		Status:    values.Get("status"),
		UserId:    values.Get("userId"),
		AccountId: values.Get("accountId"),
		Page:      atoiOrZero(values.Get("page")),
		Limit:     atoiOrZero(values.Get("limit")),
	}

	response, err := h.queries.List(r.Context(), principalFrom(r), params)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, response)
}

func (h *Handlers) InitiatePayment(w http.ResponseWriter, r *http.Request) {
	principal := principalFrom(r)

	var req models.InitiatePaymentRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	in, err := h.intents.MarkPaymentInitiated(r.Context(), principal, chi.URLParam(r, "id"), req.ProviderTransactionId)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(in, principal))
}

func (h *Handlers) CancelIntent(w http.ResponseWriter, r *http.Request) {
	principal := principalFrom(r)

	var req struct {
		Reason string `json:"reason"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	in, err := h.intents.Cancel(r.Context(), principal, chi.URLParam(r, "id"), req.Reason)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(in, principal))
}

func viewOf(in *models.Intent, principal models.Principal) models.IntentView {
	return models.NewIntentView(models.IntentWithOwner{Intent: *in}, principal.IsAdmin())
}

// Invalid numbers fall back to the paging defaults
func atoiOrZero(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}
