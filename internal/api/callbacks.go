package api

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"net/http"
	"strings"

	"savings-intents-go/internal/callback"
	"savings-intents-go/internal/models"
	"savings-intents-go/internal/store"

	"go.uber.org/zap"
)

const signatureHeader = "X-Callback-Signature"

// PaymentCallback applies a provider notification. Business failures that
// were committed are acknowledged with 200 and success=false so the provider
// stops redelivering; only transient store failures answer 5xx.
func (h *Handlers) PaymentCallback(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, r, err)
		return
	}

	if !h.validSignature(r.Header.Get(signatureHeader), body) {
		zap.L().Warn("Rejected callback with invalid signature",
			zap.String("remote_addr", r.RemoteAddr))
		writeJSON(w, http.StatusUnauthorized, models.ErrorResponse{
			Error:   "invalid_signature",
			Message: "callback signature does not match",
		})
		return
	}

	payload, err := callback.Parse(body)
	if err != nil {
		zap.L().Warn("Rejected malformed callback", zap.Error(err))
		writeError(w, r, err)
		return
	}

	result, err := h.callbacks.Apply(r.Context(), payload, body)
	if result == nil {
		if errors.Is(err, store.ErrUnknownReference) {
			zap.L().Warn("Callback for unknown reference",
				zap.String("reference", payload.ReferenceNumber),
				zap.String("provider_transaction_id", payload.TransactionId))
		}
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, models.CallbackAck{
		Success:       err == nil,
		TransactionId: payload.TransactionId,
		Status:        result.Status,
		Message:       result.Message,
	})
}

// VerifyCallback echoes the provider challenge, from the query string on GET
// or from the JSON body on POST.
func (h *Handlers) VerifyCallback(w http.ResponseWriter, r *http.Request) {
	var req models.VerifyChallenge
	if r.Method == http.MethodGet {
		req.Challenge = r.URL.Query().Get("challenge")
	} else if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	if req.Challenge == "" {
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{
			Error:   "validation_error",
			Message: "challenge is required",
		})
		return
	}
	writeJSON(w, http.StatusOK, req)
}

// validSignature accepts any body when no signing secret is configured
func (h *Handlers) validSignature(header string, body []byte) bool {
	if len(h.signingSecret) == 0 {
		return true
	}
	provided, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(header), "sha256="))
	if err != nil || len(provided) == 0 {
		return false
	}
	return hmac.Equal(provided, sign(h.signingSecret, body))
}

func sign(secret, body []byte) []byte {
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	return mac.Sum(nil)
}
