/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package models

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// CreateIntentRequest is the client payload for a new intent
type CreateIntentRequest struct {
	AccountId     string          `json:"accountId"`
	Type          string          `json:"type"`
	Amount        decimal.Decimal `json:"amount"`
	PaymentMethod string          `json:"paymentMethod"`
	Tranche       string          `json:"tranche,omitempty"`
	Term          string          `json:"term,omitempty"`
	Notes         string          `json:"notes,omitempty"`
}

// InitiatePaymentRequest marks an intent as handed off to the provider
type InitiatePaymentRequest struct {
	ProviderTransactionId string `json:"providerTransactionId,omitempty"`
}

// OverrideRequest is the admin payload for leaving a terminal state
type OverrideRequest struct {
	Status                string `json:"status"`
	Reason                string `json:"reason"`
	ProviderTransactionId string `json:"providerTransactionId,omitempty"`
}

// CallbackPayload is the provider webhook body. Amount is nullable so a
// missing field can be told apart from zero.
type CallbackPayload struct {
	TransactionId   string              `json:"transactionId"`
	Status          string              `json:"status"`
	Amount          decimal.NullDecimal `json:"amount"`
	ReferenceNumber string              `json:"referenceNumber"`
	CustomerInfo    json.RawMessage     `json:"customerInfo,omitempty"`
	Timestamp       string              `json:"timestamp,omitempty"`
}

// CallbackAck is returned to the provider on every processed callback
type CallbackAck struct {
	Success       bool         `json:"success"`
	TransactionId string       `json:"transactionId"`
	Status        IntentStatus `json:"status"`
	Message       string       `json:"message"`
}

// VerifyChallenge is the webhook registration handshake body
type VerifyChallenge struct {
	Challenge string `json:"challenge"`
}

// ErrorResponse is the structured error body of the HTTP surface
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// IntentView is the client facing projection of an intent
type IntentView struct {
	Id                    string          `json:"id"`
	ReferenceNumber       string          `json:"referenceNumber"`
	UserId                string          `json:"userId"`
	AccountId             string          `json:"accountId"`
	AccountNumber         string          `json:"accountNumber,omitempty"`
	AccountType           AccountType     `json:"accountType,omitempty"`
	OwnerName             string          `json:"ownerName,omitempty"`
	OwnerEmail            string          `json:"ownerEmail,omitempty"`
	Type                  IntentType      `json:"type"`
	Amount                decimal.Decimal `json:"amount"`
	PaymentMethod         string          `json:"paymentMethod"`
	Tranche               string          `json:"tranche,omitempty"`
	Term                  string          `json:"term,omitempty"`
	UserNotes             string          `json:"userNotes,omitempty"`
	AdminNotes            string          `json:"adminNotes,omitempty"`
	Status                IntentStatus    `json:"status"`
	ProviderTransactionId string          `json:"providerTransactionId,omitempty"`
	ProviderStatus        string          `json:"providerStatus,omitempty"`
	Metadata              *IntentMetadata `json:"metadata,omitempty"`
	CreatedAt             time.Time       `json:"createdAt"`
	UpdatedAt             time.Time       `json:"updatedAt"`
	PaymentInitiatedAt    *time.Time      `json:"paymentInitiatedAt,omitempty"`
	PaymentCompletedAt    *time.Time      `json:"paymentCompletedAt,omitempty"`
}

// NewIntentView projects an intent with its owner data. Admin notes and
// metadata are only included for administrators.
func NewIntentView(intent IntentWithOwner, admin bool) IntentView {
	view := IntentView{
		Id:                    intent.Id,
		ReferenceNumber:       intent.ReferenceNumber,
		UserId:                intent.UserId,
		AccountId:             intent.AccountId,
		AccountNumber:         intent.AccountNumber,
		AccountType:           intent.AccountType,
		OwnerName:             intent.OwnerName,
		OwnerEmail:            intent.OwnerEmail,
		Type:                  intent.Type,
		Amount:                intent.Amount,
		PaymentMethod:         intent.PaymentMethod,
		Tranche:               intent.Tranche,
		Term:                  intent.Term,
		UserNotes:             intent.UserNotes,
		Status:                intent.Status,
		ProviderTransactionId: intent.ProviderTransactionId,
		ProviderStatus:        intent.ProviderStatus,
		CreatedAt:             intent.CreatedAt,
		UpdatedAt:             intent.UpdatedAt,
		PaymentInitiatedAt:    intent.PaymentInitiatedAt,
		PaymentCompletedAt:    intent.PaymentCompletedAt,
	}
	if admin {
		view.AdminNotes = intent.AdminNotes
		metadata := intent.Metadata
		view.Metadata = &metadata
	}
	return view
}

// Pagination is the page metadata of a listing
type Pagination struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

// StatusCounts aggregates intents per lifecycle bucket for dashboards
type StatusCounts struct {
	Pending   int `json:"pending"`
	Initiated int `json:"initiated"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
	Cancelled int `json:"cancelled"`
}

// Add folds a per-status count into the matching bucket
func (c *StatusCounts) Add(status IntentStatus, count int) {
	switch status {
	case StatusPending:
		c.Pending += count
	case StatusProcessing:
		c.Initiated += count
	case StatusCompleted:
		c.Succeeded += count
	case StatusFailed:
		c.Failed += count
	case StatusCancelled:
		c.Cancelled += count
	}
}

// IntentListResponse is a page of intents
type IntentListResponse struct {
	Items      []IntentView `json:"items"`
	Pagination Pagination   `json:"pagination"`
	Counts     StatusCounts `json:"counts"`
}

// ReconciliationRow describes one corrected account
type ReconciliationRow struct {
	AccountId            string          `json:"accountId"`
	AccountNumber        string          `json:"accountNumber"`
	AccountType          AccountType     `json:"accountType"`
	Owner                string          `json:"owner"`
	OldBalance           decimal.Decimal `json:"oldBalance"`
	NewBalance           decimal.Decimal `json:"newBalance"`
	Difference           decimal.Decimal `json:"difference"`
	CompletedIntentCount int             `json:"completedIntentCount"`
}

// ReconciliationReport is the outcome of a reconciliation run
type ReconciliationReport struct {
	Rows            []ReconciliationRow `json:"rows"`
	TotalAccounts   int                 `json:"totalAccounts"`
	UpdatedAccounts int                 `json:"updatedAccounts"`
	DryRun          bool                `json:"dryRun"`
	Complete        bool                `json:"complete"`
	Interruption    string              `json:"interruption,omitempty"`
	StartedAt       time.Time           `json:"startedAt"`
	FinishedAt      time.Time           `json:"finishedAt"`
}

// IntentSummary is handed to the notification collaborator on completion
type IntentSummary struct {
	IntentId        string          `json:"intentId"`
	ReferenceNumber string          `json:"referenceNumber"`
	AccountId       string          `json:"accountId"`
	Type            IntentType      `json:"type"`
	Amount          decimal.Decimal `json:"amount"`
	Status          IntentStatus    `json:"status"`
	NewBalance      decimal.Decimal `json:"newBalance"`
	CompletedAt     time.Time       `json:"completedAt"`
}
