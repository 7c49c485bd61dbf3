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
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// IntentStatus is the lifecycle state of a transaction intent
type IntentStatus string

const (
	StatusPending    IntentStatus = "PENDING"
	StatusProcessing IntentStatus = "PROCESSING"
	StatusCompleted  IntentStatus = "COMPLETED"
	StatusFailed     IntentStatus = "FAILED"
	StatusCancelled  IntentStatus = "CANCELLED"
)

// AllIntentStatuses lists every status in lifecycle order.
var AllIntentStatuses = []IntentStatus{
	StatusPending,
	StatusProcessing,
	StatusCompleted,
	StatusFailed,
	StatusCancelled,
}

// intentTransitions is the automatic state graph. Terminal states have no
// outbound edges; leaving them requires an admin override.
var intentTransitions = map[IntentStatus][]IntentStatus{
	StatusPending:    {StatusProcessing, StatusCompleted, StatusFailed, StatusCancelled},
	StatusProcessing: {StatusCompleted, StatusFailed, StatusCancelled},
}

func ParseIntentStatus(value string) (IntentStatus, error) {
	normalized := strings.ToUpper(strings.TrimSpace(value))
	if normalized == "CANCELED" {
		normalized = string(StatusCancelled)
	}
	for _, status := range AllIntentStatuses {
		if string(status) == normalized {
			return status, nil
		}
	}
	return "", fmt.Errorf("unknown intent status %q", value)
}

// IsTerminal reports whether no automatic transition may leave this status
func (s IntentStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// CanTransitionTo reports whether next is reachable from s in one automatic step
func (s IntentStatus) CanTransitionTo(next IntentStatus) bool {
	for _, candidate := range intentTransitions[s] {
		if candidate == next {
			return true
		}
	}
	return false
}

// IntentType is the kind of money movement an intent records
type IntentType string

const (
	IntentDeposit    IntentType = "DEPOSIT"
	IntentInvestment IntentType = "INVESTMENT"
	IntentWithdrawal IntentType = "WITHDRAWAL"
)

func ParseIntentType(value string) (IntentType, error) {
	switch IntentType(strings.ToUpper(strings.TrimSpace(value))) {
	case IntentDeposit:
		return IntentDeposit, nil
	case IntentInvestment:
		return IntentInvestment, nil
	case IntentWithdrawal:
		return IntentWithdrawal, nil
	}
	return "", fmt.Errorf("unknown intent type %q", value)
}

// IsDebit reports whether a completed intent of this type reduces the balance
func (t IntentType) IsDebit() bool {
	return t == IntentWithdrawal
}

// SignedAmount returns the ledger contribution of amount for this type.
// INVESTMENT credits the same balance as DEPOSIT.
func (t IntentType) SignedAmount(amount decimal.Decimal) decimal.Decimal {
	if t.IsDebit() {
		return amount.Neg()
	}
	return amount
}

// ReferencePrefix is the human-readable prefix used in reference numbers
func (t IntentType) ReferencePrefix() string {
	switch t {
	case IntentInvestment:
		return "INV"
	case IntentWithdrawal:
		return "WDR"
	default:
		return "DEP"
	}
}

// AccountType is the product an account was opened for
type AccountType string

const (
	AccountPrimarySavings AccountType = "PRIMARY_SAVINGS"
	AccountBondInvestment AccountType = "BOND_INVESTMENT"
)

func ParseAccountType(value string) (AccountType, error) {
	normalized := strings.ToUpper(strings.TrimSpace(value))
	normalized = strings.ReplaceAll(normalized, "-", "_")
	switch AccountType(normalized) {
	case AccountPrimarySavings:
		return AccountPrimarySavings, nil
	case AccountBondInvestment:
		return AccountBondInvestment, nil
	}
	return "", fmt.Errorf("unknown account type %q", value)
}

// AccountStatus is the operational state of an account
type AccountStatus string

const (
	AccountActive    AccountStatus = "ACTIVE"
	AccountInactive  AccountStatus = "INACTIVE"
	AccountSuspended AccountStatus = "SUSPENDED"
)

func ParseAccountStatus(value string) (AccountStatus, error) {
	switch AccountStatus(strings.ToUpper(strings.TrimSpace(value))) {
	case AccountActive:
		return AccountActive, nil
	case AccountInactive:
		return AccountInactive, nil
	case AccountSuspended:
		return AccountSuspended, nil
	}
	return "", fmt.Errorf("unknown account status %q", value)
}

// ProviderStatus is the normalized vocabulary of payment provider callbacks
type ProviderStatus string

const (
	ProviderSuccess   ProviderStatus = "success"
	ProviderCompleted ProviderStatus = "completed"
	ProviderFailed    ProviderStatus = "failed"
	ProviderError     ProviderStatus = "error"
	ProviderCancelled ProviderStatus = "cancelled"
	ProviderUnknown   ProviderStatus = "unknown"
)

// providerStatusAliases folds spelling variants onto the canonical vocabulary
var providerStatusAliases = map[string]ProviderStatus{
	"success":   ProviderSuccess,
	"completed": ProviderCompleted,
	"failed":    ProviderFailed,
	"error":     ProviderError,
	"cancelled": ProviderCancelled,
	"canceled":  ProviderCancelled,
}

// providerStatusTable maps provider vocabulary to intent states.
// Anything not listed leaves the intent PENDING.
var providerStatusTable = map[ProviderStatus]IntentStatus{
	ProviderSuccess:   StatusCompleted,
	ProviderCompleted: StatusCompleted,
	ProviderFailed:    StatusFailed,
	ProviderError:     StatusFailed,
	ProviderCancelled: StatusCancelled,
}

// ParseProviderStatus normalizes a raw provider status string (case-insensitive)
func ParseProviderStatus(raw string) ProviderStatus {
	if status, ok := providerStatusAliases[strings.ToLower(strings.TrimSpace(raw))]; ok {
		return status
	}
	return ProviderUnknown
}

// IntentStatus returns the internal state this provider status maps to
func (p ProviderStatus) IntentStatus() IntentStatus {
	if status, ok := providerStatusTable[p]; ok {
		return status
	}
	return StatusPending
}
