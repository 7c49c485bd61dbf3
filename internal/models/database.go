package models

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// User represents a platform user (registration and KYC live elsewhere)
type User struct {
	Id        string    `db:"id"`
	Name      string    `db:"name"`
	Email     string    `db:"email"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// Account holds the cached balance of one savings or investment product.
// Balance is a cache of the signed sum of the account's COMPLETED intents.
type Account struct {
	Id            string          `db:"id"`
	AccountNumber string          `db:"account_number"`
	UserId        string          `db:"user_id"`
	AccountType   AccountType     `db:"account_type"`
	Balance       decimal.Decimal `db:"balance"`
	Status        AccountStatus   `db:"status"`
	Version       int64           `db:"version"`
	CreatedAt     time.Time       `db:"created_at"`
	UpdatedAt     time.Time       `db:"updated_at"`
}

// AccountSummary is an account joined with its owner
type AccountSummary struct {
	Account
	OwnerName  string `db:"owner_name"`
	OwnerEmail string `db:"owner_email"`
}

// Intent is a recorded request to move money through a payment provider
type Intent struct {
	Id                    string          `db:"id"`
	ReferenceNumber       string          `db:"reference_number"`
	UserId                string          `db:"user_id"`
	AccountId             string          `db:"account_id"`
	Type                  IntentType      `db:"intent_type"`
	Amount                decimal.Decimal `db:"amount"`
	PaymentMethod         string          `db:"payment_method"`
	Tranche               string          `db:"tranche"`
	Term                  string          `db:"term"`
	UserNotes             string          `db:"user_notes"`
	AdminNotes            string          `db:"admin_notes"`
	Status                IntentStatus    `db:"status"`
	ProviderTransactionId string          `db:"provider_transaction_id"`
	ProviderStatus        string          `db:"provider_status"`
	Metadata              IntentMetadata  `db:"metadata"`
	CreatedAt             time.Time       `db:"created_at"`
	UpdatedAt             time.Time       `db:"updated_at"`
	PaymentInitiatedAt    *time.Time      `db:"payment_initiated_at"`
	PaymentCompletedAt    *time.Time      `db:"payment_completed_at"`
}

// IntentMetadata is stored as a JSON document alongside the intent
type IntentMetadata struct {
	Trail     []StatusChange   `json:"trail,omitempty"`
	Callbacks []CallbackRecord `json:"callbacks,omitempty"`
}

// StatusChange is one entry of the intent's audit trail
type StatusChange struct {
	From     IntentStatus `json:"from"`
	To       IntentStatus `json:"to"`
	Actor    string       `json:"actor"`
	Reason   string       `json:"reason,omitempty"`
	Override bool         `json:"override,omitempty"`
	At       time.Time    `json:"at"`
}

// CallbackRecord keeps a provider notification for replay and debugging
type CallbackRecord struct {
	ReceivedAt            time.Time       `json:"received_at"`
	ProviderTransactionId string          `json:"provider_transaction_id"`
	ProviderStatus        string          `json:"provider_status"`
	MappedStatus          IntentStatus    `json:"mapped_status"`
	Outcome               string          `json:"outcome"`
	Payload               json.RawMessage `json:"payload,omitempty"`
}

// IntentWithOwner is an intent joined with minimal account and user projections
type IntentWithOwner struct {
	Intent
	AccountNumber string      `db:"account_number"`
	AccountType   AccountType `db:"account_type"`
	OwnerName     string      `db:"owner_name"`
	OwnerEmail    string      `db:"owner_email"`
}

// AppendAdminNote adds a line to the admin notes
func (i *Intent) AppendAdminNote(note string) {
	if note == "" {
		return
	}
	if i.AdminNotes == "" {
		i.AdminNotes = note
		return
	}
	i.AdminNotes = i.AdminNotes + "\n" + note
}

// SignedAmount is the contribution of this intent to its account balance once COMPLETED
func (i *Intent) SignedAmount() decimal.Decimal {
	return i.Type.SignedAmount(i.Amount)
}
