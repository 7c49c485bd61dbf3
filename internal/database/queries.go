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

package database

const schema = `
	-- Create users table
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT NOT NULL UNIQUE,
		active BOOLEAN NOT NULL DEFAULT 1,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_users_email ON users(email);

	-- Accounts carry the cached balance; version guards concurrent writers
	CREATE TABLE IF NOT EXISTS accounts (
		id TEXT PRIMARY KEY,
		account_number TEXT NOT NULL UNIQUE,
		user_id TEXT NOT NULL REFERENCES users(id),
		account_type TEXT NOT NULL,
		balance TEXT NOT NULL DEFAULT '0',
		status TEXT NOT NULL DEFAULT 'ACTIVE',
		version INTEGER NOT NULL DEFAULT 1,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_accounts_user_id ON accounts(user_id);

	-- Transaction intents
	CREATE TABLE IF NOT EXISTS intents (
		id TEXT PRIMARY KEY,
		reference_number TEXT NOT NULL UNIQUE,
		user_id TEXT NOT NULL REFERENCES users(id),
		account_id TEXT NOT NULL REFERENCES accounts(id),
		intent_type TEXT NOT NULL,
		amount TEXT NOT NULL,
		payment_method TEXT NOT NULL,
		tranche TEXT NOT NULL DEFAULT '',
		term TEXT NOT NULL DEFAULT '',
		user_notes TEXT NOT NULL DEFAULT '',
		admin_notes TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		provider_transaction_id TEXT NOT NULL DEFAULT '',
		provider_status TEXT NOT NULL DEFAULT '',
		metadata TEXT NOT NULL DEFAULT '{}',
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL,
		payment_initiated_at TIMESTAMP,
		payment_completed_at TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_intents_account_status ON intents(account_id, status);
	CREATE INDEX IF NOT EXISTS idx_intents_user_id ON intents(user_id);
	CREATE INDEX IF NOT EXISTS idx_intents_status_created_at ON intents(status, created_at);
	`

const intentColumns = `
		i.id, i.reference_number, i.user_id, i.account_id, i.intent_type, i.amount, i.payment_method,
		i.tranche, i.term, i.user_notes, i.admin_notes, i.status, i.provider_transaction_id,
		i.provider_status, i.metadata, i.created_at, i.updated_at, i.payment_initiated_at,
		i.payment_completed_at`

const ownerColumns = `
		a.account_number, a.account_type, u.name, u.email`

const accountColumns = `
		a.id, a.account_number, a.user_id, a.account_type, a.balance, a.status, a.version,
		a.created_at, a.updated_at`

// An empty filter argument matches every row.
const intentFilterClause = `
		WHERE (? = '' OR i.user_id = ?)
		  AND (? = '' OR i.account_id = ?)
		  AND (? = '' OR i.status = ?)`

const (
	// User queries
	queryGetActiveUsers = `
		SELECT id, name, email, created_at, updated_at
		FROM users
		WHERE active = 1
		ORDER BY created_at`

	queryInsertUser = `
		INSERT OR IGNORE INTO users (id, name, email) VALUES (?, ?, ?)`

	queryGetUserById = `
		SELECT id, name, email, created_at, updated_at
		FROM users
		WHERE id = ? AND active = 1`

	queryGetUserByEmail = `
		SELECT id, name, email, created_at, updated_at
		FROM users
		WHERE email = ? AND active = 1`

	// Account queries
	queryInsertAccount = `
		INSERT INTO accounts (id, account_number, user_id, account_type, balance, status, version, created_at, updated_at)
		VALUES (?, ?, ?, ?, '0', ?, 1, ?, ?)`

	queryGetAccountById = `
		SELECT` + accountColumns + `
		FROM accounts a
		WHERE a.id = ?`

	queryListAccounts = `
		SELECT` + accountColumns + `, u.name, u.email
		FROM accounts a
		JOIN users u ON u.id = a.user_id
		ORDER BY a.created_at, a.id`

	queryUpdateAccountBalance = `
		UPDATE accounts
		SET balance = ?, version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?`

	// Intent queries
	queryInsertIntent = `
		INSERT INTO intents (
			id, reference_number, user_id, account_id, intent_type, amount, payment_method,
			tranche, term, user_notes, admin_notes, status, provider_transaction_id,
			provider_status, metadata, created_at, updated_at, payment_initiated_at,
			payment_completed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	queryGetIntentById = `
		SELECT` + intentColumns + `
		FROM intents i
		WHERE i.id = ?`

	queryGetIntentByReference = `
		SELECT` + intentColumns + `
		FROM intents i
		WHERE i.reference_number = ?`

	queryGetIntentWithOwnerById = `
		SELECT` + intentColumns + `,` + ownerColumns + `
		FROM intents i
		JOIN accounts a ON a.id = i.account_id
		JOIN users u ON u.id = i.user_id
		WHERE i.id = ?`

	queryGetIntentWithOwnerByReference = `
		SELECT` + intentColumns + `,` + ownerColumns + `
		FROM intents i
		JOIN accounts a ON a.id = i.account_id
		JOIN users u ON u.id = i.user_id
		WHERE i.reference_number = ?`

	queryListCompletedIntents = `
		SELECT` + intentColumns + `
		FROM intents i
		WHERE i.account_id = ? AND i.status = 'COMPLETED'
		ORDER BY i.created_at, i.id`

	queryListIntents = `
		SELECT` + intentColumns + `,` + ownerColumns + `
		FROM intents i
		JOIN accounts a ON a.id = i.account_id
		JOIN users u ON u.id = i.user_id` + intentFilterClause + `
		ORDER BY i.created_at DESC, i.id DESC
		LIMIT ? OFFSET ?`

	queryCountIntents = `
		SELECT COUNT(*)
		FROM intents i` + intentFilterClause

	queryCountIntentsByStatus = `
		SELECT i.status, COUNT(*)
		FROM intents i` + intentFilterClause + `
		GROUP BY i.status`

	queryListPendingIntentsBefore = `
		SELECT` + intentColumns + `
		FROM intents i
		WHERE i.status = 'PENDING' AND i.created_at < ?
		ORDER BY i.created_at
		LIMIT ?`

	queryUpdateIntent = `
		UPDATE intents
		SET admin_notes = ?, status = ?, provider_transaction_id = ?, provider_status = ?,
		    metadata = ?, updated_at = ?, payment_initiated_at = ?, payment_completed_at = ?
		WHERE id = ? AND status = ?`
)
