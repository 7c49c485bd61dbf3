package postgres

const schema = `
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT NOT NULL UNIQUE,
		active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS accounts (
		id TEXT PRIMARY KEY,
		account_number TEXT NOT NULL UNIQUE,
		user_id TEXT NOT NULL REFERENCES users(id),
		account_type TEXT NOT NULL,
		balance NUMERIC NOT NULL DEFAULT 0,
		status TEXT NOT NULL DEFAULT 'ACTIVE',
		version BIGINT NOT NULL DEFAULT 1,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_accounts_user_id ON accounts(user_id);

	CREATE TABLE IF NOT EXISTS intents (
		id TEXT PRIMARY KEY,
		reference_number TEXT NOT NULL UNIQUE,
		user_id TEXT NOT NULL REFERENCES users(id),
		account_id TEXT NOT NULL REFERENCES accounts(id),
		intent_type TEXT NOT NULL,
		amount NUMERIC NOT NULL CHECK (amount > 0),
		payment_method TEXT NOT NULL,
		tranche TEXT NOT NULL DEFAULT '',
		term TEXT NOT NULL DEFAULT '',
		user_notes TEXT NOT NULL DEFAULT '',
		admin_notes TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		provider_transaction_id TEXT NOT NULL DEFAULT '',
		provider_status TEXT NOT NULL DEFAULT '',
		metadata JSONB NOT NULL DEFAULT '{}',
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL,
		payment_initiated_at TIMESTAMPTZ,
		payment_completed_at TIMESTAMPTZ
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

const intentFilterClause = `
		WHERE ($1 = '' OR i.user_id = $1)
		  AND ($2 = '' OR i.account_id = $2)
		  AND ($3 = '' OR i.status = $3)`

const (
	queryGetActiveUsers = `
		SELECT id, name, email, created_at, updated_at
		FROM users
		WHERE active
		ORDER BY created_at`

	queryInsertUser = `
		INSERT INTO users (id, name, email) VALUES ($1, $2, $3)
		ON CONFLICT DO NOTHING`

	queryGetUserById = `
		SELECT id, name, email, created_at, updated_at
		FROM users
		WHERE id = $1 AND active`

	queryGetUserByEmail = `
		SELECT id, name, email, created_at, updated_at
		FROM users
		WHERE email = $1 AND active`

	queryInsertAccount = `
		INSERT INTO accounts (id, account_number, user_id, account_type, balance, status, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, 0, $5, 1, $6, $6)`

	queryGetAccountById = `
		SELECT` + accountColumns + `
		FROM accounts a
		WHERE a.id = $1`

	// Row lock held until the unit of work ends
	queryLockAccountById = queryGetAccountById + `
		FOR UPDATE`

	queryListAccounts = `
		SELECT` + accountColumns + `, u.name, u.email
		FROM accounts a
		JOIN users u ON u.id = a.user_id
		ORDER BY a.created_at, a.id`

	queryUpdateAccountBalance = `
		UPDATE accounts
		SET balance = $1, version = version + 1, updated_at = NOW()
		WHERE id = $2 AND version = $3`

	queryInsertIntent = `
		INSERT INTO intents (
			id, reference_number, user_id, account_id, intent_type, amount, payment_method,
			tranche, term, user_notes, admin_notes, status, provider_transaction_id,
			provider_status, metadata, created_at, updated_at, payment_initiated_at,
			payment_completed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)`

	queryLockIntentById = `
		SELECT` + intentColumns + `
		FROM intents i
		WHERE i.id = $1
		FOR UPDATE`

	queryLockIntentByReference = `
		SELECT` + intentColumns + `
		FROM intents i
		WHERE i.reference_number = $1
		FOR UPDATE`

	queryGetIntentWithOwnerById = `
		SELECT` + intentColumns + `,` + ownerColumns + `
		FROM intents i
		JOIN accounts a ON a.id = i.account_id
		JOIN users u ON u.id = i.user_id
		WHERE i.id = $1`

	queryGetIntentWithOwnerByReference = `
		SELECT` + intentColumns + `,` + ownerColumns + `
		FROM intents i
		JOIN accounts a ON a.id = i.account_id
		JOIN users u ON u.id = i.user_id
		WHERE i.reference_number = $1`

	queryListCompletedIntents = `
		SELECT` + intentColumns + `
		FROM intents i
		WHERE i.account_id = $1 AND i.status = 'COMPLETED'
		ORDER BY i.created_at, i.id`

	queryListIntents = `
		SELECT` + intentColumns + `,` + ownerColumns + `
		FROM intents i
		JOIN accounts a ON a.id = i.account_id
		JOIN users u ON u.id = i.user_id` + intentFilterClause + `
		ORDER BY i.created_at DESC, i.id DESC
		LIMIT $4 OFFSET $5`

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
		WHERE i.status = 'PENDING' AND i.created_at < $1
		ORDER BY i.created_at
		LIMIT $2`

	queryUpdateIntent = `
		UPDATE intents
		SET admin_notes = $1, status = $2, provider_transaction_id = $3, provider_status = $4,
		    metadata = $5, updated_at = $6, payment_initiated_at = $7, payment_completed_at = $8
		WHERE id = $9 AND status = $10`
)
