package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists wallets and transactions in PostgreSQL. Every
// operation runs in a single database transaction: the involved wallet rows
// are locked with SELECT ... FOR UPDATE in wallet-ID order, balances are
// validated against the locked rows, and the balance updates commit together
// with the transaction record. Serialization failures are retried a bounded
// number of times before surfacing as ErrConflict.
type PostgresStore struct {
	db       *pgxpool.Pool
	currency string
}

// NewPostgres constructs a Postgres-backed store using the given default
// currency for lazily created wallets.
func NewPostgres(db *pgxpool.Pool, currency string) *PostgresStore {
	return &PostgresStore{db: db, currency: currency}
}

const maxTxAttempts = 3

const walletColumns = `id, owner_user, owner_chama, balance, currency, created_at, updated_at`

const transactionColumns = `id, kind, amount, source_wallet, destination_wallet, status, description, client_tx_id, created_at`

func (s *PostgresStore) ResolveWallet(ctx context.Context, owner OwnerRef) (Wallet, error) {
	if err := owner.Validate(); err != nil {
		return Wallet{}, err
	}

	// Insert-if-absent against the partial unique index on the owner column
	// keeps concurrent first-time resolution down to a single row.
	if owner.UserID != "" {
		_, err := s.db.Exec(ctx, `INSERT INTO wallets (id, owner_user, balance, currency) VALUES ($1, $2, 0, $3)
            ON CONFLICT (owner_user) WHERE owner_user IS NOT NULL DO NOTHING`, uuid.New(), owner.UserID, s.currency)
		if err != nil {
			return Wallet{}, fmt.Errorf("create user wallet: %w", err)
		}
	} else {
		_, err := s.db.Exec(ctx, `INSERT INTO wallets (id, owner_chama, balance, currency) VALUES ($1, $2, 0, $3)
            ON CONFLICT (owner_chama) WHERE owner_chama IS NOT NULL DO NOTHING`, uuid.New(), owner.ChamaID, s.currency)
		if err != nil {
			return Wallet{}, fmt.Errorf("create chama wallet: %w", err)
		}
	}

	return s.LookupWallet(ctx, owner)
}

func (s *PostgresStore) LookupWallet(ctx context.Context, owner OwnerRef) (Wallet, error) {
	if err := owner.Validate(); err != nil {
		return Wallet{}, err
	}

	query := `SELECT ` + walletColumns + ` FROM wallets WHERE owner_user = $1`
	arg := owner.UserID
	if owner.ChamaID != "" {
		query = `SELECT ` + walletColumns + ` FROM wallets WHERE owner_chama = $1`
		arg = owner.ChamaID
	}

	row := s.db.QueryRow(ctx, query, arg)
	w, err := scanWallet(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Wallet{}, ErrNotFound
	}
	return w, err
}

func (s *PostgresStore) Deposit(ctx context.Context, destWalletID string, amount int64, clientTxID, description string) (Transaction, error) {
	if amount <= 0 {
		return Transaction{}, ErrInvalidAmount
	}

	return s.withRetry(ctx, func(tx pgx.Tx) (Transaction, error) {
		if t, err := findClientTx(ctx, tx, KindDeposit, clientTxID); err != nil {
			return t, err
		}
		if _, err := lockBalance(ctx, tx, destWalletID); err != nil {
			return Transaction{}, err
		}
		if err := adjustBalance(ctx, tx, destWalletID, amount); err != nil {
			return Transaction{}, err
		}
		t := Transaction{
			ID:                uuid.NewString(),
			Kind:              KindDeposit,
			Amount:            amount,
			DestinationWallet: destWalletID,
			Status:            StatusCompleted,
			Description:       description,
			ClientTxID:        clientTxID,
			CreatedAt:         time.Now().UTC(),
		}
		return t, insertTransaction(ctx, tx, t)
	})
}

func (s *PostgresStore) Withdraw(ctx context.Context, sourceWalletID string, amount int64, clientTxID, description string) (Transaction, error) {
	if amount <= 0 {
		return Transaction{}, ErrInvalidAmount
	}

	return s.withRetry(ctx, func(tx pgx.Tx) (Transaction, error) {
		if t, err := findClientTx(ctx, tx, KindWithdrawal, clientTxID); err != nil {
			return t, err
		}
		balance, err := lockBalance(ctx, tx, sourceWalletID)
		if err != nil {
			return Transaction{}, err
		}
		if balance < amount {
			return Transaction{}, ErrInsufficientFunds
		}
		if err := adjustBalance(ctx, tx, sourceWalletID, -amount); err != nil {
			return Transaction{}, err
		}
		t := Transaction{
			ID:           uuid.NewString(),
			Kind:         KindWithdrawal,
			Amount:       amount,
			SourceWallet: sourceWalletID,
			Status:       StatusCompleted,
			Description:  description,
			ClientTxID:   clientTxID,
			CreatedAt:    time.Now().UTC(),
		}
		return t, insertTransaction(ctx, tx, t)
	})
}

func (s *PostgresStore) Move(ctx context.Context, kind Kind, sourceWalletID, destWalletID string, amount int64, clientTxID, description string) (Transaction, error) {
	if amount <= 0 {
		return Transaction{}, ErrInvalidAmount
	}
	if sourceWalletID == destWalletID {
		return Transaction{}, ErrInvalidOperation
	}

	return s.withRetry(ctx, func(tx pgx.Tx) (Transaction, error) {
		if t, err := findClientTx(ctx, tx, kind, clientTxID); err != nil {
			return t, err
		}

		// Lock rows in wallet-ID order so opposing transfers between the same
		// pair cannot deadlock.
		first, second := sourceWalletID, destWalletID
		if second < first {
			first, second = second, first
		}
		balances := make(map[string]int64, 2)
		for _, id := range []string{first, second} {
			balance, err := lockBalance(ctx, tx, id)
			if err != nil {
				return Transaction{}, err
			}
			balances[id] = balance
		}

		if balances[sourceWalletID] < amount {
			return Transaction{}, ErrInsufficientFunds
		}
		if err := adjustBalance(ctx, tx, sourceWalletID, -amount); err != nil {
			return Transaction{}, err
		}
		if err := adjustBalance(ctx, tx, destWalletID, amount); err != nil {
			return Transaction{}, err
		}
		t := Transaction{
			ID:                uuid.NewString(),
			Kind:              kind,
			Amount:            amount,
			SourceWallet:      sourceWalletID,
			DestinationWallet: destWalletID,
			Status:            StatusCompleted,
			Description:       description,
			ClientTxID:        clientTxID,
			CreatedAt:         time.Now().UTC(),
		}
		return t, insertTransaction(ctx, tx, t)
	})
}

func (s *PostgresStore) Transaction(ctx context.Context, id string) (Transaction, error) {
	txID, err := uuid.Parse(id)
	if err != nil {
		return Transaction{}, ErrNotFound
	}
	row := s.db.QueryRow(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE id = $1`, txID)
	t, err := scanTransaction(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Transaction{}, ErrNotFound
	}
	return t, err
}

func (s *PostgresStore) ListTransactions(ctx context.Context, walletID string, page Page) ([]Transaction, string, error) {
	limit := page.limit()

	var rows pgx.Rows
	var err error
	if page.Cursor == "" {
		rows, err = s.db.Query(ctx, `SELECT `+transactionColumns+` FROM transactions
            WHERE source_wallet = $1 OR destination_wallet = $1
            ORDER BY created_at DESC, id DESC
            LIMIT $2`, walletID, limit+1)
	} else {
		cursorAt, cursorID, decodeErr := decodeCursor(page.Cursor)
		if decodeErr != nil {
			return nil, "", decodeErr
		}
		rows, err = s.db.Query(ctx, `SELECT `+transactionColumns+` FROM transactions
            WHERE (source_wallet = $1 OR destination_wallet = $1)
              AND (created_at, id) < ($2, $3)
            ORDER BY created_at DESC, id DESC
            LIMIT $4`, walletID, cursorAt, cursorID, limit+1)
	}
	if err != nil {
		return nil, "", err
	}
	defer rows.Close()

	var out []Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, "", err
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, "", err
	}

	next := ""
	if len(out) > limit {
		out = out[:limit]
		next = encodeCursor(out[limit-1])
	}
	return out, next, nil
}

func (s *PostgresStore) RecordFailure(ctx context.Context, t Transaction) (Transaction, error) {
	t.ID = uuid.NewString()
	t.Status = StatusFailed
	t.CreatedAt = time.Now().UTC()

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Transaction{}, err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	if err := insertTransaction(ctx, tx, t); err != nil {
		return Transaction{}, err
	}
	return t, tx.Commit(ctx)
}

// withRetry runs fn in a database transaction, committing on success and
// retrying transient serialization failures up to maxTxAttempts times.
func (s *PostgresStore) withRetry(ctx context.Context, fn func(pgx.Tx) (Transaction, error)) (Transaction, error) {
	var lastErr error
	for attempt := 0; attempt < maxTxAttempts; attempt++ {
		t, err := s.inTx(ctx, fn)
		if err == nil {
			return t, nil
		}
		if mapped, retry := classify(err); !retry {
			return t, mapped
		}
		lastErr = err
	}
	return Transaction{}, fmt.Errorf("%w: %v", ErrConflict, lastErr)
}

func (s *PostgresStore) inTx(ctx context.Context, fn func(pgx.Tx) (Transaction, error)) (Transaction, error) {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Transaction{}, err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	t, err := fn(tx)
	if err != nil {
		return t, err
	}
	return t, tx.Commit(ctx)
}

// classify maps storage errors to domain errors and reports whether the
// failed transaction should be retried.
func classify(err error) (error, bool) {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err, false
	}
	switch pgErr.Code {
	case "40001", "40P01": // serialization_failure, deadlock_detected
		return err, true
	case "23505": // unique_violation
		if strings.Contains(pgErr.ConstraintName, "client_tx") {
			// Concurrent submission of the same client tx id: the retry will
			// find the committed record and return it as a duplicate.
			return err, true
		}
		return fmt.Errorf("%w: %v", ErrConflict, err), false
	case "23514": // check_violation, balance >= 0
		return ErrInsufficientFunds, false
	}
	return err, false
}

func findClientTx(ctx context.Context, tx pgx.Tx, kind Kind, clientTxID string) (Transaction, error) {
	if clientTxID == "" {
		return Transaction{}, nil
	}
	row := tx.QueryRow(ctx, `SELECT `+transactionColumns+` FROM transactions
        WHERE kind = $1 AND client_tx_id = $2 AND status = $3`, string(kind), clientTxID, StatusCompleted)
	t, err := scanTransaction(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Transaction{}, nil
	}
	if err != nil {
		return Transaction{}, err
	}
	return t, ErrDuplicateTransaction
}

func lockBalance(ctx context.Context, tx pgx.Tx, walletID string) (int64, error) {
	var balance int64
	err := tx.QueryRow(ctx, `SELECT balance FROM wallets WHERE id = $1 FOR UPDATE`, walletID).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("lock wallet %s: %w", walletID, err)
	}
	return balance, nil
}

func adjustBalance(ctx context.Context, tx pgx.Tx, walletID string, delta int64) error {
	_, err := tx.Exec(ctx, `UPDATE wallets SET balance = balance + $2, updated_at = now() WHERE id = $1`, walletID, delta)
	if err != nil {
		return fmt.Errorf("adjust wallet %s: %w", walletID, err)
	}
	return nil
}

func insertTransaction(ctx context.Context, tx pgx.Tx, t Transaction) error {
	var source, dest, clientTxID *string
	if t.SourceWallet != "" {
		source = &t.SourceWallet
	}
	if t.DestinationWallet != "" {
		dest = &t.DestinationWallet
	}
	if t.ClientTxID != "" {
		clientTxID = &t.ClientTxID
	}
	_, err := tx.Exec(ctx, `INSERT INTO transactions (`+transactionColumns+`)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		t.ID, string(t.Kind), t.Amount, source, dest, t.Status, t.Description, clientTxID, t.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanWallet(row rowScanner) (Wallet, error) {
	var w Wallet
	var id uuid.UUID
	var ownerUser, ownerChama *string
	if err := row.Scan(&id, &ownerUser, &ownerChama, &w.Balance, &w.Currency, &w.CreatedAt, &w.UpdatedAt); err != nil {
		return Wallet{}, err
	}
	w.ID = id.String()
	if ownerUser != nil {
		w.OwnerUser = *ownerUser
	}
	if ownerChama != nil {
		w.OwnerChama = *ownerChama
	}
	w.CreatedAt = w.CreatedAt.UTC()
	w.UpdatedAt = w.UpdatedAt.UTC()
	return w, nil
}

func scanTransaction(row rowScanner) (Transaction, error) {
	var t Transaction
	var id uuid.UUID
	var source, dest *uuid.UUID
	var clientTxID *string
	if err := row.Scan(&id, &t.Kind, &t.Amount, &source, &dest, &t.Status, &t.Description, &clientTxID, &t.CreatedAt); err != nil {
		return Transaction{}, err
	}
	t.ID = id.String()
	if source != nil {
		t.SourceWallet = source.String()
	}
	if dest != nil {
		t.DestinationWallet = dest.String()
	}
	if clientTxID != nil {
		t.ClientTxID = *clientTxID
	}
	t.CreatedAt = t.CreatedAt.UTC()
	return t, nil
}
