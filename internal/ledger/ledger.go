package ledger

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrNotFound occurs when a referenced owner has no wallet or a
	// transaction identifier does not resolve.
	ErrNotFound = errors.New("not found")

	// ErrInvalidAmount occurs when an operation amount is zero or negative.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrInsufficientFunds occurs when a debit would drive a wallet balance
	// below zero.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrInvalidOperation occurs when the operation shape is malformed, for
	// example a self-transfer or a transfer missing its destination.
	ErrInvalidOperation = errors.New("invalid operation")

	// ErrConflict indicates a concurrent mutation could not be resolved by
	// the store's bounded retry.
	ErrConflict = errors.New("conflict")

	// ErrDuplicateTransaction indicates the provided client transaction
	// identifier already exists and the original record is being returned.
	ErrDuplicateTransaction = errors.New("duplicate transaction")
)

// Kind enumerates the balance-affecting operation types.
type Kind string

const (
	KindDeposit      Kind = "deposit"
	KindWithdrawal   Kind = "withdrawal"
	KindTransfer     Kind = "transfer"
	KindContribution Kind = "contribution"
)

// Valid reports whether the kind is one of the four supported operations.
func (k Kind) Valid() bool {
	switch k {
	case KindDeposit, KindWithdrawal, KindTransfer, KindContribution:
		return true
	}
	return false
}

// Transaction statuses.
const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// OwnerRef identifies the logical owner of a wallet: exactly one of UserID or
// ChamaID must be set.
type OwnerRef struct {
	UserID  string
	ChamaID string
}

// Validate enforces the exactly-one-owner rule.
func (o OwnerRef) Validate() error {
	if (o.UserID == "") == (o.ChamaID == "") {
		return fmt.Errorf("%w: owner must reference exactly one user or chama", ErrInvalidOperation)
	}
	return nil
}

// IsZero reports whether no owner reference is set.
func (o OwnerRef) IsZero() bool {
	return o.UserID == "" && o.ChamaID == ""
}

// Key returns a stable string form used for indexing and event payloads.
func (o OwnerRef) Key() string {
	if o.ChamaID != "" {
		return "chama:" + o.ChamaID
	}
	return "user:" + o.UserID
}

// Equal reports whether two references name the same owner.
func (o OwnerRef) Equal(other OwnerRef) bool {
	return o.UserID == other.UserID && o.ChamaID == other.ChamaID
}

// Wallet is a balance-holding account owned by exactly one user or one chama.
// Balances are integers in minor currency units.
type Wallet struct {
	ID         string
	OwnerUser  string
	OwnerChama string
	Balance    int64
	Currency   string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Owner returns the wallet's owner reference.
func (w Wallet) Owner() OwnerRef {
	return OwnerRef{UserID: w.OwnerUser, ChamaID: w.OwnerChama}
}

// Transaction is an immutable record of one balance-affecting operation.
// Corrections are new opposite-direction transactions, never edits.
type Transaction struct {
	ID                string
	Kind              Kind
	Amount            int64
	SourceWallet      string
	DestinationWallet string
	Status            string
	Description       string
	ClientTxID        string
	CreatedAt         time.Time
}

// Page controls transaction listing. Cursor is the opaque value returned by a
// previous call; empty means start from the newest record.
type Page struct {
	Limit  int
	Cursor string
}

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
)

func (p Page) limit() int {
	switch {
	case p.Limit <= 0:
		return defaultPageLimit
	case p.Limit > maxPageLimit:
		return maxPageLimit
	}
	return p.Limit
}

// Store is the ledger system of record. Implementations guarantee that every
// balance mutation and its transaction record commit as one atomic unit, that
// balances never go negative, and that the mutation order of any single
// wallet is linearizable.
type Store interface {
	// ResolveWallet returns the owner's wallet, creating a zero-balance one
	// if none exists. Concurrent first-time resolution yields a single wallet.
	ResolveWallet(ctx context.Context, owner OwnerRef) (Wallet, error)

	// LookupWallet returns the owner's wallet or ErrNotFound.
	LookupWallet(ctx context.Context, owner OwnerRef) (Wallet, error)

	// Deposit credits the destination wallet.
	Deposit(ctx context.Context, destWalletID string, amount int64, clientTxID, description string) (Transaction, error)

	// Withdraw debits the source wallet, rejecting with ErrInsufficientFunds
	// if the balance cannot cover the amount.
	Withdraw(ctx context.Context, sourceWalletID string, amount int64, clientTxID, description string) (Transaction, error)

	// Move debits the source wallet and credits the destination wallet as one
	// unit. Used for transfers and contributions.
	Move(ctx context.Context, kind Kind, sourceWalletID, destWalletID string, amount int64, clientTxID, description string) (Transaction, error)

	// Transaction returns a single record by id or ErrNotFound.
	Transaction(ctx context.Context, id string) (Transaction, error)

	// ListTransactions returns the wallet's transactions newest first along
	// with a cursor for the next page, empty when exhausted.
	ListTransactions(ctx context.Context, walletID string, page Page) ([]Transaction, string, error)

	// RecordFailure appends a failed-status audit record for a rejected
	// operation. No balance is touched.
	RecordFailure(ctx context.Context, t Transaction) (Transaction, error)
}

// encodeCursor builds an opaque keyset cursor from a transaction's position.
func encodeCursor(t Transaction) string {
	return strconv.FormatInt(t.CreatedAt.UnixNano(), 10) + "." + t.ID
}

// decodeCursor parses a cursor produced by encodeCursor.
func decodeCursor(cursor string) (time.Time, string, error) {
	nanos, id, ok := strings.Cut(cursor, ".")
	if !ok {
		return time.Time{}, "", fmt.Errorf("%w: malformed cursor", ErrInvalidOperation)
	}
	n, err := strconv.ParseInt(nanos, 10, 64)
	if err != nil {
		return time.Time{}, "", fmt.Errorf("%w: malformed cursor", ErrInvalidOperation)
	}
	return time.Unix(0, n).UTC(), id, nil
}
