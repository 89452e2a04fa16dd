package history

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/somulo1/chamaledger/internal/ledger"
	"github.com/somulo1/chamaledger/internal/wallet"
)

func seedHistory(t *testing.T, store ledger.Store, wallets *wallet.Service, owner ledger.OwnerRef, deposits []int64) ledger.Wallet {
	t.Helper()
	ctx := context.Background()
	w, err := wallets.Resolve(ctx, owner)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	for i, amount := range deposits {
		if _, err := store.Deposit(ctx, w.ID, amount, "", ""); err != nil {
			t.Fatalf("deposit %d: %v", i, err)
		}
	}
	return w
}

func TestListNewestFirst(t *testing.T) {
	store := ledger.NewMemory("KES")
	wallets := wallet.NewService(store)
	svc := NewService(store, wallets)
	owner := ledger.OwnerRef{UserID: uuid.NewString()}
	seedHistory(t, store, wallets, owner, []int64{100, 200, 300})

	records, next, err := svc.List(context.Background(), owner, ledger.Page{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(records) != 3 || next != "" {
		t.Fatalf("expected 3 records and no cursor, got %d / %q", len(records), next)
	}
	if records[0].Amount != 300 || records[2].Amount != 100 {
		t.Fatalf("records not newest first: %+v", records)
	}
}

func TestListPaginatesWithCursor(t *testing.T) {
	store := ledger.NewMemory("KES")
	wallets := wallet.NewService(store)
	svc := NewService(store, wallets)
	owner := ledger.OwnerRef{UserID: uuid.NewString()}
	seedHistory(t, store, wallets, owner, []int64{1, 2, 3, 4, 5})

	ctx := context.Background()
	var seen []int64
	cursor := ""
	for {
		records, next, err := svc.List(ctx, owner, ledger.Page{Limit: 2, Cursor: cursor})
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		for _, r := range records {
			seen = append(seen, r.Amount)
		}
		if next == "" {
			break
		}
		cursor = next
	}

	want := []int64{5, 4, 3, 2, 1}
	if len(seen) != len(want) {
		t.Fatalf("pagination skipped or duplicated: %v", seen)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, seen)
		}
	}
}

func TestListUnknownOwnerIsEmpty(t *testing.T) {
	store := ledger.NewMemory("KES")
	wallets := wallet.NewService(store)
	svc := NewService(store, wallets)

	records, next, err := svc.List(context.Background(), ledger.OwnerRef{UserID: uuid.NewString()}, ledger.Page{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(records) != 0 || next != "" {
		t.Fatalf("expected empty history, got %d records", len(records))
	}
}

func TestGetTransaction(t *testing.T) {
	store := ledger.NewMemory("KES")
	wallets := wallet.NewService(store)
	svc := NewService(store, wallets)
	owner := ledger.OwnerRef{UserID: uuid.NewString()}
	w := seedHistory(t, store, wallets, owner, nil)

	ctx := context.Background()
	created, err := store.Deposit(ctx, w.ID, 750, "", "audit me")
	if err != nil {
		t.Fatalf("deposit: %v", err)
	}

	got, err := svc.Get(ctx, created.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.ID != created.ID || got.Description != "audit me" {
		t.Fatalf("unexpected record: %+v", got)
	}

	if _, err := svc.Get(ctx, uuid.NewString()); !errors.Is(err, ledger.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
