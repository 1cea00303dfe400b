package postgres

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/joho/godotenv"

	"github.com/hongminglow/kaisurf-be/internal/models"
	"github.com/hongminglow/kaisurf-be/internal/storage"
)

// TestStoreIntegration exercises the credit transaction against a live database.
func TestStoreIntegration(t *testing.T) {
	if os.Getenv("RUN_STORE_INTEGRATION") != "true" {
		t.Skip("set RUN_STORE_INTEGRATION=true to run this integration test")
	}

	loadDotEnv()
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		t.Fatal("DATABASE_URL is required")
	}

	ctx := context.Background()
	store, err := NewStore(ctx, dbURL)
	if err != nil {
		t.Fatalf("init store: %v", err)
	}
	defer store.Close()

	uid := fmt.Sprintf("it_%d", time.Now().UnixNano())
	if _, created, err := store.CreateIdentity(ctx, uid); err != nil || !created {
		t.Fatalf("create identity: created=%v err=%v", created, err)
	}
	if _, created, err := store.CreateIdentity(ctx, uid); err != nil || created {
		t.Fatalf("second create should be a no-op: created=%v err=%v", created, err)
	}

	if _, err := store.GetBalance(ctx, uid); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected no balance row, got %v", err)
	}

	const workers = 8
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _, err := store.ApplyCredit(ctx, models.LedgerEntry{
				AuthUID:     uid,
				Type:        models.EntryTypeEarn,
				Amount:      int64(i + 1),
				Description: fmt.Sprintf("concurrent %d", i),
				CreatedAt:   time.Now().UTC(),
			})
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("concurrent credit: %v", err)
		}
	}

	balance, err := store.GetBalance(ctx, uid)
	if err != nil {
		t.Fatalf("get balance: %v", err)
	}
	entries, err := store.ListLedger(ctx, uid)
	if err != nil {
		t.Fatalf("list ledger: %v", err)
	}
	if len(entries) != workers {
		t.Fatalf("ledger entries = %d, want %d", len(entries), workers)
	}
	var sum int64
	for i, e := range entries {
		sum += e.Amount
		if i > 0 && entries[i-1].CreatedAt.Before(e.CreatedAt) {
			t.Fatalf("ledger not newest first at %d", i)
		}
	}
	if balance.Balance != sum || sum != 36 {
		t.Fatalf("balance %d, ledger sum %d, want 36", balance.Balance, sum)
	}

	_, _, err = store.ApplyCredit(ctx, models.LedgerEntry{AuthUID: uid, Type: models.EntryTypeEarn, Amount: math.MaxInt64, Description: "overflow", CreatedAt: time.Now()})
	if !errors.Is(err, storage.ErrOutOfRange) {
		t.Fatalf("credit past max balance: want ErrOutOfRange, got %v", err)
	}
	if after, err := store.GetBalance(ctx, uid); err != nil || after.Balance != 36 {
		t.Fatalf("balance after rejected credit = %d (%v), want 36", after.Balance, err)
	}

	_, _, err = store.ApplyCredit(ctx, models.LedgerEntry{AuthUID: uid + "_missing", Type: models.EntryTypeEarn, Amount: 5, Description: "x", CreatedAt: time.Now()})
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("credit for unknown identity: want ErrNotFound, got %v", err)
	}
}

func loadDotEnv() {
	paths := []string{
		".env",
		"../.env",
		"../../.env",
		"../../../.env",
		"../../../../.env",
	}
	for _, path := range paths {
		_ = godotenv.Overload(path)
	}
}
