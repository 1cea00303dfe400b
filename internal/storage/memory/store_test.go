package memory

import (
	"context"
	"encoding/json"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hongminglow/kaisurf-be/internal/models"
	"github.com/hongminglow/kaisurf-be/internal/storage"
)

func credit(uid string, amount int64, at time.Time) models.LedgerEntry {
	return models.LedgerEntry{
		AuthUID:     uid,
		Type:        models.EntryTypeFor(amount),
		Amount:      amount,
		Description: "test",
		CreatedAt:   at,
	}
}

func TestCreateIdentityIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := New()

	first, created, err := s.CreateIdentity(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, created)

	second, created, err := s.CreateIdentity(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first, second)
}

func TestApplyCreditUnknownIdentityWritesNothing(t *testing.T) {
	s := New()
	_, _, err := s.ApplyCredit(context.Background(), credit("ghost", 10, time.Now()))
	assert.ErrorIs(t, err, storage.ErrNotFound)

	balances, entries, _ := s.Counts()
	assert.Zero(t, balances)
	assert.Zero(t, entries)
}

func TestApplyCreditOverflowWritesNothing(t *testing.T) {
	ctx := context.Background()
	s := New()
	_, _, err := s.CreateIdentity(ctx, "u1")
	require.NoError(t, err)

	_, _, err = s.ApplyCredit(ctx, credit("u1", math.MaxInt64-5, time.Now()))
	require.NoError(t, err)
	_, _, err = s.ApplyCredit(ctx, credit("u1", 6, time.Now()))
	assert.ErrorIs(t, err, storage.ErrOutOfRange)

	balance, err := s.GetBalance(ctx, "u1")
	require.NoError(t, err)
	assert.EqualValues(t, int64(math.MaxInt64-5), balance.Balance)
	_, entries, _ := s.Counts()
	assert.Equal(t, 1, entries)
}

func TestConcurrentFirstCreditsCreateOneBalance(t *testing.T) {
	ctx := context.Background()
	s := New()
	_, _, err := s.CreateIdentity(ctx, "u1")
	require.NoError(t, err)

	const workers = 32
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := s.ApplyCredit(ctx, credit("u1", 5, time.Now()))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	balance, err := s.GetBalance(ctx, "u1")
	require.NoError(t, err)
	assert.EqualValues(t, workers*5, balance.Balance)

	balances, entries, _ := s.Counts()
	assert.Equal(t, 1, balances)
	assert.Equal(t, workers, entries)
}

func TestListLedgerNewestFirst(t *testing.T) {
	ctx := context.Background()
	s := New()
	_, _, _ = s.CreateIdentity(ctx, "u1")

	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	_, _, err := s.ApplyCredit(ctx, credit("u1", 50, base))
	require.NoError(t, err)
	_, _, err = s.ApplyCredit(ctx, credit("u1", 25, base.Add(time.Minute)))
	require.NoError(t, err)
	_, _, err = s.ApplyCredit(ctx, credit("u1", 5, base.Add(time.Minute)))
	require.NoError(t, err)

	entries, err := s.ListLedger(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.EqualValues(t, 5, entries[0].Amount)
	assert.EqualValues(t, 25, entries[1].Amount)
	assert.EqualValues(t, 50, entries[2].Amount)
}

func TestAuditOldestFirstAndCopied(t *testing.T) {
	ctx := context.Background()
	s := New()
	_, _, _ = s.CreateIdentity(ctx, "u1")

	payload := json.RawMessage(`{"order":1}`)
	_, err := s.AppendAudit(ctx, models.AuditLogEntry{AuthUID: "u1", EventType: "A", Payload: payload, CreatedAt: time.Unix(10, 0)})
	require.NoError(t, err)
	_, err = s.AppendAudit(ctx, models.AuditLogEntry{AuthUID: "u1", EventType: "B", CreatedAt: time.Unix(20, 0)})
	require.NoError(t, err)
	payload[2] = 'X'

	entries, err := s.ListAudit(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "A", entries[0].EventType)
	assert.JSONEq(t, `{"order":1}`, string(entries[0].Payload))
	assert.JSONEq(t, `{}`, string(entries[1].Payload))
}

func TestSessionsAndRules(t *testing.T) {
	ctx := context.Background()
	s := New()
	_, _, _ = s.CreateIdentity(ctx, "u1")

	sess := models.Session{Name: "n1", AuthUID: "u1", ExpiresAt: time.Now().Add(time.Hour)}
	_, err := s.CreateSession(ctx, sess)
	require.NoError(t, err)
	_, err = s.CreateSession(ctx, sess)
	assert.ErrorIs(t, err, storage.ErrAlreadyExists)

	got, err := s.GetSession(ctx, "n1")
	require.NoError(t, err)
	assert.Equal(t, "u1", got.AuthUID)

	require.NoError(t, s.InsertRewardRuleIfAbsent(ctx, models.RewardRule{Name: "CREATE_KONTENT", KoneAmount: 10, Active: true}))
	updated, err := s.UpsertRewardRule(ctx, models.RewardRule{Name: "CREATE_KONTENT", KoneAmount: 15, Active: true})
	require.NoError(t, err)
	require.NoError(t, s.InsertRewardRuleIfAbsent(ctx, models.RewardRule{Name: "CREATE_KONTENT", KoneAmount: 1}))

	rules, err := s.ListRewardRules(ctx)
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.Equal(t, updated.ID, rules[0].ID)
	assert.EqualValues(t, 15, rules[0].KoneAmount)
}

func TestCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New().GetBalance(ctx, "u1")
	assert.ErrorIs(t, err, context.Canceled)
}
