package orders

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"github.com/KINGliam254/Butcher-Sauce-UAT-Ready/internal/testutil"
)

func newTestRepo(t *testing.T) *Repo {
	t.Helper()
	return NewRepo(testutil.OpenDB(t, Models()...))
}

func pushOrder(total int64) *Order {
	return &Order{
		CustomerName:      "Wanjiku",
		CustomerPhone:     "254712345678",
		Fulfillment:       FulfillmentPickup,
		FulfillmentTarget: "Westlands branch",
		TotalCents:        total,
		Currency:          "KES",
		PaymentMethod:     MethodProviderPush,
		PaymentStatus:     PaymentAwaitingInitiation,
		OrderStatus:       StatusPending,
		Items: []OrderItem{
			{ProductRef: "beef-ribeye", ProductName: "Ribeye", Quantity: 1, UnitPriceCents: total, LineTotalCents: total},
		},
	}
}

func TestRepo_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	o := pushOrder(150000)
	o.Items = append(o.Items, OrderItem{
		ProductRef: "sauce-bbq", ProductName: "BBQ Sauce", Quantity: 2, UnitPriceCents: 0, LineTotalCents: 0,
		PreparationJSON: datatypes.JSON(`{"doneness":"medium"}`),
	})
	require.NoError(t, repo.Create(ctx, o))
	require.NotEmpty(t, o.ID)

	got, err := repo.Get(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(150000), got.TotalCents)
	assert.Equal(t, PaymentAwaitingInitiation, got.PaymentStatus)
	assert.Nil(t, got.PaymentCorrelationID)
	require.Len(t, got.Items, 2)
	assert.Equal(t, "beef-ribeye", got.Items[0].ProductRef)
	assert.Equal(t, "sauce-bbq", got.Items[1].ProductRef)
	assert.JSONEq(t, `{"doneness":"medium"}`, string(got.Items[1].PreparationJSON))

	events, err := repo.Events(ctx, o.ID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "created", events[0].Action)
}

func TestRepo_GetUnknown(t *testing.T) {
	repo := newTestRepo(t)

	_, err := repo.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = repo.GetStatus(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = repo.GetByCorrelationID(context.Background(), "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRepo_AttachCorrelationOnlyOnce(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	o := pushOrder(150000)
	require.NoError(t, repo.Create(ctx, o))

	applied, err := repo.AttachCorrelation(ctx, o.ID, "ws_CO_1")
	require.NoError(t, err)
	assert.True(t, applied)

	applied, err = repo.AttachCorrelation(ctx, o.ID, "ws_CO_2")
	require.NoError(t, err)
	assert.False(t, applied, "correlation id must never be overwritten")

	got, err := repo.GetByCorrelationID(ctx, "ws_CO_1")
	require.NoError(t, err)
	assert.Equal(t, o.ID, got.ID)
	assert.Equal(t, PaymentAwaitingConfirmation, got.PaymentStatus)

	_, err = repo.GetByCorrelationID(ctx, "ws_CO_2")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRepo_MarkInitiationFailed(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	o := pushOrder(150000)
	require.NoError(t, repo.Create(ctx, o))

	applied, err := repo.MarkInitiationFailed(ctx, o.ID, "transient: context deadline exceeded")
	require.NoError(t, err)
	assert.True(t, applied)

	got, err := repo.Get(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, PaymentInitiationFailed, got.PaymentStatus)
	assert.Nil(t, got.PaymentCorrelationID)
	require.NotNil(t, got.PaymentError)
	assert.Contains(t, *got.PaymentError, "deadline")

	// terminal: a late correlation id cannot revive it
	applied, err = repo.AttachCorrelation(ctx, o.ID, "ws_CO_late")
	require.NoError(t, err)
	assert.False(t, applied)
}

func TestRepo_SettlePaymentIsConditional(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	o := pushOrder(150000)
	require.NoError(t, repo.Create(ctx, o))
	_, err := repo.AttachCorrelation(ctx, o.ID, "ws_CO_X1")
	require.NoError(t, err)

	paid := Settlement{Status: PaymentPaid, Metadata: datatypes.JSON(`{"receipt":"RCP1"}`), At: time.Now()}
	applied, err := repo.SettlePayment(ctx, o.ID, "ws_CO_X1", paid)
	require.NoError(t, err)
	assert.True(t, applied)

	failed := Settlement{Status: PaymentFailed, Metadata: datatypes.JSON(`{"resultCode":1032}`)}
	applied, err = repo.SettlePayment(ctx, o.ID, "ws_CO_X1", failed)
	require.NoError(t, err)
	assert.False(t, applied, "paid must not be reverted to failed")

	got, err := repo.Get(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, PaymentPaid, got.PaymentStatus)
	assert.True(t, got.IsPaid())
	assert.NotNil(t, got.PaidAt)
	assert.JSONEq(t, `{"receipt":"RCP1"}`, string(got.ProviderMetadata))
}

func TestRepo_SettlePaymentRequiresMatchingCorrelation(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	o := pushOrder(150000)
	require.NoError(t, repo.Create(ctx, o))
	_, err := repo.AttachCorrelation(ctx, o.ID, "ws_CO_A")
	require.NoError(t, err)

	applied, err := repo.SettlePayment(ctx, o.ID, "ws_CO_B", Settlement{Status: PaymentPaid})
	require.NoError(t, err)
	assert.False(t, applied)

	_, err = repo.SettlePayment(ctx, o.ID, "ws_CO_A", Settlement{Status: PaymentAwaitingInitiation})
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestRepo_ConcurrentSettleAppliesOnce(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	o := pushOrder(150000)
	require.NoError(t, repo.Create(ctx, o))
	_, err := repo.AttachCorrelation(ctx, o.ID, "ws_CO_C")
	require.NoError(t, err)

	const workers = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		applied int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			status := PaymentPaid
			if i%2 == 1 {
				status = PaymentFailed
			}
			ok, err := repo.SettlePayment(ctx, o.ID, "ws_CO_C", Settlement{Status: status})
			assert.NoError(t, err)
			if ok {
				mu.Lock()
				applied++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, applied)
	st, err := repo.GetStatus(ctx, o.ID)
	require.NoError(t, err)
	assert.True(t, st.PaymentStatus.IsTerminal())

	events, err := repo.Events(ctx, o.ID)
	require.NoError(t, err)
	callbacks := 0
	for _, ev := range events {
		if ev.Action == "payment_callback" {
			callbacks++
		}
	}
	assert.Equal(t, 1, callbacks)
}

func TestRepo_ListAwaitingConfirmation(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	waiting := pushOrder(1000)
	require.NoError(t, repo.Create(ctx, waiting))
	_, err := repo.AttachCorrelation(ctx, waiting.ID, "ws_CO_W")
	require.NoError(t, err)

	other := pushOrder(2000)
	require.NoError(t, repo.Create(ctx, other))

	list, err := repo.ListAwaitingConfirmation(ctx, PendingListParams{OlderThan: -time.Minute})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, waiting.ID, list[0].ID)

	list, err = repo.ListAwaitingConfirmation(ctx, PendingListParams{OlderThan: time.Hour})
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestRepo_ListAwaitingInitiation(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	lost := pushOrder(1000)
	require.NoError(t, repo.Create(ctx, lost))

	handed := pushOrder(2000)
	require.NoError(t, repo.Create(ctx, handed))
	_, err := repo.AttachCorrelation(ctx, handed.ID, "ws_CO_H")
	require.NoError(t, err)

	list, err := repo.ListAwaitingInitiation(ctx, PendingListParams{OlderThan: -time.Minute})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, lost.ID, list[0].ID)

	list, err = repo.ListAwaitingInitiation(ctx, PendingListParams{OlderThan: time.Hour})
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestRepo_AttachCorrelationDuplicate(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	first, second := pushOrder(1000), pushOrder(2000)
	require.NoError(t, repo.Create(ctx, first))
	require.NoError(t, repo.Create(ctx, second))

	applied, err := repo.AttachCorrelation(ctx, first.ID, "ws_CO_SAME")
	require.NoError(t, err)
	require.True(t, applied)

	applied, err = repo.AttachCorrelation(ctx, second.ID, "ws_CO_SAME")
	assert.ErrorIs(t, err, ErrDuplicateCorrelation)
	assert.False(t, applied)

	st, err := repo.GetStatus(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, PaymentAwaitingInitiation, st.PaymentStatus)
}

func TestRepo_MarkInitiationFailedKeepsUTF8(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	o := pushOrder(1000)
	require.NoError(t, repo.Create(ctx, o))

	reason := strings.Repeat("ç", 300)
	applied, err := repo.MarkInitiationFailed(ctx, o.ID, reason)
	require.NoError(t, err)
	require.True(t, applied)

	got, err := repo.Get(ctx, o.ID)
	require.NoError(t, err)
	require.NotNil(t, got.PaymentError)
	assert.True(t, utf8.ValidString(*got.PaymentError))
	assert.Equal(t, 250, utf8.RuneCountInString(*got.PaymentError))

	events, err := repo.Events(ctx, o.ID)
	require.NoError(t, err)
	last := events[len(events)-1]
	require.NotNil(t, last.Note)
	assert.True(t, utf8.ValidString(*last.Note))
}
