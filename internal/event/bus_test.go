package event

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestBus_SubscribersRunInRegistrationOrder(t *testing.T) {
	bus := NewBus(zerolog.Nop())

	var order []int
	for i := 1; i <= 3; i++ {
		i := i
		bus.Subscribe(PurchaseCompleted, func(ctx context.Context, payload any) error {
			order = append(order, i)
			return nil
		})
	}

	bus.Publish(context.Background(), PurchaseCompleted, PurchaseCompletedEvent{ProductCode: "P1"})
	assert.Equal(t, []int{1, 2, 3}, order)
}

func TestBus_FailingSubscriberIsIsolated(t *testing.T) {
	bus := NewBus(zerolog.Nop())

	var calls []string
	bus.Subscribe(TransactionFailed, func(ctx context.Context, payload any) error {
		calls = append(calls, "first")
		return errors.New("boom")
	})
	bus.Subscribe(TransactionFailed, func(ctx context.Context, payload any) error {
		calls = append(calls, "second")
		panic("subscriber panic")
	})
	bus.Subscribe(TransactionFailed, func(ctx context.Context, payload any) error {
		calls = append(calls, "third")
		return nil
	})

	assert.NotPanics(t, func() {
		bus.Publish(context.Background(), TransactionFailed, TransactionFailedEvent{Reason: "x"})
	})
	assert.Equal(t, []string{"first", "second", "third"}, calls)
}

func TestBus_PublishWithoutSubscribers(t *testing.T) {
	bus := NewBus(zerolog.Nop())
	assert.NotPanics(t, func() {
		bus.Publish(context.Background(), DepositCompleted, DepositCompletedEvent{})
	})
}

func TestBus_PayloadDelivered(t *testing.T) {
	bus := NewBus(zerolog.Nop())

	var got WithdrawalCompletedEvent
	bus.Subscribe(WithdrawalCompleted, func(ctx context.Context, payload any) error {
		evt, ok := payload.(WithdrawalCompletedEvent)
		if !ok {
			t.Fatalf("unexpected payload type %T", payload)
		}
		got = evt
		return nil
	})

	bus.Publish(context.Background(), WithdrawalCompleted, WithdrawalCompletedEvent{
		UserID:  "42",
		GrowID:  "PLAYER",
		TotalWL: 5200,
	})
	assert.Equal(t, "PLAYER", got.GrowID)
	assert.Equal(t, int64(5200), got.TotalWL)
}
