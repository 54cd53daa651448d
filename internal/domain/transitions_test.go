package domain_test

import (
	"errors"
	"testing"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

func TestCanTransition(t *testing.T) {
	cases := []struct {
		name string
		from domain.OrderStatus
		to   domain.OrderStatus
		want error
	}{
		{name: "pending to confirmed", from: domain.OrderStatusPending, to: domain.OrderStatusConfirmed},
		{name: "confirmed to shipping", from: domain.OrderStatusConfirmed, to: domain.OrderStatusShipping},
		{name: "shipping to completed", from: domain.OrderStatusShipping, to: domain.OrderStatusCompleted},
		{name: "pending skips to shipping", from: domain.OrderStatusPending, to: domain.OrderStatusShipping},
		{name: "self transition noop", from: domain.OrderStatusShipping, to: domain.OrderStatusShipping},
		{name: "pending to cancelled", from: domain.OrderStatusPending, to: domain.OrderStatusCancelled},
		{name: "shipping to cancelled", from: domain.OrderStatusShipping, to: domain.OrderStatusCancelled},
		{name: "reactivate cancelled", from: domain.OrderStatusCancelled, to: domain.OrderStatusPending},
		{
			name: "backward move",
			from: domain.OrderStatusShipping,
			to:   domain.OrderStatusConfirmed,
			want: domain.ErrInvalidTransition,
		},
		{
			name: "completed is terminal",
			from: domain.OrderStatusCompleted,
			to:   domain.OrderStatusShipping,
			want: domain.ErrOrderFinalized,
		},
		{
			name: "completed cannot be cancelled",
			from: domain.OrderStatusCompleted,
			to:   domain.OrderStatusCancelled,
			want: domain.ErrOrderFinalized,
		},
		{
			name: "unknown target status",
			from: domain.OrderStatusPending,
			to:   "archived",
			want: domain.ErrStatusInvalid,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := domain.CanTransition(tc.from, tc.to)
			if !errors.Is(err, tc.want) {
				t.Fatalf("CanTransition(%s, %s) = %v, want %v", tc.from, tc.to, err, tc.want)
			}
		})
	}
}

func TestStatusTerminal(t *testing.T) {
	if !domain.OrderStatusCompleted.Terminal() || !domain.OrderStatusCancelled.Terminal() {
		t.Fatal("completed and cancelled must be terminal")
	}
	if domain.OrderStatusPending.Terminal() || domain.OrderStatusShipping.Terminal() {
		t.Fatal("pending and shipping must not be terminal")
	}
}

func TestInsufficientStockError(t *testing.T) {
	err := error(&domain.InsufficientStockError{ProductID: "product-7"})
	wrapped := errors.Join(errors.New("reserve failed"), err)

	productID, ok := domain.IsInsufficientStock(wrapped)
	if !ok || productID != "product-7" {
		t.Fatalf("IsInsufficientStock = (%q, %v), want (product-7, true)", productID, ok)
	}
	if _, ok := domain.IsInsufficientStock(domain.ErrOrderNotFound); ok {
		t.Fatal("unrelated error must not match insufficient stock")
	}
}
