package domain_test

import (
	"testing"
	"time"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// helper для создания базового заказа с двумя позициями.
func makeOrder() domain.Order {
	now := time.Now().UTC()
	return domain.Order{
		ID:            "order-1",
		AccountID:     "account-1",
		Status:        domain.OrderStatusPending,
		PaymentMethod: domain.PaymentMethodCOD,
		AmountMinor:   700,
		Items: []domain.OrderItem{
			{
				ID:         "item-1",
				ProductID:  "product-1",
				Qty:        5,
				PriceMinor: 100,
				CreatedAt:  now,
			},
			{
				ID:         "item-2",
				ProductID:  "product-2",
				Qty:        2,
				PriceMinor: 100,
				CreatedAt:  now,
			},
		},
		Version:   0,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestOrderValidateInvariants_Ok(t *testing.T) {
	order := makeOrder()
	if errs := order.ValidateInvariants(); len(errs) != 0 {
		t.Fatalf("expected no validation errors, got %v", errs)
	}
}

func TestOrderValidateInvariants_Errors(t *testing.T) {
	cases := []struct {
		name string
		mut  func(o *domain.Order)
	}{
		{
			name: "no account",
			mut: func(o *domain.Order) {
				o.AccountID = ""
			},
		},
		{
			name: "bad payment method",
			mut: func(o *domain.Order) {
				o.PaymentMethod = "cheque"
			},
		},
		{
			name: "negative amount",
			mut: func(o *domain.Order) {
				o.AmountMinor = -1
			},
		},
		{
			name: "no items",
			mut: func(o *domain.Order) {
				o.Items = nil
			},
		},
		{
			name: "qty invalid",
			mut: func(o *domain.Order) {
				o.Items[0].Qty = 0
			},
		},
		{
			name: "price invalid",
			mut: func(o *domain.Order) {
				o.Items[0].PriceMinor = -5
			},
		},
		{
			name: "amount mismatch",
			mut: func(o *domain.Order) {
				o.AmountMinor = 999
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			order := makeOrder()
			if len(order.Items) == 0 {
				t.Fatal("test setup produced order without items")
			}
			// Изменяем состояние согласно сценарию.
			mutOrder := order
			tc.mut(&mutOrder)

			if len(mutOrder.ValidateInvariants()) == 0 {
				t.Fatalf("expected validation errors for case %s", tc.name)
			}
		})
	}
}

func TestOrderLegacyView(t *testing.T) {
	order := makeOrder()
	view := order.LegacyView()

	if view.ID != order.ID || view.AccountID != order.AccountID {
		t.Fatalf("legacy view lost identity: %+v", view)
	}
	if view.ProductID != "product-1" || view.Qty != 5 || view.PriceMinor != 100 {
		t.Fatalf("legacy view must project the first item, got %+v", view)
	}
	if view.AmountMinor != order.AmountMinor {
		t.Fatalf("legacy view amount = %d, want %d", view.AmountMinor, order.AmountMinor)
	}

	// Пустой заказ не должен паниковать.
	empty := domain.Order{ID: "order-2"}
	if v := empty.LegacyView(); v.ProductID != "" || v.Qty != 0 {
		t.Fatalf("empty order legacy view should be zero-valued, got %+v", v)
	}
}
