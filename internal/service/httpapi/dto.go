package httpapi

import (
	"time"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// checkoutRequest — тело POST /checkout.
type checkoutRequest struct {
	Lines         []checkoutLine  `json:"lines"`
	PaymentMethod string          `json:"payment_method"`
	Receiver      receiverPayload `json:"receiver"`
}

type checkoutLine struct {
	ProductID string `json:"product_id"`
	Qty       int32  `json:"qty"`
	// Отсутствующая цена берётся из каталога; явный ноль — бесплатная позиция.
	PriceMinor *int64 `json:"price_minor,omitempty"`
}

type receiverPayload struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
	Note    string `json:"note"`
}

// statusRequest — тело POST /orders/:id/status.
type statusRequest struct {
	Status string `json:"status" binding:"required"`
}

// cancelRequest — тело POST /orders/:id/cancel.
type cancelRequest struct {
	Reason string `json:"reason"`
}

// reassignRequest — тело POST /orders/:id/reassign.
type reassignRequest struct {
	AccountID string `json:"account_id" binding:"required"`
}

type orderItemResponse struct {
	ID         string `json:"id"`
	ProductID  string `json:"product_id"`
	Qty        int32  `json:"qty"`
	PriceMinor int64  `json:"price_minor"`
	LineTotal  int64  `json:"line_total"`
}

type paymentTrailResponse struct {
	LastTxnID   string     `json:"last_txn_id,omitempty"`
	ConfirmedAt *time.Time `json:"confirmed_at,omitempty"`
	FailedAt    *time.Time `json:"failed_at,omitempty"`
}

type orderResponse struct {
	ID            string                `json:"id"`
	AccountID     string                `json:"account_id"`
	Status        string                `json:"status"`
	PaymentMethod string                `json:"payment_method"`
	AmountMinor   int64                 `json:"amount_minor"`
	Items         []orderItemResponse   `json:"items"`
	Receiver      *receiverPayload      `json:"receiver,omitempty"`
	Payment       *paymentTrailResponse `json:"payment,omitempty"`
	Version       int64                 `json:"version"`
	CreatedAt     time.Time             `json:"created_at"`
	UpdatedAt     time.Time             `json:"updated_at"`
	ConfirmedAt   *time.Time            `json:"confirmed_at,omitempty"`
	CompletedAt   *time.Time            `json:"completed_at,omitempty"`
	CancelledAt   *time.Time            `json:"cancelled_at,omitempty"`
}

type timelineEventResponse struct {
	Type     string    `json:"type"`
	Reason   string    `json:"reason,omitempty"`
	Occurred time.Time `json:"occurred"`
}

type orderDetailsResponse struct {
	orderResponse
	Timeline []timelineEventResponse `json:"timeline,omitempty"`
}

// legacyOrderResponse — одно-позиционная проекция для старых потребителей.
type legacyOrderResponse struct {
	ID            string    `json:"id"`
	AccountID     string    `json:"account_id"`
	ProductID     string    `json:"product_id"`
	Qty           int32     `json:"qty"`
	PriceMinor    int64     `json:"price_minor"`
	AmountMinor   int64     `json:"amount_minor"`
	PaymentMethod string    `json:"payment_method"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"created_at"`
}

type orderListResponse struct {
	Orders   []orderResponse `json:"orders"`
	Total    int             `json:"total"`
	Page     int             `json:"page"`
	PageSize int             `json:"page_size"`
}

type cartItemResponse struct {
	ID         string `json:"id"`
	ProductID  string `json:"product_id"`
	Qty        int32  `json:"qty"`
	PriceMinor int64  `json:"price_minor"`
}

func toOrderResponse(order domain.Order) orderResponse {
	items := make([]orderItemResponse, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, orderItemResponse{
			ID:         item.ID,
			ProductID:  item.ProductID,
			Qty:        item.Qty,
			PriceMinor: item.PriceMinor,
			LineTotal:  item.LineTotal(),
		})
	}

	resp := orderResponse{
		ID:            order.ID,
		AccountID:     order.AccountID,
		Status:        string(order.Status),
		PaymentMethod: string(order.PaymentMethod),
		AmountMinor:   order.AmountMinor,
		Items:         items,
		Version:       order.Version,
		CreatedAt:     order.CreatedAt,
		UpdatedAt:     order.UpdatedAt,
		ConfirmedAt:   order.ConfirmedAt,
		CompletedAt:   order.CompletedAt,
		CancelledAt:   order.CancelledAt,
	}
	if !order.Receiver.Empty() {
		resp.Receiver = &receiverPayload{
			Name:    order.Receiver.Name,
			Email:   order.Receiver.Email,
			Phone:   order.Receiver.Phone,
			Address: order.Receiver.Address,
			Note:    order.Receiver.Note,
		}
	}
	if order.Trail.LastTxnID != "" || order.Trail.ConfirmedAt != nil || order.Trail.FailedAt != nil {
		resp.Payment = &paymentTrailResponse{
			LastTxnID:   order.Trail.LastTxnID,
			ConfirmedAt: order.Trail.ConfirmedAt,
			FailedAt:    order.Trail.FailedAt,
		}
	}
	return resp
}

func toLegacyResponse(order domain.Order) legacyOrderResponse {
	view := order.LegacyView()
	return legacyOrderResponse{
		ID:            view.ID,
		AccountID:     view.AccountID,
		ProductID:     view.ProductID,
		Qty:           view.Qty,
		PriceMinor:    view.PriceMinor,
		AmountMinor:   view.AmountMinor,
		PaymentMethod: string(view.PaymentMethod),
		Status:        string(view.Status),
		CreatedAt:     view.CreatedAt,
	}
}
