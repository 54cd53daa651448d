package domain

import "time"

// CartItem — позиция корзины покупателя. Корзиной владеет внешний
// коллаборатор, сервис читает её снимок в момент checkout-а.
type CartItem struct {
	ID         string
	AccountID  string
	ProductID  string
	Qty        int32
	PriceMinor int64
	CreatedAt  time.Time
}
