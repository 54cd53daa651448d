package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

const (
	opTimeout = 5 * time.Second
)

const orderColumns = `
	id, account_id, status, payment_method, amount_minor,
	receiver_name, receiver_email, receiver_phone, receiver_address, receiver_note,
	trail_return_payload, trail_notify_payload, trail_last_txn_id, trail_confirmed_at, trail_failed_at,
	version, created_at, updated_at, confirmed_at, completed_at, cancelled_at`

type orderRepository struct {
	db *sql.DB
}

// NewOrderRepository создаёт PostgreSQL-реализацию OrderRepository.
func NewOrderRepository(store *Store) domain.OrderRepository {
	return &orderRepository{db: store.DB()}
}

func (r *orderRepository) Create(order domain.Order) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	returnPayload, notifyPayload, err := marshalTrail(order.Trail)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO orders (`+orderColumns+`
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21)
	`,
		order.ID, order.AccountID, string(order.Status), string(order.PaymentMethod), order.AmountMinor,
		order.Receiver.Name, order.Receiver.Email, order.Receiver.Phone, order.Receiver.Address, order.Receiver.Note,
		returnPayload, notifyPayload, order.Trail.LastTxnID, order.Trail.ConfirmedAt, order.Trail.FailedAt,
		order.Version, order.CreatedAt, order.UpdatedAt, order.ConfirmedAt, order.CompletedAt, order.CancelledAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrOrderVersionConflict
		}
		return fmt.Errorf("insert order: %w", err)
	}

	for _, item := range order.Items {
		if _, err = tx.ExecContext(ctx, `
			INSERT INTO order_items (
				id, order_id, product_id, qty, price_minor, created_at
			) VALUES ($1,$2,$3,$4,$5,$6)
		`,
			item.ID, order.ID, item.ProductID, item.Qty, item.PriceMinor, item.CreatedAt,
		); err != nil {
			return fmt.Errorf("insert order item: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit create order: %w", err)
	}

	return nil
}

func (r *orderRepository) Get(id string) (domain.Order, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	row := r.db.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
	order, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Order{}, domain.ErrOrderNotFound
		}
		return domain.Order{}, fmt.Errorf("select order: %w", err)
	}

	items, err := r.loadItems(ctx, order.ID)
	if err != nil {
		return domain.Order{}, err
	}
	order.Items = items

	return order, nil
}

func (r *orderRepository) List(filter domain.OrderFilter) ([]domain.Order, int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	where, args := buildOrderFilter(filter)

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM orders`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count orders: %w", err)
	}

	query := `SELECT ` + orderColumns + ` FROM orders` + where + orderSortClause(filter.Sort)

	page := filter.Page
	if page < 1 {
		page = 1
	}
	if filter.PageSize > 0 {
		args = append(args, filter.PageSize, (page-1)*filter.PageSize)
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args))
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	orders := make([]domain.Order, 0)
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan order row: %w", err)
		}

		items, err := r.loadItems(ctx, order.ID)
		if err != nil {
			return nil, 0, err
		}
		order.Items = items
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate order rows: %w", err)
	}

	return orders, total, nil
}

func (r *orderRepository) Save(order domain.Order) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	returnPayload, notifyPayload, err := marshalTrail(order.Trail)
	if err != nil {
		return err
	}

	res, err := r.db.ExecContext(ctx, `
		UPDATE orders
		SET account_id = $1,
		    status = $2,
		    payment_method = $3,
		    amount_minor = $4,
		    receiver_name = $5,
		    receiver_email = $6,
		    receiver_phone = $7,
		    receiver_address = $8,
		    receiver_note = $9,
		    trail_return_payload = $10,
		    trail_notify_payload = $11,
		    trail_last_txn_id = $12,
		    trail_confirmed_at = $13,
		    trail_failed_at = $14,
		    version = version + 1,
		    updated_at = $15,
		    confirmed_at = $16,
		    completed_at = $17,
		    cancelled_at = $18
		WHERE id = $19
		  AND version = $20
	`,
		order.AccountID, string(order.Status), string(order.PaymentMethod), order.AmountMinor,
		order.Receiver.Name, order.Receiver.Email, order.Receiver.Phone, order.Receiver.Address, order.Receiver.Note,
		returnPayload, notifyPayload, order.Trail.LastTxnID, order.Trail.ConfirmedAt, order.Trail.FailedAt,
		time.Now().UTC(), order.ConfirmedAt, order.CompletedAt, order.CancelledAt,
		order.ID, order.Version,
	)
	if err != nil {
		return fmt.Errorf("update order: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		exists, err := r.orderExists(ctx, order.ID)
		if err != nil {
			return err
		}
		if !exists {
			return domain.ErrOrderNotFound
		}
		return domain.ErrOrderVersionConflict
	}

	return nil
}

// TransitionStatus блокирует строку заказа и переводит её в to, только если
// текущий статус входит в allowedFrom. applied=false означает, что guard не
// сработал: вызывающий разбирает ситуацию по возвращённому состоянию.
func (r *orderRepository) TransitionStatus(id string, to domain.OrderStatus, allowedFrom []domain.OrderStatus, at time.Time) (domain.Order, bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	var (
		result  domain.Order
		applied bool
	)

	err := r.withOrderLock(ctx, id, func(tx *sql.Tx, order *domain.Order) error {
		allowed := false
		for _, from := range allowedFrom {
			if order.Status == from {
				allowed = true
				break
			}
		}
		if !allowed {
			result = *order
			return nil
		}

		confirmedAt, completedAt, cancelledAt := order.ConfirmedAt, order.CompletedAt, order.CancelledAt
		switch to {
		case domain.OrderStatusConfirmed:
			confirmedAt = &at
		case domain.OrderStatusCompleted:
			completedAt = &at
		case domain.OrderStatusCancelled:
			cancelledAt = &at
		case domain.OrderStatusPending:
			// Реактивация сбрасывает отметку отмены.
			cancelledAt = nil
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE orders
			SET status = $2,
			    version = version + 1,
			    updated_at = $3,
			    confirmed_at = $4,
			    completed_at = $5,
			    cancelled_at = $6
			WHERE id = $1
		`, id, string(to), at, confirmedAt, completedAt, cancelledAt); err != nil {
			return fmt.Errorf("transition order status: %w", err)
		}

		order.Status = to
		order.Version++
		order.UpdatedAt = at
		order.ConfirmedAt, order.CompletedAt, order.CancelledAt = confirmedAt, completedAt, cancelledAt
		result = *order
		applied = true
		return nil
	})
	if err != nil {
		return domain.Order{}, false, err
	}

	return result, applied, nil
}

// ApplyPaymentResult блокирует строку заказа и применяет результат callback-а.
// Аудиторский payload пишется всегда; подтверждение двигает статус только
// pending -> confirmed, отказ статуса не трогает.
func (r *orderRepository) ApplyPaymentResult(id string, payment domain.PaymentResult) (domain.Order, bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	var (
		result  domain.Order
		applied bool
	)

	err := r.withOrderLock(ctx, id, func(tx *sql.Tx, order *domain.Order) error {
		switch payment.Channel {
		case domain.PaymentChannelReturn:
			order.Trail.ReturnPayload = payment.Payload
		case domain.PaymentChannelNotify:
			order.Trail.NotifyPayload = payment.Payload
		}
		order.Trail.LastTxnID = payment.TxnID

		at := payment.At
		if payment.Success {
			if order.Trail.ConfirmedAt == nil {
				order.Trail.ConfirmedAt = &at
			}
			if order.Status == domain.OrderStatusPending {
				order.Status = domain.OrderStatusConfirmed
				order.ConfirmedAt = &at
				applied = true
			}
		} else {
			order.Trail.FailedAt = &at
		}

		returnPayload, notifyPayload, err := marshalTrail(order.Trail)
		if err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE orders
			SET status = $2,
			    trail_return_payload = $3,
			    trail_notify_payload = $4,
			    trail_last_txn_id = $5,
			    trail_confirmed_at = $6,
			    trail_failed_at = $7,
			    version = version + 1,
			    updated_at = $8,
			    confirmed_at = $9
			WHERE id = $1
		`, id, string(order.Status), returnPayload, notifyPayload,
			order.Trail.LastTxnID, order.Trail.ConfirmedAt, order.Trail.FailedAt, at, order.ConfirmedAt,
		); err != nil {
			return fmt.Errorf("apply payment result: %w", err)
		}

		order.Version++
		order.UpdatedAt = at
		result = *order
		return nil
	})
	if err != nil {
		return domain.Order{}, false, err
	}

	return result, applied, nil
}

func (r *orderRepository) Delete(id string) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `DELETE FROM orders WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete order: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return domain.ErrOrderNotFound
	}

	return nil
}

// withOrderLock выполняет fn в транзакции с заблокированной строкой заказа.
// В fn передаётся актуальное состояние заказа вместе с позициями.
func (r *orderRepository) withOrderLock(ctx context.Context, id string, fn func(tx *sql.Tx, order *domain.Order) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	row := tx.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1 FOR UPDATE`, id)
	order, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = domain.ErrOrderNotFound
			return err
		}
		err = fmt.Errorf("lock order row: %w", err)
		return err
	}

	items, err := r.loadItemsTx(ctx, tx, id)
	if err != nil {
		return err
	}
	order.Items = items

	if err = fn(tx, &order); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit order tx: %w", err)
	}

	return nil
}

func (r *orderRepository) loadItems(ctx context.Context, orderID string) ([]domain.OrderItem, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, product_id, qty, price_minor, created_at
		FROM order_items
		WHERE order_id = $1
		ORDER BY created_at ASC, id ASC
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("load order items: %w", err)
	}
	return collectItems(rows)
}

func (r *orderRepository) loadItemsTx(ctx context.Context, tx *sql.Tx, orderID string) ([]domain.OrderItem, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT id, product_id, qty, price_minor, created_at
		FROM order_items
		WHERE order_id = $1
		ORDER BY created_at ASC, id ASC
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("load order items: %w", err)
	}
	return collectItems(rows)
}

func (r *orderRepository) orderExists(ctx context.Context, id string) (bool, error) {
	var found string
	err := r.db.QueryRowContext(ctx, `SELECT id FROM orders WHERE id = $1`, id).Scan(&found)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return false, fmt.Errorf("check order exists: %w", err)
}

func collectItems(rows *sql.Rows) ([]domain.OrderItem, error) {
	defer rows.Close()

	items := make([]domain.OrderItem, 0)
	for rows.Next() {
		var item domain.OrderItem
		if err := rows.Scan(&item.ID, &item.ProductID, &item.Qty, &item.PriceMinor, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order items: %w", err)
	}

	return items, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (domain.Order, error) {
	var (
		order         domain.Order
		status        string
		method        string
		returnPayload []byte
		notifyPayload []byte
	)

	if err := row.Scan(
		&order.ID, &order.AccountID, &status, &method, &order.AmountMinor,
		&order.Receiver.Name, &order.Receiver.Email, &order.Receiver.Phone, &order.Receiver.Address, &order.Receiver.Note,
		&returnPayload, &notifyPayload, &order.Trail.LastTxnID, &order.Trail.ConfirmedAt, &order.Trail.FailedAt,
		&order.Version, &order.CreatedAt, &order.UpdatedAt, &order.ConfirmedAt, &order.CompletedAt, &order.CancelledAt,
	); err != nil {
		return domain.Order{}, err
	}

	order.Status = domain.OrderStatus(status)
	order.PaymentMethod = domain.PaymentMethod(method)

	var err error
	if order.Trail.ReturnPayload, err = unmarshalPayload(returnPayload); err != nil {
		return domain.Order{}, err
	}
	if order.Trail.NotifyPayload, err = unmarshalPayload(notifyPayload); err != nil {
		return domain.Order{}, err
	}

	return order, nil
}

func marshalTrail(trail domain.PaymentTrail) ([]byte, []byte, error) {
	returnPayload, err := marshalPayload(trail.ReturnPayload)
	if err != nil {
		return nil, nil, err
	}
	notifyPayload, err := marshalPayload(trail.NotifyPayload)
	if err != nil {
		return nil, nil, err
	}
	return returnPayload, notifyPayload, nil
}

func marshalPayload(payload map[string]string) ([]byte, error) {
	if payload == nil {
		return nil, nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal trail payload: %w", err)
	}
	return data, nil
}

func unmarshalPayload(data []byte) (map[string]string, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var payload map[string]string
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("unmarshal trail payload: %w", err)
	}
	return payload, nil
}

func buildOrderFilter(filter domain.OrderFilter) (string, []any) {
	conditions := make([]string, 0, 3)
	args := make([]any, 0, 3)

	if filter.AccountID != "" {
		args = append(args, filter.AccountID)
		conditions = append(conditions, fmt.Sprintf("account_id = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.PaymentMethod != "" {
		args = append(args, string(filter.PaymentMethod))
		conditions = append(conditions, fmt.Sprintf("payment_method = $%d", len(args)))
	}

	if len(conditions) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}

func orderSortClause(by domain.OrderSort) string {
	switch by {
	case domain.OrderSortOldest:
		return " ORDER BY created_at ASC, id DESC"
	case domain.OrderSortTotalDesc:
		return " ORDER BY amount_minor DESC, id DESC"
	case domain.OrderSortTotalAsc:
		return " ORDER BY amount_minor ASC, id DESC"
	default:
		return " ORDER BY created_at DESC, id DESC"
	}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

var _ domain.OrderRepository = (*orderRepository)(nil)
