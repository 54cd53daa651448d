package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

type paymentNoticeRepository struct {
	db *sql.DB
}

// NewPaymentNoticeRepository создаёт PostgreSQL-реализацию PaymentNoticeRepository.
func NewPaymentNoticeRepository(store *Store) domain.PaymentNoticeRepository {
	return &paymentNoticeRepository{db: store.DB()}
}

// CreateApplied записывает применённое уведомление. Повтор с тем же
// каналом и txn id упирается в первичный ключ и возвращает
// ErrNoticeAlreadyApplied: дедупликация решается самой вставкой.
func (r *paymentNoticeRepository) CreateApplied(notice domain.PaymentNotice) error {
	notice.TxnID = strings.TrimSpace(notice.TxnID)
	if notice.TxnID == "" {
		return domain.ErrNoticeTxnRequired
	}

	now := time.Now().UTC()
	if notice.ReceivedAt.IsZero() {
		notice.ReceivedAt = now
	}
	if notice.TTLAt.IsZero() {
		notice.TTLAt = now.Add(24 * time.Hour)
	}

	payload, err := marshalPayload(notice.Payload)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO payment_notices (
			channel, txn_id, order_id, result_code, payload, received_at, ttl_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7)
	`,
		string(notice.Channel), notice.TxnID, notice.OrderID, notice.ResultCode,
		payload, notice.ReceivedAt, notice.TTLAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrNoticeAlreadyApplied
		}
		return fmt.Errorf("create payment notice: %w", err)
	}

	return nil
}

func (r *paymentNoticeRepository) Get(channel domain.PaymentChannel, txnID string) (domain.PaymentNotice, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	var (
		notice     domain.PaymentNotice
		channelRaw string
		payload    []byte
	)

	err := r.db.QueryRowContext(ctx, `
		SELECT channel, txn_id, order_id, result_code, payload, received_at, ttl_at
		FROM payment_notices
		WHERE channel = $1 AND txn_id = $2
	`, string(channel), txnID).Scan(
		&channelRaw, &notice.TxnID, &notice.OrderID, &notice.ResultCode,
		&payload, &notice.ReceivedAt, &notice.TTLAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.PaymentNotice{}, domain.ErrNoticeNotFound
		}
		return domain.PaymentNotice{}, fmt.Errorf("get payment notice: %w", err)
	}

	notice.Channel = domain.PaymentChannel(channelRaw)
	if notice.Payload, err = unmarshalPayload(payload); err != nil {
		return domain.PaymentNotice{}, err
	}

	return notice, nil
}

func (r *paymentNoticeRepository) Delete(channel domain.PaymentChannel, txnID string) error {
	txnID = strings.TrimSpace(txnID)
	if txnID == "" {
		return domain.ErrNoticeTxnRequired
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	_, err := r.db.ExecContext(ctx, `
		DELETE FROM payment_notices
		WHERE channel = $1 AND txn_id = $2
	`, string(channel), txnID)
	if err != nil {
		return fmt.Errorf("delete payment notice: %w", err)
	}

	return nil
}

func (r *paymentNoticeRepository) DeleteExpired(before time.Time, limit int) (int, error) {
	if before.IsZero() {
		before = time.Now().UTC()
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	var (
		res sql.Result
		err error
	)

	if limit > 0 {
		res, err = r.db.ExecContext(ctx, `
			DELETE FROM payment_notices
			WHERE (channel, txn_id) IN (
				SELECT channel, txn_id
				FROM payment_notices
				WHERE ttl_at <= $1
				ORDER BY ttl_at ASC
				LIMIT $2
			)
		`, before, limit)
	} else {
		res, err = r.db.ExecContext(ctx, `
			DELETE FROM payment_notices
			WHERE ttl_at <= $1
		`, before)
	}
	if err != nil {
		return 0, fmt.Errorf("delete expired payment notices: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("payment notice rows affected: %w", err)
	}

	return int(affected), nil
}

var _ domain.PaymentNoticeRepository = (*paymentNoticeRepository)(nil)
