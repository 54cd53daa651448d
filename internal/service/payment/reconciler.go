package payment

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/service/outbox"
)

const defaultNoticeTTL = 24 * time.Hour

var gatewayCallbacks = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "storefront_gateway_callbacks_total",
	Help: "Total number of payment gateway callbacks grouped by channel and result.",
}, []string{"channel", "result"})

// Outcome — результат применения callback-а, достаточный для HTTP-ответа.
type Outcome struct {
	Order     domain.Order
	Success   bool
	Code      string
	TxnID     string
	Duplicate bool
}

// Reconciler сводит двухканальные подтверждения шлюза к единому состоянию
// заказа: подпись проверяется всегда, повторы гасятся по txn id, статус
// двигается только вперёд.
type Reconciler struct {
	gateway   *Gateway
	orders    domain.OrderRepository
	notices   domain.PaymentNoticeRepository
	recorder  *outbox.Recorder
	logger    *log.Entry
	noticeTTL time.Duration
}

// NewReconciler создаёт reconciler платёжных подтверждений.
func NewReconciler(
	gateway *Gateway,
	orders domain.OrderRepository,
	notices domain.PaymentNoticeRepository,
	recorder *outbox.Recorder,
	logger *log.Entry,
) *Reconciler {
	if logger == nil {
		logger = log.WithField("component", "payment-reconciler")
	}
	return &Reconciler{
		gateway:   gateway,
		orders:    orders,
		notices:   notices,
		recorder:  recorder,
		logger:    logger,
		noticeTTL: defaultNoticeTTL,
	}
}

// Apply обрабатывает callback шлюза, пришедший по указанному каналу.
// Невалидная подпись отклоняется без единой мутации. Точный повтор
// (тот же канал + txn id) полностью игнорируется: Outcome.Duplicate=true,
// заказ не меняется.
func (r *Reconciler) Apply(ctx context.Context, channel domain.PaymentChannel, params map[string]string) (Outcome, error) {
	if err := ctx.Err(); err != nil {
		return Outcome{}, err
	}

	if err := r.gateway.VerifyParams(params); err != nil {
		gatewayCallbacks.WithLabelValues(string(channel), "invalid_signature").Inc()
		r.logger.WithFields(log.Fields{
			"channel":   channel,
			"txn_ref":   params[paramTxnRef],
			"resp_code": params[paramRespCode],
		}).Warn("gateway callback rejected: bad signature")
		return Outcome{}, err
	}

	orderID := params[paramTxnRef]
	code := params[paramRespCode]
	txnID := params[paramTxnNo]
	success := code == domain.ResultCodeSuccess
	now := time.Now().UTC()

	if orderID == "" {
		gatewayCallbacks.WithLabelValues(string(channel), "no_order").Inc()
		return Outcome{}, domain.ErrOrderNotFound
	}

	notice := domain.PaymentNotice{
		TxnID:      txnID,
		OrderID:    orderID,
		Channel:    channel,
		ResultCode: code,
		Payload:    params,
		ReceivedAt: now,
		TTLAt:      now.Add(r.noticeTTL),
	}
	if err := r.notices.CreateApplied(notice); err != nil {
		if errors.Is(err, domain.ErrNoticeAlreadyApplied) {
			gatewayCallbacks.WithLabelValues(string(channel), "duplicate").Inc()
			order, getErr := r.orders.Get(orderID)
			if getErr != nil {
				return Outcome{Success: success, Code: code, TxnID: txnID, Duplicate: true}, nil
			}
			return Outcome{Order: order, Success: success, Code: code, TxnID: txnID, Duplicate: true}, nil
		}
		return Outcome{}, err
	}

	order, applied, err := r.orders.ApplyPaymentResult(orderID, domain.PaymentResult{
		Channel: channel,
		Success: success,
		Code:    code,
		TxnID:   txnID,
		Payload: params,
		At:      now,
	})
	if err != nil {
		gatewayCallbacks.WithLabelValues(string(channel), "error").Inc()
		// Запись дедупликации снимается, иначе повторная доставка после
		// транзиентного сбоя погасится как дубликат и заказ зависнет.
		if delErr := r.notices.Delete(channel, txnID); delErr != nil {
			r.logger.WithFields(log.Fields{
				"channel":  channel,
				"order_id": orderID,
				"txn_id":   txnID,
			}).WithError(delErr).Error("failed to release payment notice after apply error")
		}
		return Outcome{}, err
	}

	entry := r.logger.WithFields(log.Fields{
		"channel":   channel,
		"order_id":  orderID,
		"txn_id":    txnID,
		"resp_code": code,
	})

	switch {
	case applied:
		gatewayCallbacks.WithLabelValues(string(channel), "confirmed").Inc()
		entry.Info("payment confirmed")
		r.recorder.Emit(orderID, "PaymentConfirmed", "", map[string]any{
			"channel": string(channel),
			"txn_id":  txnID,
		})
	case success:
		// Повторный успех по другой транзакции: след обновлён, статус уже confirmed.
		gatewayCallbacks.WithLabelValues(string(channel), "already_confirmed").Inc()
		entry.Info("payment success on already confirmed order")
	default:
		gatewayCallbacks.WithLabelValues(string(channel), "failed").Inc()
		entry.Info("payment failed")
		r.recorder.Emit(orderID, "PaymentFailed", code, map[string]any{
			"channel":   string(channel),
			"txn_id":    txnID,
			"resp_code": code,
		})
	}

	return Outcome{Order: order, Success: success, Code: code, TxnID: txnID}, nil
}
