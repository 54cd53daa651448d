package payment

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// Параметры протокола шлюза. Значения и формат зафиксированы провайдером,
// менять их нельзя.
const (
	paramVersion    = "vnp_Version"
	paramCommand    = "vnp_Command"
	paramTmnCode    = "vnp_TmnCode"
	paramAmount     = "vnp_Amount"
	paramCurrCode   = "vnp_CurrCode"
	paramTxnRef     = "vnp_TxnRef"
	paramOrderInfo  = "vnp_OrderInfo"
	paramOrderType  = "vnp_OrderType"
	paramLocale     = "vnp_Locale"
	paramReturnURL  = "vnp_ReturnUrl"
	paramIPAddr     = "vnp_IpAddr"
	paramCreateDate = "vnp_CreateDate"
	paramSecureHash = "vnp_SecureHash"
	paramHashType   = "vnp_SecureHashType"
	paramRespCode   = "vnp_ResponseCode"
	paramTxnNo      = "vnp_TransactionNo"

	protocolVersion = "2.1.0"
	commandPay      = "pay"
	currencyCode    = "VND"
	orderTypeOther  = "other"
	localeVN        = "vn"

	createDateLayout = "20060102150405"
)

// GatewayConfig — учётные данные и адреса платёжного шлюза.
type GatewayConfig struct {
	TmnCode    string
	HashSecret string
	PayURL     string
	ReturnURL  string
}

// Gateway строит платёжные URL и проверяет подписи callback-ов по
// HMAC-SHA512 протоколу провайдера.
type Gateway struct {
	cfg GatewayConfig
}

// NewGateway создаёт gateway с заданной конфигурацией.
func NewGateway(cfg GatewayConfig) *Gateway {
	return &Gateway{cfg: cfg}
}

// BuildPaymentURL собирает redirect-URL оплаты заказа.
// Сумма передаётся в сотых долях (amount * 100), дата — локальным
// timestamp-ом в формате YYYYMMDDHHMMSS.
func (g *Gateway) BuildPaymentURL(order domain.Order, clientIP string, now time.Time) (string, error) {
	params := map[string]string{
		paramVersion:    protocolVersion,
		paramCommand:    commandPay,
		paramTmnCode:    g.cfg.TmnCode,
		paramAmount:     strconv.FormatInt(order.AmountMinor*100, 10),
		paramCurrCode:   currencyCode,
		paramTxnRef:     order.ID,
		paramOrderInfo:  "Thanh toan don hang " + order.ID,
		paramOrderType:  orderTypeOther,
		paramLocale:     localeVN,
		paramReturnURL:  g.cfg.ReturnURL,
		paramIPAddr:     clientIP,
		paramCreateDate: now.Format(createDateLayout),
	}

	query := encodeSorted(params)
	signature := g.SignParams(params)

	u, err := url.Parse(g.cfg.PayURL)
	if err != nil {
		return "", err
	}
	u.RawQuery = query + "&" + paramSecureHash + "=" + signature
	return u.String(), nil
}

// VerifyParams проверяет подпись callback-а константным сравнением.
// Подписываются только vnp_-параметры без vnp_SecureHash и
// vnp_SecureHashType; любое расхождение — ErrInvalidSignature.
func (g *Gateway) VerifyParams(params map[string]string) error {
	received, ok := params[paramSecureHash]
	if !ok || received == "" {
		return domain.ErrInvalidSignature
	}

	signable := make(map[string]string, len(params))
	for key, value := range params {
		if !strings.HasPrefix(key, "vnp_") {
			continue
		}
		if key == paramSecureHash || key == paramHashType {
			continue
		}
		signable[key] = value
	}

	expected := g.SignParams(signable)
	if !hmac.Equal([]byte(expected), []byte(strings.ToLower(received))) {
		return domain.ErrInvalidSignature
	}
	return nil
}

// SignParams считает подпись набора параметров: HMAC-SHA512 от канонической
// строки запроса, hex в нижнем регистре.
func (g *Gateway) SignParams(params map[string]string) string {
	mac := hmac.New(sha512.New, []byte(g.cfg.HashSecret))
	mac.Write([]byte(encodeSorted(params)))
	return hex.EncodeToString(mac.Sum(nil))
}

// encodeSorted строит каноническую строку запроса: ключи в лексикографическом
// порядке, значения percent-encoded с пробелом как `+`.
func encodeSorted(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for key := range params {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var sb strings.Builder
	for i, key := range keys {
		if i > 0 {
			sb.WriteByte('&')
		}
		sb.WriteString(key)
		sb.WriteByte('=')
		sb.WriteString(url.QueryEscape(params[key]))
	}
	return sb.String()
}
