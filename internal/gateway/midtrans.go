package gateway

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"tour-booking/internal/data/entity"
	"tour-booking/pkg/utils"

	"github.com/midtrans/midtrans-go"
	"github.com/midtrans/midtrans-go/coreapi"
	"github.com/midtrans/midtrans-go/snap"
	"go.uber.org/zap"
)

const ProviderMidtrans = "midtrans"

type MidtransConfig struct {
	ServerKey    string
	IsProduction bool
	// BaseURL replaces the scheme and host of every SDK request when set.
	BaseURL   string
	FinishURL string
	Timeout   time.Duration
}

func MidtransConfigFrom(cfg utils.PaymentConfig) MidtransConfig {
	return MidtransConfig{
		ServerKey:    cfg.ServerKey,
		IsProduction: cfg.IsProduction,
		BaseURL:      cfg.BaseURL,
		FinishURL:    cfg.FinishURL,
		Timeout:      cfg.HTTPTimeout,
	}
}

// Midtrans creates Snap checkouts and reads the core API transaction status.
type Midtrans struct {
	cfg     MidtransConfig
	snap    snap.Client
	core    coreapi.Client
	timeout time.Duration
	log     *zap.Logger
}

func NewMidtrans(cfg MidtransConfig, log *zap.Logger) *Midtrans {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	env := midtrans.Sandbox
	if cfg.IsProduction {
		env = midtrans.Production
	}

	m := &Midtrans{
		cfg:     cfg,
		timeout: timeout,
		log:     log.With(zap.String("gateway", ProviderMidtrans)),
	}
	m.snap.New(cfg.ServerKey, env)
	m.core.New(cfg.ServerKey, env)
	m.snap.HttpClient = m.httpClient(m.snap.HttpClient)
	m.core.HttpClient = m.httpClient(m.core.HttpClient)

	return m
}

// httpClient applies the request timeout and the base URL override to an SDK client.
func (m *Midtrans) httpClient(c midtrans.HttpClient) midtrans.HttpClient {
	if impl, ok := c.(*midtrans.HttpClientImplementation); ok {
		impl.HttpClient = &http.Client{Timeout: m.timeout}
	}
	if m.cfg.BaseURL == "" {
		return c
	}
	base, err := url.Parse(strings.TrimRight(m.cfg.BaseURL, "/"))
	if err != nil || base.Host == "" {
		m.log.Warn("Ignoring invalid payment base URL", zap.String("base_url", m.cfg.BaseURL))
		return c
	}
	return &rebaseClient{next: c, base: base}
}

func (m *Midtrans) Name() string {
	return ProviderMidtrans
}

// ChargedAmount: Snap only accepts whole currency units.
func (m *Midtrans) ChargedAmount(amount float64) float64 {
	return math.Round(amount)
}

// ==================== CHECKOUT ====================

func (m *Midtrans) CreateCheckout(ctx context.Context, req CheckoutRequest) (*Checkout, error) {
	gross := int64(m.ChargedAmount(req.Amount))
	snapReq := &snap.Request{
		TransactionDetails: midtrans.TransactionDetails{
			OrderID:  req.OrderID,
			GrossAmt: gross,
		},
		CustomerDetail: &midtrans.CustomerDetails{
			FName: req.Customer.Name,
			Email: req.Customer.Email,
			Phone: req.Customer.Phone,
		},
	}

	// Item prices must add up to gross_amount exactly, so only send them when they do.
	var itemsTotal int64
	items := make([]midtrans.ItemDetails, 0, len(req.Items))
	for _, it := range req.Items {
		price := int64(m.ChargedAmount(it.Price))
		itemsTotal += price * int64(it.Quantity)
		items = append(items, midtrans.ItemDetails{
			ID:    it.ID,
			Name:  truncate(it.Name, 50),
			Price: price,
			Qty:   int32(it.Quantity),
		})
	}
	if len(items) > 0 && itemsTotal == gross {
		snapReq.Items = &items
	}

	if m.cfg.FinishURL != "" {
		snapReq.Callbacks = &snap.Callbacks{Finish: m.cfg.FinishURL}
	}
	if req.ExpiryMinutes > 0 {
		snapReq.Expiry = &snap.ExpiryDetails{Unit: "minute", Duration: int64(req.ExpiryMinutes)}
	}

	resp, merr, err := await(ctx, m.timeout, func() (*snap.Response, *midtrans.Error) {
		return m.snap.CreateTransaction(snapReq)
	})
	if err != nil {
		m.log.Error("Snap request failed", zap.Error(err), zap.String("order_id", req.OrderID))
		return nil, fmt.Errorf("snap create transaction: %w", err)
	}
	if merr != nil {
		m.log.Warn("Snap rejected transaction",
			zap.Int("status", merr.StatusCode),
			zap.String("order_id", req.OrderID),
			zap.String("error", merr.GetMessage()),
		)
		return nil, fmt.Errorf("snap create transaction: status %d: %s", merr.StatusCode, merr.GetMessage())
	}
	if resp == nil || resp.Token == "" {
		return nil, fmt.Errorf("snap create transaction: empty token")
	}

	m.log.Info("Snap transaction created", zap.String("order_id", req.OrderID))
	return &Checkout{Token: resp.Token, RedirectURL: resp.RedirectURL}, nil
}

// ==================== STATUS & NOTIFICATION ====================

type notificationBody struct {
	OrderID           string `json:"order_id"`
	TransactionID     string `json:"transaction_id"`
	TransactionStatus string `json:"transaction_status"`
	FraudStatus       string `json:"fraud_status"`
	StatusCode        string `json:"status_code"`
	GrossAmount       string `json:"gross_amount"`
	PaymentType       string `json:"payment_type"`
	SignatureKey      string `json:"signature_key"`
	StatusMessage     string `json:"status_message"`
}

func (m *Midtrans) GetStatus(ctx context.Context, orderID string) (*Notification, error) {
	resp, merr, err := await(ctx, m.timeout, func() (*coreapi.TransactionStatusResponse, *midtrans.Error) {
		return m.core.CheckTransaction(orderID)
	})
	if err != nil {
		m.log.Error("Status request failed", zap.Error(err), zap.String("order_id", orderID))
		return nil, fmt.Errorf("get transaction status: %w", err)
	}
	// the status API reports a missing order inside the body, not only via HTTP status
	if merr != nil && merr.StatusCode == http.StatusNotFound {
		return nil, ErrTransactionNotFound
	}
	if merr != nil {
		return nil, fmt.Errorf("get transaction status: status %d: %s", merr.StatusCode, merr.GetMessage())
	}
	if resp == nil || resp.StatusCode == "404" {
		return nil, ErrTransactionNotFound
	}

	raw, err := json.Marshal(resp)
	if err != nil {
		return nil, fmt.Errorf("encode status response: %w", err)
	}

	return toNotification(notificationBody{
		OrderID:           resp.OrderID,
		TransactionID:     resp.TransactionID,
		TransactionStatus: resp.TransactionStatus,
		FraudStatus:       resp.FraudStatus,
		StatusCode:        resp.StatusCode,
		GrossAmount:       resp.GrossAmount,
		PaymentType:       resp.PaymentType,
		StatusMessage:     resp.StatusMessage,
	}, raw)
}

func (m *Midtrans) ParseNotification(body []byte) (*Notification, error) {
	var n notificationBody
	if err := json.Unmarshal(body, &n); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	if n.OrderID == "" || n.StatusCode == "" || n.GrossAmount == "" || n.SignatureKey == "" {
		return nil, fmt.Errorf("%w: missing order_id, status_code, gross_amount or signature_key", ErrMalformedPayload)
	}

	if !m.validSignature(n) {
		m.log.Warn("Rejected notification with bad signature", zap.String("order_id", n.OrderID))
		return nil, ErrInvalidSignature
	}

	return toNotification(n, body)
}

// Signature is SHA512(order_id + status_code + gross_amount + server_key), hex encoded.
func (m *Midtrans) Signature(orderID, statusCode, grossAmount string) string {
	sum := sha512.Sum512([]byte(orderID + statusCode + grossAmount + m.cfg.ServerKey))
	return hex.EncodeToString(sum[:])
}

func (m *Midtrans) validSignature(n notificationBody) bool {
	expected := m.Signature(n.OrderID, n.StatusCode, n.GrossAmount)
	return hmac.Equal([]byte(expected), []byte(strings.ToLower(n.SignatureKey)))
}

func toNotification(n notificationBody, raw []byte) (*Notification, error) {
	amount, err := strconv.ParseFloat(n.GrossAmount, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: gross_amount %q", ErrMalformedPayload, n.GrossAmount)
	}

	return &Notification{
		OrderID:           n.OrderID,
		TransactionID:     n.TransactionID,
		TransactionStatus: n.TransactionStatus,
		FraudStatus:       n.FraudStatus,
		StatusCode:        n.StatusCode,
		GrossAmount:       amount,
		PaymentType:       n.PaymentType,
		Status:            MapMidtransStatus(n.TransactionStatus, n.FraudStatus),
		Raw:               raw,
	}, nil
}

// MapMidtransStatus normalises a provider status. Refund and chargeback
// states map to "" and are ignored by settlement.
func MapMidtransStatus(transactionStatus, fraudStatus string) entity.PaymentStatus {
	switch transactionStatus {
	case "capture":
		switch fraudStatus {
		case "challenge":
			return entity.PaymentStatusPending
		case "deny":
			return entity.PaymentStatusFailed
		default:
			return entity.PaymentStatusPaid
		}
	case "settlement":
		return entity.PaymentStatusPaid
	case "pending", "authorize":
		return entity.PaymentStatusPending
	case "deny", "cancel", "failure":
		return entity.PaymentStatusFailed
	case "expire":
		return entity.PaymentStatusExpired
	default:
		return ""
	}
}

// ==================== SDK PLUMBING ====================

type sdkResult[T any] struct {
	val T
	err *midtrans.Error
}

// await runs a blocking SDK call and gives up when ctx ends first.
// The SDK error comes back as a concrete pointer so a nil one never turns into a non-nil error.
func await[T any](ctx context.Context, timeout time.Duration, call func() (T, *midtrans.Error)) (T, *midtrans.Error, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan sdkResult[T], 1)
	go func() {
		val, err := call()
		done <- sdkResult[T]{val: val, err: err}
	}()

	select {
	case res := <-done:
		return res.val, res.err, nil
	case <-ctx.Done():
		var zero T
		return zero, nil, ctx.Err()
	}
}

// rebaseClient points SDK requests at another host, e.g. a local mock of the provider.
type rebaseClient struct {
	next midtrans.HttpClient
	base *url.URL
}

func (c *rebaseClient) Call(method, rawURL string, apiKey *string, options *midtrans.ConfigOptions, body io.Reader, result interface{}) *midtrans.Error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return &midtrans.Error{Message: "invalid request url: " + err.Error(), RawError: err}
	}
	u.Scheme = c.base.Scheme
	u.Host = c.base.Host
	u.Path = c.base.Path + u.Path
	return c.next.Call(method, u.String(), apiKey, options, body, result)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
