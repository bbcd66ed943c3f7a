package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/zrupay/zrugate/gateway/models"
	"github.com/zrupay/zrugate/internal/metrics"
	"github.com/zrupay/zrugate/internal/period"
	"github.com/zrupay/zrugate/internal/zru"
	"golang.org/x/exp/slog"
)

// Integration metadata sent with every payment.
const (
	LibName    = "zrugate"
	LibVersion = "1.0.0"
)

var (
	ErrMissingReference = fmt.Errorf("refund failed because transaction id is empty")
	ErrInvalidAmount    = fmt.Errorf("invalid refund amount")
)

// RefundError is returned when the payment API did not accept a refund.
type RefundError struct {
	OrderID int64
	Amount  decimal.Decimal
	Err     error
}

func (e *RefundError) Error() string {
	msg := fmt.Sprintf("refund of %s for order %d failed", e.Amount.StringFixed(2), e.OrderID)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *RefundError) Unwrap() error { return e.Err }

// Mode tells the checkout how to show a URL to the shopper.
type Mode string

const (
	ModeRedirect      Mode = "redirect"
	ModeEmbeddedFrame Mode = "embedded_frame"
)

type Presentation struct {
	Mode Mode   `json:"mode"`
	URL  string `json:"url"`
}

// PaymentMethod is what the checkout lists for this gateway.
type PaymentMethod struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Icon        string `json:"icon,omitempty"`
	Ready       bool   `json:"ready"`
}

var languages = map[string]struct{}{
	"es": {}, "en": {}, "pt": {}, "ca": {}, "de": {}, "it": {}, "fr": {}, "gl": {}, "eu": {},
}

// Language maps a store locale such as "es_ES" to a checkout language.
// Locales outside the supported set give "".
func Language(locale string) string {
	if len(locale) < 2 {
		return ""
	}
	l := strings.ToLower(locale[:2])
	if _, ok := languages[l]; !ok {
		return ""
	}
	return l
}

// SplitName fills a missing last name from the first-name field: "Jane Doe"
// becomes ("Jane", "Doe") and a single word is used for both.
func SplitName(first, last string) (string, string) {
	first = strings.TrimSpace(first)
	last = strings.TrimSpace(last)
	if last != "" {
		return first, last
	}
	parts := strings.Fields(first)
	switch len(parts) {
	case 0:
		return "", ""
	case 1:
		return parts[0], parts[0]
	default:
		return parts[0], strings.Join(parts[1:], " ")
	}
}

// Gateway starts payments for local orders and refunds them.
type Gateway struct {
	client  *zru.Client
	store   OrderStore
	config  *Config
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func NewGateway(client *zru.Client, store OrderStore, config *Config, logger *slog.Logger, mx *metrics.Metrics) *Gateway {
	if config == nil {
		config = DefaultConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{
		client:  client,
		store:   store,
		config:  config,
		logger:  logger.With(slog.String("component", "gateway")),
		metrics: mx,
	}
}

func (g *Gateway) Ready() bool { return g.config.Ready() }

func (g *Gateway) Method() PaymentMethod {
	return PaymentMethod{
		ID:          "zru",
		Title:       g.config.Title,
		Description: g.config.Description,
		Icon:        g.config.Icon,
		Ready:       g.Ready(),
	}
}

// Checkout is called when the shopper places the order. In iframe mode the
// shopper is first sent to the order's payment page, which then calls
// StartPayment to get the frame.
func (g *Gateway) Checkout(ctx context.Context, orderID int64) (Presentation, error) {
	if g.config.Way != WayIframe {
		return g.StartPayment(ctx, orderID)
	}
	order, err := g.store.GetOrder(ctx, orderID)
	if err != nil {
		return Presentation{}, fmt.Errorf("getting order %d: %w", orderID, err)
	}
	if order.PaymentPageURL == "" {
		return g.StartPayment(ctx, orderID)
	}
	return Presentation{Mode: ModeRedirect, URL: order.PaymentPageURL}, nil
}

// StartPayment creates the remote transaction, or subscription for orders
// with a recurring item, and returns the URL to present. The local order is
// not modified.
func (g *Gateway) StartPayment(ctx context.Context, orderID int64) (Presentation, error) {
	order, err := g.store.GetOrder(ctx, orderID)
	if err != nil {
		return Presentation{}, fmt.Errorf("getting order %d: %w", orderID, err)
	}

	kind := "transaction"
	if order.ContainsRecurringItem() {
		kind = "subscription"
	}
	mode := ModeRedirect
	if g.config.Way == WayIframe {
		mode = ModeEmbeddedFrame
	}

	obj, err := g.createPayment(ctx, order)
	if err != nil {
		g.metrics.Checkout(kind, string(mode), "error")
		return Presentation{}, fmt.Errorf("creating %s for order %d: %w", kind, orderID, err)
	}

	url := obj.PayURL()
	if mode == ModeEmbeddedFrame {
		url = obj.IframeURL()
	}
	if url == "" {
		g.metrics.Checkout(kind, string(mode), "error")
		return Presentation{}, fmt.Errorf("%s %s for order %d has no %s url", kind, obj.ID, orderID, mode)
	}

	g.metrics.Checkout(kind, string(mode), "ok")
	g.logger.Info("payment started",
		slog.Int64("order_id", orderID),
		slog.String("kind", kind),
		slog.String("remote_id", obj.ID),
		slog.String("mode", string(mode)),
	)
	return Presentation{Mode: mode, URL: url}, nil
}

func (g *Gateway) createPayment(ctx context.Context, order *models.Order) (*zru.Object, error) {
	currency := order.Currency
	if currency == "" {
		currency = g.config.Currency
	}
	extra := buildExtra(order)
	language := Language(order.Locale)

	if !order.ContainsRecurringItem() {
		return g.client.CreateTransaction(ctx, zru.TransactionRequest{
			OrderID:   order.ID,
			Currency:  currency,
			ReturnURL: order.ReturnURL,
			CancelURL: order.CancelURL,
			NotifyURL: g.config.NotifyURL,
			Language:  language,
			Products: []zru.LineItem{{
				Amount: 1,
				Product: zru.Product{
					Name:  fmt.Sprintf("Payment of order %d", order.ID),
					Price: zru.Price(order.Total),
				},
			}},
			Extra: extra,
		})
	}

	rec := order.Recurring
	interval, err := period.Interval(rec.Interval)
	if err != nil {
		return nil, err
	}
	unit := period.Unit(rec.Period)
	if err := period.ValidateUnit(unit); err != nil {
		return nil, err
	}
	price := rec.InitialPayment
	if price.IsZero() {
		price = order.Total
	}
	return g.client.CreateSubscription(ctx, zru.SubscriptionRequest{
		OrderID:   order.ID,
		Currency:  currency,
		ReturnURL: order.ReturnURL,
		CancelURL: order.CancelURL,
		NotifyURL: g.config.NotifyURL,
		Language:  language,
		Plan: zru.Plan{
			Name:      fmt.Sprintf("Subscription of order %d", order.ID),
			Price:     zru.Price(price),
			Duration:  interval,
			Unit:      unit,
			Recurring: true,
		},
		Extra: extra,
	})
}

func buildExtra(order *models.Order) zru.Extra {
	first, last := SplitName(order.Billing.FirstName, order.Billing.LastName)
	b, s := order.Billing, order.Shipping
	return zru.Extra{
		FirstName:           first,
		LastName:            last,
		Email:               b.Email,
		PhoneNumber:         b.Phone,
		Country:             b.Country,
		BillingStreetName:   streetName(b),
		BillingPostalCode:   b.Postcode,
		BillingCountryCode:  b.Country,
		BillingCity:         b.City,
		BillingProvince:     b.State,
		ShippingStreetName:  streetName(s),
		ShippingPostalCode:  s.Postcode,
		ShippingCountryCode: s.Country,
		ShippingCity:        s.City,
		ShippingProvince:    s.State,
		UserID:              order.CustomerID,
		Lib:                 zru.LibInfo{Name: LibName, Version: LibVersion},
	}
}

func streetName(a models.Address) string {
	return strings.Join(strings.Fields(a.Address1+" "+a.Address2), " ")
}

// Refund returns amount of the order's payment; a zero amount refunds the
// order total. A failed refund leaves a note on the order.
func (g *Gateway) Refund(ctx context.Context, orderID int64, amount decimal.Decimal) error {
	order, err := g.store.GetOrder(ctx, orderID)
	if err != nil {
		return fmt.Errorf("getting order %d: %w", orderID, err)
	}
	if order.ExternalReference == "" {
		g.metrics.Refund("missing_reference")
		return ErrMissingReference
	}
	if amount.IsNegative() {
		return fmt.Errorf("%w: %s", ErrInvalidAmount, amount)
	}
	if amount.IsZero() {
		amount = order.Total
	}

	logger := g.logger.With(
		slog.Int64("order_id", orderID),
		slog.String("sale_id", order.ExternalReference),
		slog.String("amount", amount.StringFixed(2)),
	)

	if err := g.refund(ctx, order.ExternalReference, amount); err != nil {
		g.metrics.Refund("failed")
		logger.Warn("refund failed", slog.Any("err", err))
		if nerr := g.store.AppendNote(ctx, orderID, "Refund failed"); nerr != nil {
			logger.Error("annotating failed refund", slog.Any("err", nerr))
		}
		return &RefundError{OrderID: orderID, Amount: amount, Err: err}
	}

	g.metrics.Refund("ok")
	logger.Info("refund accepted")
	if err := g.store.AppendNote(ctx, orderID, "ZRU Refund Amount: "+amount.StringFixed(2)); err != nil {
		return fmt.Errorf("annotating order %d: %w", orderID, err)
	}
	return nil
}

func (g *Gateway) refund(ctx context.Context, saleID string, amount decimal.Decimal) error {
	sale, err := g.client.Sale().Retrieve(ctx, saleID)
	if err != nil {
		return err
	}
	res, err := g.client.Sale().Refund(ctx, sale.ID, amount)
	if err != nil {
		return err
	}
	if !res.Success {
		return errors.New("refund was not accepted")
	}
	return nil
}
