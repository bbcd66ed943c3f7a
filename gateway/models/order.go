package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusCompleted  OrderStatus = "completed"
	OrderStatusFailed     OrderStatus = "failed"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

type Address struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email,omitempty"`
	Phone     string `json:"phone,omitempty"`
	Address1  string `json:"address_1"`
	Address2  string `json:"address_2,omitempty"`
	City      string `json:"city"`
	State     string `json:"state"`
	Postcode  string `json:"postcode"`
	Country   string `json:"country"`
}

// Recurring describes the billing schedule of an order holding a
// subscription item. Period is the store's unit (day, week, month, year).
type Recurring struct {
	Period         string          `json:"period"`
	Interval       int             `json:"interval"`
	InitialPayment decimal.Decimal `json:"initial_payment"`
}

type Note struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

type Order struct {
	ID         int64           `json:"id"`
	Status     OrderStatus     `json:"status"`
	Currency   string          `json:"currency"`
	Total      decimal.Decimal `json:"total"`
	Locale     string          `json:"locale,omitempty"`
	CustomerID string          `json:"customer_id,omitempty"`
	Billing    Address         `json:"billing"`
	Shipping   Address         `json:"shipping"`
	// ReturnURL and CancelURL are where the shopper lands after the hosted page.
	ReturnURL string `json:"return_url"`
	CancelURL string `json:"cancel_url"`
	// PaymentPageURL is the store page that embeds the payment frame.
	PaymentPageURL    string     `json:"payment_page_url,omitempty"`
	Recurring         *Recurring `json:"recurring,omitempty"`
	ExternalReference string     `json:"external_reference,omitempty"`
	Notes             []Note     `json:"notes"`
	CreatedAt         time.Time  `json:"created_at"`
}

func (o *Order) ContainsRecurringItem() bool { return o.Recurring != nil }

// IsPaid reports whether a payment has already been recorded.
func (o *Order) IsPaid() bool {
	return o.Status == OrderStatusProcessing || o.Status == OrderStatusCompleted
}

// CreateOrder seeds a local order through the dev endpoints.
type CreateOrder struct {
	ID             int64           `json:"id"`
	Currency       string          `json:"currency"`
	Total          decimal.Decimal `json:"total"`
	Locale         string          `json:"locale"`
	CustomerID     string          `json:"customer_id"`
	Billing        Address         `json:"billing"`
	Shipping       Address         `json:"shipping"`
	ReturnURL      string          `json:"return_url"`
	CancelURL      string          `json:"cancel_url"`
	PaymentPageURL string          `json:"payment_page_url"`
	Recurring      *Recurring      `json:"recurring"`
}
