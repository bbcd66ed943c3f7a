package zru

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// TransactionRequest creates a one-time payment.
type TransactionRequest struct {
	OrderID   int64      `json:"order_id"`
	Currency  string     `json:"currency"`
	ReturnURL string     `json:"return_url"`
	CancelURL string     `json:"cancel_url"`
	NotifyURL string     `json:"notify_url"`
	Language  string     `json:"language,omitempty"`
	Products  []LineItem `json:"products"`
	Extra     Extra      `json:"extra"`
}

// SubscriptionRequest creates a recurring payment.
type SubscriptionRequest struct {
	OrderID   int64  `json:"order_id"`
	Currency  string `json:"currency"`
	ReturnURL string `json:"return_url"`
	CancelURL string `json:"cancel_url"`
	NotifyURL string `json:"notify_url"`
	Language  string `json:"language,omitempty"`
	Plan      Plan   `json:"plan"`
	Extra     Extra  `json:"extra"`
}

type LineItem struct {
	Amount  int     `json:"amount"`
	Product Product `json:"product"`
}

type Product struct {
	Name  string      `json:"name"`
	Price json.Number `json:"price"`
}

type Plan struct {
	Name      string      `json:"name"`
	Price     json.Number `json:"price"`
	Duration  int         `json:"duration"`
	Unit      string      `json:"unit"`
	Recurring bool        `json:"recurring"`
}

// Extra carries customer identity, addresses and integration metadata.
type Extra struct {
	FirstName           string  `json:"first_name"`
	LastName            string  `json:"last_name"`
	Email               string  `json:"email"`
	PhoneNumber         string  `json:"phone_number"`
	Country             string  `json:"country"`
	BillingStreetName   string  `json:"billing_street_name"`
	BillingPostalCode   string  `json:"billing_postal_code"`
	BillingCountryCode  string  `json:"billing_country_code"`
	BillingCity         string  `json:"billing_city"`
	BillingProvince     string  `json:"billing_province"`
	ShippingStreetName  string  `json:"shipping_street_name"`
	ShippingPostalCode  string  `json:"shipping_postal_code"`
	ShippingCountryCode string  `json:"shipping_country_code"`
	ShippingCity        string  `json:"shipping_city"`
	ShippingProvince    string  `json:"shipping_province"`
	UserID              string  `json:"user_id"`
	Lib                 LibInfo `json:"zru_lib"`
}

type LibInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// Price renders an amount as an exact JSON number.
func Price(d decimal.Decimal) json.Number {
	return json.Number(d.StringFixed(2))
}
