package zru

import (
	"context"

	"golang.org/x/exp/slog"
)

// Client is the entry point to the ZRU API. It holds one Resource per kind,
// built once from the fixed descriptor table.
type Client struct {
	req       *APIRequest
	logger    *slog.Logger
	resources map[Kind]*Resource
}

func NewClient(creds Credentials, opts ...Option) *Client {
	req := NewAPIRequest(creds, opts...)
	c := &Client{
		req:       req,
		logger:    req.logger.With(slog.String("component", "zru")),
		resources: make(map[Kind]*Resource, len(descriptors)),
	}
	for _, d := range descriptors {
		c.resources[d.Kind] = &Resource{desc: d, req: req}
	}
	return c
}

// Resource returns the resource for kind, or nil for an unknown kind.
func (c *Client) Resource(kind Kind) *Resource { return c.resources[kind] }

func (c *Client) Product() *Resource       { return c.resources[KindProduct] }
func (c *Client) Plan() *Resource          { return c.resources[KindPlan] }
func (c *Client) Tax() *Resource           { return c.resources[KindTax] }
func (c *Client) Shipping() *Resource      { return c.resources[KindShipping] }
func (c *Client) Coupon() *Resource        { return c.resources[KindCoupon] }
func (c *Client) Transaction() *Resource   { return c.resources[KindTransaction] }
func (c *Client) Subscription() *Resource  { return c.resources[KindSubscription] }
func (c *Client) Authorization() *Resource { return c.resources[KindAuthorization] }
func (c *Client) Currency() *Resource      { return c.resources[KindCurrency] }
func (c *Client) Gateway() *Resource       { return c.resources[KindGateway] }
func (c *Client) PayData() *Resource       { return c.resources[KindPayData] }
func (c *Client) Sale() *Resource          { return c.resources[KindSale] }
func (c *Client) Client() *Resource        { return c.resources[KindClient] }
func (c *Client) Wallet() *Resource        { return c.resources[KindWallet] }

// CreateTransaction persists a one-time payment and returns it with its
// pay and iframe URLs.
func (c *Client) CreateTransaction(ctx context.Context, req TransactionRequest) (*Object, error) {
	return c.Transaction().Create(ctx, req)
}

// CreateSubscription persists a recurring payment. The plan is always sent
// as recurring.
func (c *Client) CreateSubscription(ctx context.Context, req SubscriptionRequest) (*Object, error) {
	req.Plan.Recurring = true
	return c.Subscription().Create(ctx, req)
}
