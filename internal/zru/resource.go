package zru

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/shopspring/decimal"
)

// Kind names a category of remote object.
type Kind string

const (
	KindProduct       Kind = "product"
	KindPlan          Kind = "plan"
	KindTax           Kind = "tax"
	KindShipping      Kind = "shipping"
	KindCoupon        Kind = "coupon"
	KindTransaction   Kind = "transaction"
	KindSubscription  Kind = "subscription"
	KindAuthorization Kind = "authorization"
	KindCurrency      Kind = "currency"
	KindGateway       Kind = "gateway"
	KindPayData       Kind = "pay_data"
	KindSale          Kind = "sale"
	KindClient        Kind = "client"
	KindWallet        Kind = "wallet"
)

// Descriptor maps a kind to its REST collection.
type Descriptor struct {
	Kind Kind
	Path string
}

var descriptors = []Descriptor{
	{KindProduct, "/product/"},
	{KindPlan, "/plan/"},
	{KindTax, "/tax/"},
	{KindShipping, "/shipping/"},
	{KindCoupon, "/coupon/"},
	{KindTransaction, "/transaction/"},
	{KindSubscription, "/subscription/"},
	{KindAuthorization, "/authorization/"},
	{KindCurrency, "/currency/"},
	{KindGateway, "/gateway/"},
	{KindPayData, "/pay/"},
	{KindSale, "/sale/"},
	{KindClient, "/client/"},
	{KindWallet, "/wallet/"},
}

// Kinds returns every known resource kind in table order.
func Kinds() []Kind {
	out := make([]Kind, len(descriptors))
	for i, d := range descriptors {
		out[i] = d.Kind
	}
	return out
}

// ParseKind accepts a kind name such as "transaction" or "sale".
func ParseKind(s string) (Kind, error) {
	for _, d := range descriptors {
		if string(d.Kind) == s {
			return d.Kind, nil
		}
	}
	return "", fmt.Errorf("unknown resource kind %q", s)
}

// Object is a remote object. ID is empty until the object is persisted.
type Object struct {
	Kind       Kind
	ID         string
	Attributes map[string]any
}

// String returns a string attribute, or "" when absent.
func (o *Object) String(key string) string {
	if o == nil {
		return ""
	}
	return stringValue(o.Attributes[key])
}

func (o *Object) PayURL() string    { return o.String("pay_url") }
func (o *Object) IframeURL() string { return o.String("iframe_url") }

func stringValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	default:
		return fmt.Sprint(t)
	}
}

func hydrate(kind Kind, attrs map[string]any) *Object {
	return &Object{Kind: kind, ID: stringValue(attrs["id"]), Attributes: attrs}
}

// Resource is the CRUD surface of one kind.
type Resource struct {
	desc Descriptor
	req  *APIRequest
}

func (r *Resource) Kind() Kind { return r.desc.Kind }

func (r *Resource) itemPath(id string) string {
	return r.desc.Path + url.PathEscape(id) + "/"
}

// Create posts body to the collection. Subscriptions always carry a
// recurring plan.
func (r *Resource) Create(ctx context.Context, body any) (*Object, error) {
	if r.desc.Kind == KindSubscription {
		var err error
		if body, err = withRecurringPlan(body); err != nil {
			return nil, err
		}
	}
	res, err := r.req.Post(ctx, Call{Path: r.desc.Path, Body: body, Resource: r.desc.Kind})
	if err != nil {
		return nil, err
	}
	return hydrate(r.desc.Kind, res), nil
}

func (r *Resource) Retrieve(ctx context.Context, id string) (*Object, error) {
	if id == "" {
		return nil, &BadUseError{Message: fmt.Sprintf("retrieving %s requires an id", r.desc.Kind)}
	}
	res, err := r.req.Get(ctx, Call{Path: r.itemPath(id), Resource: r.desc.Kind, ResourceID: id})
	if err != nil {
		return nil, err
	}
	return hydrate(r.desc.Kind, res), nil
}

func (r *Resource) Update(ctx context.Context, id string, body any) (*Object, error) {
	if id == "" {
		return nil, &BadUseError{Message: fmt.Sprintf("updating %s requires an id", r.desc.Kind)}
	}
	res, err := r.req.Patch(ctx, Call{Path: r.itemPath(id), Body: body, Resource: r.desc.Kind, ResourceID: id})
	if err != nil {
		return nil, err
	}
	return hydrate(r.desc.Kind, res), nil
}

func (r *Resource) Delete(ctx context.Context, id string) error {
	if id == "" {
		return &BadUseError{Message: fmt.Sprintf("deleting %s requires an id", r.desc.Kind)}
	}
	_, err := r.req.Delete(ctx, Call{Path: r.itemPath(id), Resource: r.desc.Kind, ResourceID: id})
	return err
}

// Save creates obj when it has no id and updates it otherwise. obj is
// replaced in place by the server's representation.
func (r *Resource) Save(ctx context.Context, obj *Object) error {
	if obj.Kind != "" && obj.Kind != r.desc.Kind {
		return &BadUseError{Message: fmt.Sprintf("cannot save %s through the %s resource", obj.Kind, r.desc.Kind)}
	}
	attrs := make(map[string]any, len(obj.Attributes))
	for k, v := range obj.Attributes {
		if k != "id" {
			attrs[k] = v
		}
	}

	var saved *Object
	var err error
	if obj.ID == "" {
		saved, err = r.Create(ctx, attrs)
	} else {
		saved, err = r.Update(ctx, obj.ID, attrs)
	}
	if err != nil {
		return err
	}
	*obj = *saved
	return nil
}

// RefundResult is the answer of a refund request.
type RefundResult struct {
	Success bool
	Raw     map[string]any
}

// Refund asks for amount to be returned from sale id.
func (r *Resource) Refund(ctx context.Context, id string, amount decimal.Decimal) (RefundResult, error) {
	if r.desc.Kind != KindSale {
		return RefundResult{}, &BadUseError{Message: fmt.Sprintf("%s does not support refunds", r.desc.Kind)}
	}
	if id == "" {
		return RefundResult{}, &BadUseError{Message: "refunding a sale requires an id"}
	}
	body := map[string]any{"amount": Price(amount)}
	res, err := r.req.Post200(ctx, Call{
		Path:       r.itemPath(id) + "refund/",
		Body:       body,
		Resource:   r.desc.Kind,
		ResourceID: id,
	})
	if err != nil {
		return RefundResult{}, err
	}
	ok, _ := res["success"].(bool)
	return RefundResult{Success: ok, Raw: res}, nil
}

func withRecurringPlan(body any) (any, error) {
	switch b := body.(type) {
	case SubscriptionRequest:
		b.Plan.Recurring = true
		return b, nil
	case *SubscriptionRequest:
		cp := *b
		cp.Plan.Recurring = true
		return cp, nil
	case map[string]any:
		cp := make(map[string]any, len(b))
		for k, v := range b {
			cp[k] = v
		}
		plan := map[string]any{}
		switch p := b["plan"].(type) {
		case map[string]any:
			for k, v := range p {
				plan[k] = v
			}
		case Plan:
			p.Recurring = true
			cp["plan"] = p
			return cp, nil
		case nil:
		default:
			return nil, &BadUseError{Message: fmt.Sprintf("unsupported subscription plan payload %T", p)}
		}
		plan["recurring"] = true
		cp["plan"] = plan
		return cp, nil
	default:
		return nil, &BadUseError{Message: fmt.Sprintf("unsupported subscription payload %T", body)}
	}
}
