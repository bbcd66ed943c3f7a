package zru

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/exp/slog"
)

// Notification types.
const (
	TypePayment       = "P"
	TypeSubscription  = "S"
	TypeAuthorization = "A"
)

// Notification statuses acted upon by the store.
const (
	StatusDone      = "D"
	StatusCancelled = "C"
)

type fieldKind int

const (
	fieldText fieldKind = iota
	fieldInt
)

type fieldRule struct {
	name     string
	kind     fieldKind
	required bool
	oneOf    []string
}

func (r fieldRule) freeText() bool { return r.kind == fieldText && len(r.oneOf) == 0 }

var notificationFields = []fieldRule{
	{name: "id", required: true},
	{name: "sale_id"},
	{name: "status", required: true},
	{name: "subscription_status", required: true},
	{name: "type", required: true, oneOf: []string{TypePayment, TypeSubscription, TypeAuthorization}},
	{name: "order_id", kind: fieldInt, required: true},
	{name: "action", required: true},
	{name: "sale_action", required: true},
}

// GatewayMeta is what the processor reports about the underlying acquirer.
type GatewayMeta struct {
	Code           string
	Identification string
	AuthCode       string
}

// Notification is a decoded and sanitised status callback. It is read-only.
type Notification struct {
	fields map[string]any
	extra  map[string]any
	client *Client
	logger *slog.Logger
}

// DecodeNotification validates a callback body against the notification
// field table. All field problems are reported together in a
// *ValidationError; a body that is not JSON yields *MalformedPayloadError.
func (c *Client) DecodeNotification(body []byte) (*Notification, error) {
	n, err := decodeNotification(body)
	if err != nil {
		return nil, err
	}
	n.client = c
	n.logger = c.logger
	return n, nil
}

func decodeNotification(body []byte) (*Notification, error) {
	var payload map[string]any
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&payload); err != nil {
		return nil, &MalformedPayloadError{Err: err}
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return nil, &MalformedPayloadError{Err: fmt.Errorf("unexpected data after JSON object")}
	}
	if payload == nil {
		return nil, &MalformedPayloadError{Err: fmt.Errorf("body is not a JSON object")}
	}

	n := &Notification{
		fields: make(map[string]any, len(notificationFields)),
		extra:  map[string]any{},
		logger: slog.Default(),
	}

	var errs []string
	known := make(map[string]struct{}, len(notificationFields))
	for _, rule := range notificationFields {
		known[rule.name] = struct{}{}
		raw, ok := payload[rule.name]
		if !ok || raw == nil {
			if rule.required {
				errs = append(errs, rule.name+" is required.")
			}
			continue
		}

		v, valid := rule.apply(raw)
		if !valid && !rule.freeText() {
			errs = append(errs, "Invalid value for "+rule.name+".")
			continue
		}
		n.fields[rule.name] = v
	}
	if len(errs) > 0 {
		return nil, &ValidationError{Errors: errs}
	}

	for k, v := range payload {
		if _, ok := known[k]; ok {
			continue
		}
		n.extra[k] = sanitizeValue(v)
	}
	return n, nil
}

func (r fieldRule) apply(raw any) (any, bool) {
	switch r.kind {
	case fieldInt:
		s := strings.Map(func(c rune) rune {
			if (c >= '0' && c <= '9') || c == '+' || c == '-' {
				return c
			}
			return -1
		}, scalarString(raw))
		i, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, false
		}
		return i, true
	default:
		s := escape(scalarString(raw))
		if len(r.oneOf) > 0 {
			for _, allowed := range r.oneOf {
				if s == allowed {
					return s, true
				}
			}
			return s, false
		}
		return s, true
	}
}

func scalarString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case json.Number:
		return t.String()
	case bool:
		if t {
			return "1"
		}
		return ""
	default:
		return ""
	}
}

func sanitizeValue(v any) any {
	switch t := v.(type) {
	case string:
		return escape(t)
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, vv := range t {
			out[k] = sanitizeValue(vv)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, vv := range t {
			out[i] = sanitizeValue(vv)
		}
		return out
	default:
		return v
	}
}

// escape strips markup and HTML-escapes what is left, quotes included.
func escape(s string) string {
	return html.EscapeString(stripTags(s))
}

// stripTags drops markup. A '<' followed by whitespace or ending the value
// is kept as text.
func stripTags(s string) string {
	if !strings.ContainsRune(s, '<') {
		return s
	}
	runes := []rune(s)
	var sb strings.Builder
	inTag := false
	for i, r := range runes {
		switch {
		case inTag:
			if r == '>' {
				inTag = false
			}
		case r == '<' && i+1 < len(runes) && !unicode.IsSpace(runes[i+1]):
			inTag = true
		default:
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

func (n *Notification) text(name string) string {
	s, _ := n.fields[name].(string)
	return s
}

func (n *Notification) ID() string                 { return n.text("id") }
func (n *Notification) SaleID() string             { return n.text("sale_id") }
func (n *Notification) Status() string             { return n.text("status") }
func (n *Notification) SubscriptionStatus() string { return n.text("subscription_status") }
func (n *Notification) Type() string               { return n.text("type") }
func (n *Notification) Action() string             { return n.text("action") }
func (n *Notification) SaleAction() string         { return n.text("sale_action") }

func (n *Notification) OrderID() int64 {
	id, _ := n.fields["order_id"].(int64)
	return id
}

// ChargeID is the processor charge reference, when sent.
func (n *Notification) ChargeID() string {
	return scalarString(n.extra["_charge_id"])
}

// GatewayMeta returns the acquirer details sent under "_gateway".
func (n *Notification) GatewayMeta() GatewayMeta {
	m, _ := n.extra["_gateway"].(map[string]any)
	return GatewayMeta{
		Code:           scalarString(m["code"]),
		Identification: scalarString(m["identification"]),
		AuthCode:       scalarString(m["auth_code"]),
	}
}

// Lookup returns a payload value that has no typed accessor. Unknown names
// are logged and reported as absent.
func (n *Notification) Lookup(name string) (any, bool) {
	if v, ok := n.fields[name]; ok {
		return v, true
	}
	if v, ok := n.extra[name]; ok {
		return v, true
	}
	n.logger.Info("undefined notification field", slog.String("field", name))
	return nil, false
}

// Transaction fetches the transaction a payment notification refers to.
// It returns nil when the notification is not of type P.
func (n *Notification) Transaction(ctx context.Context) (*Object, error) {
	return n.resolve(ctx, TypePayment, KindTransaction, n.ID())
}

// Subscription fetches the subscription of an S notification.
func (n *Notification) Subscription(ctx context.Context) (*Object, error) {
	return n.resolve(ctx, TypeSubscription, KindSubscription, n.ID())
}

// Authorization fetches the authorization of an A notification.
func (n *Notification) Authorization(ctx context.Context) (*Object, error) {
	return n.resolve(ctx, TypeAuthorization, KindAuthorization, n.ID())
}

// Sale fetches the sale when the notification carries a sale id.
func (n *Notification) Sale(ctx context.Context) (*Object, error) {
	return n.resolve(ctx, "", KindSale, n.SaleID())
}

func (n *Notification) resolve(ctx context.Context, typ string, kind Kind, id string) (*Object, error) {
	if typ != "" && n.Type() != typ {
		return nil, nil
	}
	if id == "" {
		return nil, nil
	}
	if n.client == nil {
		return nil, &BadUseError{Message: "notification is not bound to a client"}
	}
	return n.client.Resource(kind).Retrieve(ctx, id)
}
