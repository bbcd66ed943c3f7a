package gateway_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/zrupay/zrugate/gateway"
	"github.com/zrupay/zrugate/gateway/models"
	"github.com/zrupay/zrugate/internal/zru"
)

// paymentAPI stands in for the remote payment API.
type paymentAPI struct {
	mu            sync.Mutex
	srv           *httptest.Server
	calls         []string
	bodies        map[string]map[string]any
	sales         map[string]bool
	refunds       []string
	rejectRefunds bool
	failCreates   bool
	seq           int
}

func newPaymentAPI(t *testing.T) *paymentAPI {
	t.Helper()
	p := &paymentAPI{
		bodies: map[string]map[string]any{},
		sales:  map[string]bool{},
	}
	p.srv = httptest.NewServer(http.HandlerFunc(p.handle))
	t.Cleanup(p.srv.Close)
	return p
}

func (p *paymentAPI) handle(w http.ResponseWriter, r *http.Request) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.calls = append(p.calls, r.Method+" "+r.URL.Path)
	var body map[string]any
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	_ = dec.Decode(&body)
	p.bodies[r.URL.Path] = body

	seg := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	w.Header().Set("Content-Type", "application/json")
	switch {
	case r.Method == http.MethodPost && len(seg) == 1 && (seg[0] == "transaction" || seg[0] == "subscription"):
		if p.failCreates {
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(`{"detail":"boom"}`))
			return
		}
		p.seq++
		id := fmt.Sprintf("%s-%d", seg[0], p.seq)
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]any{
			"id":         id,
			"pay_url":    "https://pay.example/" + id,
			"iframe_url": "https://pay.example/iframe/" + id,
		})
	case r.Method == http.MethodGet && len(seg) == 2 && seg[0] == "sale":
		if !p.sales[seg[1]] {
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"detail":"not found"}`))
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"id": seg[1]})
	case r.Method == http.MethodPost && len(seg) == 3 && seg[0] == "sale" && seg[2] == "refund":
		p.refunds = append(p.refunds, fmt.Sprint(body["amount"]))
		json.NewEncoder(w).Encode(map[string]any{"success": !p.rejectRefunds})
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (p *paymentAPI) client() *zru.Client {
	return zru.NewClient(zru.Credentials{Key: "key", Secret: "secret"}, zru.WithBaseURL(p.srv.URL))
}

func (p *paymentAPI) body(path string) map[string]any {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.bodies[path]
}

func (p *paymentAPI) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}

func (p *paymentAPI) refundAmounts() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.refunds...)
}

func (p *paymentAPI) failCreating() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failCreates = true
}

func (p *paymentAPI) rejectRefunding() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rejectRefunds = true
}

func (p *paymentAPI) addSale(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sales[id] = true
}

func testConfig() *gateway.Config {
	cfg := gateway.DefaultConfig()
	cfg.Key = "key"
	cfg.Secret = "secret"
	cfg.NotifyURL = "https://shop.example/notifications"
	return cfg
}

func seedOrder(t *testing.T, repo *gateway.Repository, id int64, total string, mutate ...func(*models.Order)) {
	t.Helper()
	o := &models.Order{
		ID:       id,
		Currency: "EUR",
		Total:    decimal.RequireFromString(total),
		Locale:   "es_ES",
		Billing: models.Address{
			FirstName: "Jane Doe",
			Email:     "jane@example.com",
			Phone:     "600000000",
			Address1:  "Calle Mayor 1",
			Address2:  "2B",
			City:      "Madrid",
			State:     "M",
			Postcode:  "28013",
			Country:   "ES",
		},
		Shipping: models.Address{
			Address1: "Calle Luna 5",
			City:     "Madrid",
			State:    "M",
			Postcode: "28004",
			Country:  "ES",
		},
		CustomerID: "42",
		ReturnURL:  fmt.Sprintf("https://shop.example/orders/%d/received", id),
		CancelURL:  fmt.Sprintf("https://shop.example/orders/%d/cancel", id),
	}
	for _, m := range mutate {
		m(o)
	}
	require.NoError(t, repo.CreateOrder(context.Background(), o))
}

// callback renders a complete notification body.
func callback(orderID int64, status string, extra map[string]any) []byte {
	body := map[string]any{
		"id":                  "T-" + fmt.Sprint(orderID),
		"order_id":            orderID,
		"type":                "P",
		"status":              status,
		"subscription_status": "",
		"action":              "",
		"sale_action":         "",
	}
	for k, v := range extra {
		body[k] = v
	}
	b, _ := json.Marshal(body)
	return b
}

func decode(t *testing.T, c *zru.Client, body []byte) *zru.Notification {
	t.Helper()
	n, err := c.DecodeNotification(body)
	require.NoError(t, err)
	return n
}

func getOrder(t *testing.T, repo *gateway.Repository, id int64) *models.Order {
	t.Helper()
	o, err := repo.GetOrder(context.Background(), id)
	require.NoError(t, err)
	return o
}

func noteTexts(o *models.Order) []string {
	out := make([]string, len(o.Notes))
	for i, n := range o.Notes {
		out[i] = n.Text
	}
	return out
}
