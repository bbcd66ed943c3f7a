package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/zrupay/zrugate/gateway/models"
	"github.com/zrupay/zrugate/internal/zru"
)

const maxNotificationBytes = 1 << 20

// NotificationDecoder turns a callback body into a notification.
type NotificationDecoder interface {
	DecodeNotification(body []byte) (*zru.Notification, error)
}

// API is the HTTP surface of the gateway: the processor's callback and the
// checkout actions.
type API struct {
	gateway    *Gateway
	reconciler *Reconciler
	decoder    NotificationDecoder
}

func NewAPI(gateway *Gateway, reconciler *Reconciler, decoder NotificationDecoder) *API {
	return &API{
		gateway:    gateway,
		reconciler: reconciler,
		decoder:    decoder,
	}
}

func (a *API) AppendRoutes(r chi.Router) {
	r.Post("/notifications", a.handleNotification)
	r.Get("/payment-method", a.paymentMethod)
	r.Route("/orders/{orderID}", func(r chi.Router) {
		r.Post("/checkout", a.checkout)
		r.Post("/payment", a.startPayment)
		r.Post("/refunds", a.refund)
	})
}

// AppendDevRoutes mounts order seeding and inspection for local testing.
func (a *API) AppendDevRoutes(r chi.Router, repo *Repository) {
	r.Post("/dev/orders", func(w http.ResponseWriter, r *http.Request) {
		create := models.CreateOrder{}
		if err := json.NewDecoder(r.Body).Decode(&create); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if create.ID <= 0 {
			http.Error(w, "id must be positive", http.StatusBadRequest)
			return
		}
		order := &models.Order{
			ID:             create.ID,
			Currency:       create.Currency,
			Total:          create.Total,
			Locale:         create.Locale,
			CustomerID:     create.CustomerID,
			Billing:        create.Billing,
			Shipping:       create.Shipping,
			ReturnURL:      create.ReturnURL,
			CancelURL:      create.CancelURL,
			PaymentPageURL: create.PaymentPageURL,
			Recurring:      create.Recurring,
		}
		if err := repo.CreateOrder(r.Context(), order); err != nil {
			if errors.Is(err, ErrConflict) {
				http.Error(w, err.Error(), http.StatusConflict)
			} else {
				http.Error(w, err.Error(), http.StatusInternalServerError)
			}
			return
		}
		writeJSON(w, http.StatusCreated, order)
	})
	r.Get("/dev/orders/{orderID}", func(w http.ResponseWriter, r *http.Request) {
		id, ok := orderID(w, r)
		if !ok {
			return
		}
		order, err := repo.GetOrder(r.Context(), id)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, order)
	})
}

func (a *API) handleNotification(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxNotificationBytes))
	if err != nil {
		http.Error(w, err.Error(), http.StatusRequestEntityTooLarge)
		return
	}

	n, err := a.decoder.DecodeNotification(body)
	if err != nil {
		var ve *zru.ValidationError
		var mp *zru.MalformedPayloadError
		switch {
		case errors.As(err, &ve):
			writeJSON(w, http.StatusBadRequest, map[string][]string{"errors": ve.Errors})
		case errors.As(err, &mp):
			writeJSON(w, http.StatusBadRequest, map[string][]string{"errors": {mp.Error()}})
		default:
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
		return
	}

	if err := a.reconciler.Apply(r.Context(), n); err != nil {
		writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (a *API) paymentMethod(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.gateway.Method())
}

func (a *API) checkout(w http.ResponseWriter, r *http.Request) {
	a.present(w, r, a.gateway.Checkout)
}

func (a *API) startPayment(w http.ResponseWriter, r *http.Request) {
	a.present(w, r, a.gateway.StartPayment)
}

func (a *API) present(w http.ResponseWriter, r *http.Request, start func(context.Context, int64) (Presentation, error)) {
	id, ok := orderID(w, r)
	if !ok {
		return
	}
	if !a.gateway.Ready() {
		http.Error(w, "payment method is not available", http.StatusServiceUnavailable)
		return
	}
	p, err := start(r.Context(), id)
	if err != nil {
		writeGatewayError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (a *API) refund(w http.ResponseWriter, r *http.Request) {
	id, ok := orderID(w, r)
	if !ok {
		return
	}
	var body struct {
		Amount decimal.Decimal `json:"amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	err := a.gateway.Refund(r.Context(), id, body.Amount)
	if err != nil {
		writeGatewayError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func orderID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "orderID"), 10, 64)
	if err != nil {
		http.Error(w, "invalid order id", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

func writeStoreError(w http.ResponseWriter, err error) {
	if errors.Is(err, ErrNotFound) {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	http.Error(w, err.Error(), http.StatusInternalServerError)
}

func writeGatewayError(w http.ResponseWriter, err error) {
	var re *RefundError
	var api *zru.RequestError
	switch {
	case errors.Is(err, ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, ErrMissingReference):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, ErrInvalidAmount):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case zru.IsNotFound(err):
		http.Error(w, "payment reference unknown to ZRU: "+err.Error(), http.StatusBadGateway)
	case errors.As(err, &re), errors.As(err, &api):
		http.Error(w, err.Error(), http.StatusBadGateway)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
