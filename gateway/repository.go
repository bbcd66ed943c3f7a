package gateway

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgconn"
	"github.com/lib/pq"
	"github.com/zrupay/zrugate/gateway/models"
)

var (
	ErrNotFound    = fmt.Errorf("not found")
	ErrConflict    = fmt.Errorf("conflict")
	ErrAlreadyPaid = fmt.Errorf("order already paid")
)

// OrderStore is what the gateway needs from the store owning the orders.
type OrderStore interface {
	GetOrder(ctx context.Context, id int64) (*models.Order, error)
	AppendNote(ctx context.Context, id int64, text string) error
	// MarkPaid records reference and moves the order to processing. It
	// returns ErrAlreadyPaid when a payment was recorded before.
	MarkPaid(ctx context.Context, id int64, reference string) error
	MarkFailed(ctx context.Context, id int64, reason string) error
	SetCompleted(ctx context.Context, id int64) error
}

// Repository keeps orders in memory or, when built with NewPGRepository, in
// Postgres.
type Repository struct {
	mu     sync.RWMutex
	orders map[int64]*models.Order
	db     *sql.DB
	now    func() time.Time
}

var _ OrderStore = (*Repository)(nil)

func NewRepository() *Repository {
	return &Repository{
		orders: make(map[int64]*models.Order),
		now:    time.Now,
	}
}

// NewPGRepository constructs a db-backed repository.
func NewPGRepository(db *sql.DB) *Repository {
	return &Repository{db: db, now: time.Now}
}

const schema = `
CREATE SCHEMA IF NOT EXISTS gateway;
CREATE TABLE IF NOT EXISTS gateway.orders (
    order_id           bigint PRIMARY KEY,
    status             text NOT NULL,
    currency           text NOT NULL,
    total              numeric(14,2) NOT NULL,
    locale             text NOT NULL DEFAULT '',
    customer_id        text NOT NULL DEFAULT '',
    billing            jsonb NOT NULL,
    shipping           jsonb NOT NULL,
    return_url         text NOT NULL DEFAULT '',
    cancel_url         text NOT NULL DEFAULT '',
    payment_page_url   text NOT NULL DEFAULT '',
    recurring          jsonb,
    external_reference text NOT NULL DEFAULT '',
    created_at         timestamptz NOT NULL DEFAULT now(),
    updated_at         timestamptz NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS gateway.order_notes (
    note_id    uuid PRIMARY KEY,
    order_id   bigint NOT NULL REFERENCES gateway.orders(order_id),
    body       text NOT NULL,
    created_at timestamptz NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS order_notes_order_id_idx ON gateway.order_notes(order_id, created_at);
`

// Migrate creates the gateway schema. It is a no-op for the memory backend.
func (r *Repository) Migrate(ctx context.Context) error {
	if r.db == nil {
		return nil
	}
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrating schema: %w", err)
	}
	return nil
}

func (r *Repository) CreateOrder(ctx context.Context, order *models.Order) error {
	if order.Status == "" {
		order.Status = models.OrderStatusPending
	}
	if order.CreatedAt.IsZero() {
		order.CreatedAt = r.now().UTC()
	}
	order.Currency = strings.ToUpper(order.Currency)

	if r.db == nil {
		r.mu.Lock()
		defer r.mu.Unlock()
		if _, ok := r.orders[order.ID]; ok {
			return fmt.Errorf("order %d exists: %w", order.ID, ErrConflict)
		}
		r.orders[order.ID] = cloneOrder(order)
		return nil
	}

	billing, _ := json.Marshal(order.Billing)
	shipping, _ := json.Marshal(order.Shipping)
	var recurring []byte
	if order.Recurring != nil {
		recurring, _ = json.Marshal(order.Recurring)
	}
	_, err := r.db.ExecContext(ctx, `
        INSERT INTO gateway.orders(order_id, status, currency, total, locale, customer_id, billing, shipping,
                                   return_url, cancel_url, payment_page_url, recurring, external_reference, created_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
    `, order.ID, string(order.Status), order.Currency, order.Total, order.Locale, order.CustomerID, billing, shipping,
		order.ReturnURL, order.CancelURL, order.PaymentPageURL, recurring, order.ExternalReference, order.CreatedAt)
	if isUniqueViolation(err) {
		return fmt.Errorf("order %d exists: %w", order.ID, ErrConflict)
	}
	return err
}

func (r *Repository) GetOrder(ctx context.Context, id int64) (*models.Order, error) {
	if r.db == nil {
		r.mu.RLock()
		defer r.mu.RUnlock()
		o, ok := r.orders[id]
		if !ok {
			return nil, ErrNotFound
		}
		return cloneOrder(o), nil
	}

	row := r.db.QueryRowContext(ctx, `
        SELECT order_id, status, currency, total, locale, customer_id, billing, shipping,
               return_url, cancel_url, payment_page_url, recurring, external_reference, created_at
          FROM gateway.orders WHERE order_id=$1
    `, id)
	var o models.Order
	var status string
	var billing, shipping, recurring []byte
	err := row.Scan(&o.ID, &status, &o.Currency, &o.Total, &o.Locale, &o.CustomerID, &billing, &shipping,
		&o.ReturnURL, &o.CancelURL, &o.PaymentPageURL, &recurring, &o.ExternalReference, &o.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	o.Status = models.OrderStatus(status)
	if err := json.Unmarshal(billing, &o.Billing); err != nil {
		return nil, fmt.Errorf("decoding billing address: %w", err)
	}
	if err := json.Unmarshal(shipping, &o.Shipping); err != nil {
		return nil, fmt.Errorf("decoding shipping address: %w", err)
	}
	if len(recurring) > 0 {
		o.Recurring = &models.Recurring{}
		if err := json.Unmarshal(recurring, o.Recurring); err != nil {
			return nil, fmt.Errorf("decoding recurring schedule: %w", err)
		}
	}

	rows, err := r.db.QueryContext(ctx, `SELECT note_id, body, created_at FROM gateway.order_notes WHERE order_id=$1 ORDER BY created_at, note_id`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var n models.Note
		if err := rows.Scan(&n.ID, &n.Text, &n.CreatedAt); err != nil {
			return nil, err
		}
		o.Notes = append(o.Notes, n)
	}
	return &o, rows.Err()
}

func (r *Repository) AppendNote(ctx context.Context, id int64, text string) error {
	note := models.Note{ID: uuid.NewString(), Text: text, CreatedAt: r.now().UTC()}
	if r.db == nil {
		r.mu.Lock()
		defer r.mu.Unlock()
		o, ok := r.orders[id]
		if !ok {
			return ErrNotFound
		}
		o.Notes = append(o.Notes, note)
		return nil
	}
	_, err := r.db.ExecContext(ctx, `INSERT INTO gateway.order_notes(note_id, order_id, body, created_at) VALUES ($1,$2,$3,$4)`,
		note.ID, id, note.Text, note.CreatedAt)
	var pe *pq.Error
	if errors.As(err, &pe) && pe.Code == "23503" {
		return ErrNotFound
	}
	return err
}

func (r *Repository) MarkPaid(ctx context.Context, id int64, reference string) error {
	if r.db == nil {
		r.mu.Lock()
		defer r.mu.Unlock()
		o, ok := r.orders[id]
		if !ok {
			return ErrNotFound
		}
		if o.IsPaid() {
			return ErrAlreadyPaid
		}
		o.Status = models.OrderStatusProcessing
		o.ExternalReference = reference
		return nil
	}
	res, err := r.db.ExecContext(ctx, `
        UPDATE gateway.orders
           SET status='processing', external_reference=$2, updated_at=now()
         WHERE order_id=$1 AND status NOT IN ('processing','completed')
    `, id, reference)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, err := r.GetOrder(ctx, id); err != nil {
			return err
		}
		return ErrAlreadyPaid
	}
	return nil
}

// MarkFailed moves the order to failed and records reason as a note.
func (r *Repository) MarkFailed(ctx context.Context, id int64, reason string) error {
	if err := r.setStatus(ctx, id, models.OrderStatusFailed); err != nil {
		return err
	}
	if reason == "" {
		return nil
	}
	return r.AppendNote(ctx, id, reason)
}

func (r *Repository) SetCompleted(ctx context.Context, id int64) error {
	return r.setStatus(ctx, id, models.OrderStatusCompleted)
}

func (r *Repository) setStatus(ctx context.Context, id int64, status models.OrderStatus) error {
	if r.db == nil {
		r.mu.Lock()
		defer r.mu.Unlock()
		o, ok := r.orders[id]
		if !ok {
			return ErrNotFound
		}
		o.Status = status
		return nil
	}
	res, err := r.db.ExecContext(ctx, `UPDATE gateway.orders SET status=$2, updated_at=now() WHERE order_id=$1`, id, string(status))
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Ping returns DB readiness
func (r *Repository) Ping(ctx context.Context) error {
	if r.db == nil {
		return nil
	}
	return r.db.PingContext(ctx)
}

func cloneOrder(o *models.Order) *models.Order {
	cp := *o
	cp.Notes = append([]models.Note(nil), o.Notes...)
	if o.Recurring != nil {
		rec := *o.Recurring
		cp.Recurring = &rec
	}
	return &cp
}

func isUniqueViolation(err error) bool {
	var pe *pq.Error
	if errors.As(err, &pe) && pe.Code == "23505" {
		return true
	}
	var pgerr *pgconn.PgError
	if errors.As(err, &pgerr) && pgerr.Code == "23505" {
		return true
	}
	return false
}
