package gateway

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/zrupay/zrugate/gateway/models"
)

func TestRepository_Memory(t *testing.T) {
	repo := NewRepository()
	ctx := context.Background()

	order := &models.Order{ID: 1, Currency: "eur", Total: decimal.RequireFromString("19.99")}
	require.NoError(t, repo.CreateOrder(ctx, order))
	require.Equal(t, models.OrderStatusPending, order.Status)
	require.True(t, errors.Is(repo.CreateOrder(ctx, &models.Order{ID: 1}), ErrConflict))

	got, err := repo.GetOrder(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, "EUR", got.Currency)

	got.Status = models.OrderStatusCompleted
	again, err := repo.GetOrder(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, models.OrderStatusPending, again.Status)

	require.NoError(t, repo.AppendNote(ctx, 1, "first"))
	require.NoError(t, repo.MarkPaid(ctx, 1, "S1"))
	require.True(t, errors.Is(repo.MarkPaid(ctx, 1, "S2"), ErrAlreadyPaid))
	require.NoError(t, repo.SetCompleted(ctx, 1))
	require.True(t, errors.Is(repo.MarkPaid(ctx, 1, "S3"), ErrAlreadyPaid))

	got, err = repo.GetOrder(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, models.OrderStatusCompleted, got.Status)
	require.Equal(t, "S1", got.ExternalReference)
	require.Len(t, got.Notes, 1)
	require.NotEmpty(t, got.Notes[0].ID)

	require.NoError(t, repo.MarkFailed(ctx, 1, "ZRU payment cancelled"))
	got, err = repo.GetOrder(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, models.OrderStatusFailed, got.Status)
	require.Equal(t, "ZRU payment cancelled", got.Notes[1].Text)
}

func TestRepository_MemoryNotFound(t *testing.T) {
	repo := NewRepository()
	ctx := context.Background()

	_, err := repo.GetOrder(ctx, 9)
	require.True(t, errors.Is(err, ErrNotFound))
	require.True(t, errors.Is(repo.AppendNote(ctx, 9, "x"), ErrNotFound))
	require.True(t, errors.Is(repo.MarkPaid(ctx, 9, "S"), ErrNotFound))
	require.True(t, errors.Is(repo.MarkFailed(ctx, 9, "x"), ErrNotFound))
	require.True(t, errors.Is(repo.SetCompleted(ctx, 9), ErrNotFound))
	require.NoError(t, repo.Ping(ctx))
	require.NoError(t, repo.Migrate(ctx))
}
