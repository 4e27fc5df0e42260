package source

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/t77yq/dashmon/internal/model"
)

func TestTransportError(t *testing.T) {
	inner := errors.New("connection refused")
	err := &TransportError{Op: "GET /metrics/sales", Err: inner}
	require.Contains(t, err.Error(), "GET /metrics/sales")
	require.ErrorIs(t, err, inner)
	require.True(t, IsTransport(err))

	withStatus := &TransportError{Op: "GET /metrics/sales", StatusCode: 503, Err: inner}
	require.Contains(t, withStatus.Error(), "503")

	wrapped := fmt.Errorf("refresh failed: %w", err)
	require.True(t, IsTransport(wrapped))
	require.False(t, IsTransport(errors.New("plain")))
}

func TestFetchFunc(t *testing.T) {
	src := FetchFunc(func(ctx context.Context, kind string, filters map[string]interface{}) (*model.Snapshot, error) {
		return &model.Snapshot{Kind: kind}, nil
	})

	snap, err := src.Fetch(context.Background(), model.ResourceSales, nil)
	require.NoError(t, err)
	require.Equal(t, model.ResourceSales, snap.Kind)
}

func TestSystemSource_UnknownKind(t *testing.T) {
	logger, _ := zap.NewDevelopment()
	src := NewSystemSource(logger)

	_, err := src.Fetch(context.Background(), model.ResourceSales, nil)
	require.ErrorIs(t, err, ErrUnknownKind)
}

func TestSystemSource_Fetch(t *testing.T) {
	logger, _ := zap.NewDevelopment()
	src := NewSystemSource(logger)

	snap, err := src.Fetch(context.Background(), model.ResourceSystem, nil)
	require.NoError(t, err)
	require.Equal(t, model.ResourceSystem, snap.Kind)
	require.Contains(t, snap.Fields, "memoryUsedPercent")
	require.False(t, snap.CollectedAt.IsZero())
}
