package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/t77yq/dashmon/internal/model"
)

func newTestStore(t *testing.T) *SQLiteConfigStore {
	t.Helper()
	logger, _ := zap.NewDevelopment()
	store, err := NewSQLiteConfigStore(logger, filepath.Join(t.TempDir(), "config.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSQLiteConfigStore_EmptyLoad(t *testing.T) {
	store := newTestStore(t)

	cfg, err := store.Load(context.Background())
	require.NoError(t, err)
	require.Nil(t, cfg)
}

func TestSQLiteConfigStore_Roundtrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	cfg := &model.Configuration{
		Thresholds: []*model.AlertThreshold{
			{
				ID:       "t1",
				Name:     "Low Stock",
				Kind:     model.ResourceInventory,
				Severity: model.AlertSeverityWarning,
				Enabled:  true,
				Conditions: []model.Condition{
					{Field: "lowStockItems", Operator: model.OperatorGreaterThan, Value: 1000},
				},
				Notify:    model.NotificationPrefs{Toast: true, Center: true},
				CreatedAt: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
			},
		},
		Settings: model.DefaultSettings(),
	}
	require.NoError(t, store.Save(ctx, cfg))

	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	require.Len(t, loaded.Thresholds, 1)
	require.Equal(t, "Low Stock", loaded.Thresholds[0].Name)
	require.Equal(t, model.OperatorGreaterThan, loaded.Thresholds[0].Conditions[0].Operator)
	require.Equal(t, cfg.Settings.MaxAlerts, loaded.Settings.MaxAlerts)
}

func TestSQLiteConfigStore_SaveReplaces(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	first := &model.Configuration{Settings: model.DefaultSettings()}
	require.NoError(t, store.Save(ctx, first))

	second := &model.Configuration{
		Thresholds: []*model.AlertThreshold{{ID: "t1", Name: "CPU"}},
		Settings:   model.DefaultSettings(),
	}
	require.NoError(t, store.Save(ctx, second))

	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	require.Len(t, loaded.Thresholds, 1)
	require.Equal(t, "CPU", loaded.Thresholds[0].Name)
}

func TestSQLiteConfigStore_Reopen(t *testing.T) {
	logger, _ := zap.NewDevelopment()
	path := filepath.Join(t.TempDir(), "config.db")
	ctx := context.Background()

	store, err := NewSQLiteConfigStore(logger, path)
	require.NoError(t, err)
	require.NoError(t, store.Save(ctx, &model.Configuration{
		Thresholds: []*model.AlertThreshold{{ID: "t1", Name: "Orders"}},
	}))
	require.NoError(t, store.Close())

	store, err = NewSQLiteConfigStore(logger, path)
	require.NoError(t, err)
	defer store.Close()

	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	require.Len(t, loaded.Thresholds, 1)
	require.Equal(t, "Orders", loaded.Thresholds[0].Name)
}
