package model

import "time"

// Snapshot is a single fetch of metric data for one resource kind.
// Fields hold named numeric or string values that thresholds compare
// against.
type Snapshot struct {
	Kind        string                 `json:"kind"`
	Fields      map[string]interface{} `json:"fields"`
	CollectedAt time.Time              `json:"collected_at"`
}

// Well-known resource kinds refreshed by the dashboard.
const (
	ResourceSystem    = "system"
	ResourceSales     = "sales"
	ResourceInventory = "inventory"
	ResourceOrders    = "orders"
	ResourceAll       = "all"
)
