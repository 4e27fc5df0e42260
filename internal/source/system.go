package source

import (
	"context"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	"go.uber.org/zap"

	"github.com/t77yq/dashmon/internal/model"
)

// SystemSource is a built-in MetricSource serving the "system" resource
// kind from the local host, so the server can monitor itself without an
// external collaborator.
type SystemSource struct {
	logger *zap.Logger
}

// NewSystemSource creates a system metric source.
func NewSystemSource(logger *zap.Logger) *SystemSource {
	return &SystemSource{logger: logger.Named("system-source")}
}

// Fetch implements MetricSource for the system kind.
func (s *SystemSource) Fetch(ctx context.Context, kind string, filters map[string]interface{}) (*model.Snapshot, error) {
	if kind != model.ResourceSystem {
		return nil, ErrUnknownKind
	}

	cpuPercent, err := cpu.PercentWithContext(ctx, 0, false)
	if err != nil {
		return nil, &TransportError{Op: "cpu.Percent", Err: err}
	}

	memInfo, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return nil, &TransportError{Op: "mem.VirtualMemory", Err: err}
	}

	fields := map[string]interface{}{
		"memoryUsedPercent": memInfo.UsedPercent,
		"memoryUsedBytes":   float64(memInfo.Used),
		"memoryTotalBytes":  float64(memInfo.Total),
	}
	if len(cpuPercent) > 0 {
		fields["cpuPercent"] = cpuPercent[0]
	}

	s.logger.Debug("Collected system metrics",
		zap.Float64("memory_used_percent", memInfo.UsedPercent))

	return &model.Snapshot{
		Kind:        model.ResourceSystem,
		Fields:      fields,
		CollectedAt: time.Now(),
	}, nil
}
