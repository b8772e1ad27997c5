package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/shirou/gopsutil/v3/disk"

	"woot-bridge/internal/core/ports"
)

const (
	watchdogInterval      = 10 * time.Minute
	watchdogDiskThreshold = 70.0 // percent
	watchdogRetention     = 7 * 24 * time.Hour
	watchdogPurgeBatch    = 1000
)

// RunWatchdog starts the audit-log auto-purge loop. Old processed webhook
// rows are deleted in batches, but only while disk usage sits above the
// threshold: below it the audit trail is kept for replay and debugging.
func RunWatchdog(ctx context.Context, repo ports.WebhookRepository) {
	ticker := time.NewTicker(watchdogInterval)

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				slog.Debug("Watchdog stopped")
				return
			case <-ticker.C:
				watchdogSweep(ctx, repo)
			}
		}
	}()

	slog.Info("Watchdog started",
		"interval", watchdogInterval,
		"disk_threshold_pct", watchdogDiskThreshold,
	)
}

func watchdogSweep(ctx context.Context, repo ports.WebhookRepository) {
	usage, err := disk.UsageWithContext(ctx, "/")
	if err != nil {
		slog.Warn("Watchdog disk check failed", "error", err)
		return
	}

	if usage.UsedPercent < watchdogDiskThreshold {
		slog.Debug("Watchdog disk usage OK, no purge needed",
			"used_pct", usage.UsedPercent,
		)
		return
	}

	purged, err := repo.PurgeProcessed(ctx, watchdogRetention, watchdogPurgeBatch)
	if err != nil {
		slog.Error("Watchdog purge failed", "error", err)
		return
	}

	slog.Info("Watchdog purged old webhook logs",
		"rows", purged,
		"used_pct", usage.UsedPercent,
	)
}
