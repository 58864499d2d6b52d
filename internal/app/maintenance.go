package app

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"premiumbot/internal/config"
	kit "premiumbot/internal/transport"
	"premiumbot/pkg/logx"
)

const jobTimeout = time.Minute

// validateTunables gates hot reloads: a file whose durations or cron
// specs do not parse is rejected and the previous snapshot stays live.
func validateTunables(_ context.Context, t *config.Tunables) error {
	if _, err := config.ParseDurationField("telegram.poll_timeout", t.Telegram.PollTimeout, 10*time.Second); err != nil {
		return err
	}
	if _, err := config.ParseDurationField("maintenance.log_retention", t.Maintenance.LogRetention, 720*time.Hour); err != nil {
		return err
	}
	if spec := t.Maintenance.PruneSchedule; spec != "" {
		if _, err := cron.ParseStandard(spec); err != nil {
			return fmt.Errorf("maintenance.prune_schedule %q: %w", spec, err)
		}
	}
	if spec := t.Maintenance.StatsSchedule; spec != "" {
		if _, err := cron.ParseStandard(spec); err != nil {
			return fmt.Errorf("maintenance.stats_schedule %q: %w", spec, err)
		}
	}
	return nil
}

// scheduleMaintenance registers the cron jobs from the tunables loaded
// at startup. Schedule changes take effect on restart; the retention
// window is re-read from the live tunables on every prune run.
func (a *App) scheduleMaintenance() error {
	t := a.tun.Get()

	if spec := t.Maintenance.PruneSchedule; spec != "" {
		if _, err := a.cron.AddFunc(spec, a.pruneBroadcastLog); err != nil {
			return fmt.Errorf("maintenance.prune_schedule %q: %w", spec, err)
		}
	}
	if spec := t.Maintenance.StatsSchedule; spec != "" {
		if _, err := a.cron.AddFunc(spec, a.sendStatsDigest); err != nil {
			return fmt.Errorf("maintenance.stats_schedule %q: %w", spec, err)
		}
	}
	return nil
}

func (a *App) pruneBroadcastLog() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	t := a.tun.Get()
	retention, err := config.ParseDurationField("maintenance.log_retention", t.Maintenance.LogRetention, 720*time.Hour)
	if err != nil {
		a.log.Error("broadcast log prune skipped", logx.Err(err))
		return
	}
	pruned, err := a.store.PruneBroadcasts(ctx, time.Now().Add(-retention))
	if err != nil {
		a.log.Error("broadcast log prune failed", logx.Err(err))
		return
	}
	if pruned > 0 {
		a.log.Info("broadcast log pruned", logx.Int64("rows", pruned))
	}
}

func (a *App) sendStatsDigest() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	text, err := a.router.StatsDigest(ctx)
	if err != nil {
		a.log.Error("stats digest failed", logx.Err(err))
		return
	}
	admin := kit.ChatTarget{ChatID: a.cfg.AdminID}
	if _, err := a.adapter.SendText(ctx, admin, text, nil); err != nil {
		a.log.Error("sending stats digest failed", logx.Err(err))
	}
}
