package monitoring

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/aegis/internal/config"
)

// Checker periodically sweeps review health (scan failure rate, checker
// failures, pending backlog) and routes any triggered alerts to the
// webhook.
type Checker struct {
	collector *Collector
	alerter   *Alerter
	cfg       config.MonitoringConfig
}

// NewChecker creates a background health checker.
func NewChecker(collector *Collector, alerter *Alerter, cfg config.MonitoringConfig) *Checker {
	return &Checker{
		collector: collector,
		alerter:   alerter,
		cfg:       cfg,
	}
}

// Run blocks until ctx is cancelled. The first sweep happens
// immediately so a backlog that built up while the server was down is
// reported at startup, not one interval later.
func (c *Checker) Run(ctx context.Context) {
	interval := time.Duration(c.cfg.CheckIntervalSecs) * time.Second
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	log := zap.L().With(zap.String("component", "monitoring.checker"))
	log.Info("starting review health checker",
		zap.Duration("interval", interval),
		zap.Int("lookback_hours", c.cfg.LookbackWindowHours),
	)

	c.sweep(ctx, log)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("review health checker stopped")
			return
		case <-ticker.C:
			c.sweep(ctx, log)
		}
	}
}

func (c *Checker) sweep(ctx context.Context, log *zap.Logger) {
	snap, err := c.collector.Collect(ctx, c.cfg.LookbackWindowHours)
	if err != nil {
		log.Error("monitoring: collect metrics", zap.Error(err))
		return
	}

	alerts := c.alerter.Evaluate(snap)
	if len(alerts) == 0 {
		log.Debug("monitoring: review health nominal",
			zap.Float64("scan_fail_rate", snap.ScanFailRate),
			zap.Int("pending", snap.FindingsPending),
		)
		return
	}

	sent := c.alerter.SendAlerts(ctx, alerts)
	log.Info("monitoring: health sweep complete",
		zap.Int("alerts_triggered", len(alerts)),
		zap.Int("alerts_sent", sent),
		zap.Float64("scan_fail_rate", snap.ScanFailRate),
		zap.Int("pending", snap.FindingsPending),
	)
}
