package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/coprede/sir-dashboard/internal/domain/incident"
	"github.com/coprede/sir-dashboard/internal/infrastructure/monitoring/logging"
	"github.com/coprede/sir-dashboard/internal/infrastructure/monitoring/prometheus"
	"github.com/coprede/sir-dashboard/pkg/errors"
)

// AlertRelay turns critical transitions into short messages. Each
// dataset/cluster/direction triple has its own throttle so a flapping
// cluster does not flood the recipient.
type AlertRelay struct {
	notifier  Notifier
	throttles ThrottleFactory
	recipient string
	opts      options
	logger    logging.Logger
}

// NewAlertRelay sends alerts to recipient, one throttle per cluster key.
func NewAlertRelay(notifier Notifier, throttles ThrottleFactory, recipient string, logger logging.Logger, opts ...Option) *AlertRelay {
	return &AlertRelay{
		notifier:  notifier,
		throttles: throttles,
		recipient: recipient,
		opts:      buildOptions(opts),
		logger:    logger.Named("alerts"),
	}
}

// AlertKey names the throttle of a transition.
func AlertKey(tr incident.CriticalTransition) string {
	dir := "cleared"
	if tr.Critical {
		dir = "raised"
	}
	return fmt.Sprintf("%s:%s:%s", tr.Dataset, tr.Cluster, dir)
}

// FormatAlert renders the message for one transition in loc.
func FormatAlert(tr incident.CriticalTransition, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	var b strings.Builder
	if tr.Critical {
		fmt.Fprintf(&b, "🚨 *SIR CRÍTICO* %s • %s\n", tr.Dataset, tr.Cluster)
		fmt.Fprintf(&b, "%d atividade(s) com SWAP/RUP CABO há 12h ou mais\n", tr.Count)
	} else {
		fmt.Fprintf(&b, "✅ *SIR NORMALIZADO* %s • %s\n", tr.Dataset, tr.Cluster)
	}
	if !tr.At.IsZero() {
		fmt.Fprintf(&b, "📅 %s", tr.At.In(loc).Format(stampLayout))
	}
	return strings.TrimRight(b.String(), "\n")
}

// Handle sends the alert for tr unless its throttle is closed. A delivery
// failure reopens the throttle and is returned so the consumer can retry.
func (r *AlertRelay) Handle(ctx context.Context, tr incident.CriticalTransition) error {
	key := AlertKey(tr)
	throttle := r.throttles(key)

	ok, err := throttle.Allow(ctx, r.opts.now())
	if err != nil {
		return err
	}
	if !ok {
		r.logger.Debug("alert throttled", logging.String("key", key))
		return nil
	}

	err = r.notifier.Send(ctx, r.recipient, FormatAlert(tr, r.opts.location))
	prometheus.RecordNotification(r.opts.metrics, ChannelWhatsApp, err)
	if err != nil {
		if rerr := throttle.Reset(ctx); rerr != nil {
			r.logger.Warn("failed to reset alert throttle", logging.String("key", key), logging.Err(rerr))
		}
		r.opts.reporter.CaptureError(err, map[string]string{"component": "alerts", "cluster": tr.Cluster})
		return errors.Wrapf(err, errors.ErrCodeNotifyDeliveryFailed, "send alert %s", key)
	}
	r.logger.Info("alert sent",
		logging.String("dataset", string(tr.Dataset)),
		logging.String("cluster", tr.Cluster),
		logging.Bool("critical", tr.Critical))
	return nil
}
