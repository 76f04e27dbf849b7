package alert

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ppiankov/chainkernel/internal/ledger"
)

// deliveryTimeout bounds one delivery including its retries.
const deliveryTimeout = 30 * time.Second

// Dispatcher fans out alert events to matching webhook configurations.
// It is a ledger sink.
type Dispatcher struct {
	configs []AlertConfig
	log     *logrus.Entry
}

// NewDispatcher creates a Dispatcher from webhook configurations.
// Returns nil if configs is empty (callers should nil-check).
func NewDispatcher(configs []AlertConfig, log *logrus.Entry) *Dispatcher {
	if len(configs) == 0 {
		return nil
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Dispatcher{configs: configs, log: log}
}

// Publish turns a receipt into alert events and dispatches them.
func (d *Dispatcher) Publish(r *ledger.Receipt) error {
	for _, ev := range FromReceipt(r) {
		d.Dispatch(ev)
	}
	return nil
}

// Dispatch sends the event to all webhooks whose Events list matches.
// Matching is based on event.Name, event.Type or "revert:<reason>".
// Fires goroutines, does not block the caller.
func (d *Dispatcher) Dispatch(event AlertEvent) {
	for _, cfg := range d.configs {
		if matches(cfg.Events, event) {
			go func(cfg AlertConfig) {
				ctx, cancel := context.WithTimeout(context.Background(), deliveryTimeout)
				defer cancel()
				if err := Send(ctx, cfg, event); err != nil {
					d.log.WithError(err).WithField("url", cfg.URL).Warn("alert delivery failed")
				}
			}(cfg)
		}
	}
}

// FromReceipt renders one alert per event of a committed receipt, or a
// single revert alert.
func FromReceipt(r *ledger.Receipt) []AlertEvent {
	base := AlertEvent{
		Timestamp: r.Time.UTC().Format(time.RFC3339Nano),
		TxID:      r.TxID,
		Block:     r.Block,
		From:      r.From.Hex(),
		Method:    r.Method,
	}
	if !r.Committed() {
		ev := base
		ev.Type = TypeRevert
		ev.Contract = r.To.Hex()
		ev.Reason = r.Reason
		return []AlertEvent{ev}
	}
	out := make([]AlertEvent, 0, len(r.Events))
	for _, e := range r.Events {
		ev := base
		ev.Type = "event"
		ev.Contract = e.Address.Hex()
		ev.Name = e.Name
		for _, f := range e.Fields {
			ev.Fields = append(ev.Fields, AlertField{Name: f.Name, Value: fmt.Sprint(f.Value)})
		}
		out = append(out, ev)
	}
	return out
}

func matches(events []string, event AlertEvent) bool {
	for _, e := range events {
		if event.Name != "" && e == event.Name {
			return true
		}
		if e == event.Type {
			return true
		}
		if event.Type == TypeRevert && e == TypeRevert+":"+event.Reason {
			return true
		}
	}
	return false
}
