// Package logging wires log/slog into the broker that feeds SSE log
// streams. The daemon logs through a slog.Logger whose handler both
// writes to stderr and publishes structured entries to subscribers.
package logging

import (
	"context"
	"log/slog"
	"os"
)

// brokerHandler publishes every record to the broker in addition to
// forwarding it to a downstream handler.
type brokerHandler struct {
	downstream slog.Handler
	broker     *Broker
	attrs      []slog.Attr
}

func (h *brokerHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.downstream.Enabled(ctx, level)
}

func (h *brokerHandler) Handle(ctx context.Context, record slog.Record) error {
	if h.broker != nil {
		entry := LogEntry{
			Timestamp: record.Time,
			Level:     record.Level.String(),
			Message:   record.Message,
			Fields:    make(map[string]any),
		}
		apply := func(a slog.Attr) {
			switch a.Key {
			case attrDeploymentID:
				entry.DeploymentID = a.Value.String()
			case attrEnvironment:
				entry.Environment = a.Value.String()
			case attrDeploymentComplete:
				entry.IsDeploymentComplete = a.Value.Bool()
			case attrDeploymentFailed:
				entry.IsDeploymentFailed = a.Value.Bool()
			default:
				entry.Fields[a.Key] = a.Value.Any()
			}
		}
		for _, a := range h.attrs {
			apply(a)
		}
		record.Attrs(func(a slog.Attr) bool {
			apply(a)
			return true
		})
		if len(entry.Fields) == 0 {
			entry.Fields = nil
		}
		h.broker.Publish(entry)
	}
	return h.downstream.Handle(ctx, record)
}

func (h *brokerHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	merged = append(merged, h.attrs...)
	merged = append(merged, attrs...)
	return &brokerHandler{
		downstream: h.downstream.WithAttrs(attrs),
		broker:     h.broker,
		attrs:      merged,
	}
}

func (h *brokerHandler) WithGroup(name string) slog.Handler {
	return &brokerHandler{
		downstream: h.downstream.WithGroup(name),
		broker:     h.broker,
		attrs:      h.attrs,
	}
}

// NewLogger returns a slog.Logger that writes to stderr and publishes to
// the broker. The broker may be nil for plain logging.
func NewLogger(level slog.Level, broker *Broker) *slog.Logger {
	downstream := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	return slog.New(&brokerHandler{downstream: downstream, broker: broker})
}

// NewDeploymentLogger returns a logger whose entries carry the deployment
// ID and environment, so deployment log subscribers can follow them.
func NewDeploymentLogger(deploymentID, environment string, level slog.Level, broker *Broker) *slog.Logger {
	return NewLogger(level, broker).With(
		slog.String(attrDeploymentID, deploymentID),
		slog.String(attrEnvironment, environment),
	)
}

// DeploymentComplete emits the terminal success entry for a deployment.
// CLI clients stop streaming when they see it.
func DeploymentComplete(logger *slog.Logger, msg string) {
	logger.Info(msg, slog.Bool(attrDeploymentComplete, true))
}

// DeploymentFailed emits the terminal failure entry for a deployment.
func DeploymentFailed(logger *slog.Logger, msg string, err error) {
	logger.Error(msg, slog.Bool(attrDeploymentFailed, true), slog.Any("error", err))
}
