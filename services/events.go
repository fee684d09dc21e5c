package services

import (
	"context"
	"encoding/json"
	"time"

	awspkg "github.com/yashrajoria/shopswift-api/pkg/aws"
	"go.uber.org/zap"
)

// MetricCounter is the part of the CloudWatch client the services use for
// business counters.
type MetricCounter interface {
	RecordCount(ctx context.Context, metricName string, dimensions map[string]string) error
}

// eventPublisher sends domain events to SNS. Publishing is best effort: a
// failure is logged and never fails the operation that produced the event.
type eventPublisher struct {
	sns      awspkg.SNSPublisher
	topicArn string
	logger   *zap.Logger
}

func (p eventPublisher) publish(ctx context.Context, eventType string, event interface{}) {
	if p.sns == nil || p.topicArn == "" {
		p.logger.Debug("SNS not configured, skipping event publish", zap.String("event_type", eventType))
		return
	}
	b, err := json.Marshal(event)
	if err != nil {
		p.logger.Error("Failed to marshal SNS event", zap.String("event_type", eventType), zap.Error(err))
		return
	}

	// The request context may be cancelled as soon as the handler returns.
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := p.sns.Publish(pubCtx, p.topicArn, b, map[string]string{"event_type": eventType}); err != nil {
		p.logger.Error("Failed to publish SNS event", zap.String("event_type", eventType), zap.Error(err))
		return
	}
	p.logger.Info("Published SNS event", zap.String("event_type", eventType))
}

func recordCount(ctx context.Context, metrics MetricCounter, name string, dims map[string]string) {
	if metrics == nil {
		return
	}
	_ = metrics.RecordCount(ctx, name, dims)
}
