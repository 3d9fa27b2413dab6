package pubsub

import (
	"time"

	"github.com/ThreeDotsLabs/go-event-driven/common/log"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/cenkalti/backoff/v4"
	"github.com/lithammer/shortuuid/v3"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"raillink/entity"
	"raillink/metrics"
)

var handlerRetry = retryPolicy{
	MaxRetries:      5,
	InitialInterval: 100 * time.Millisecond,
	MaxInterval:     time.Second,
}

// useMiddlewares wraps every handler. The first middleware is the outermost.
func useMiddlewares(router *message.Router) {
	router.AddMiddleware(
		middleware.Recoverer,
		propagateCorrelationID,
		traceMessage,
		logMessage,
		ackBusinessErrors,
		measureMessage,
		handlerRetry.Middleware,
	)
}

func propagateCorrelationID(next message.HandlerFunc) message.HandlerFunc {
	return func(msg *message.Message) ([]*message.Message, error) {
		correlationID := msg.Metadata.Get("correlation_id")
		if correlationID == "" {
			correlationID = shortuuid.New()
		}

		ctx := log.ContextWithCorrelationID(msg.Context(), correlationID)
		ctx = log.ToContext(ctx, logrus.WithFields(logrus.Fields{"correlation_id": correlationID}))
		msg.SetContext(ctx)

		return next(msg)
	}
}

func traceMessage(next message.HandlerFunc) message.HandlerFunc {
	return func(msg *message.Message) ([]*message.Message, error) {
		topic := message.SubscribeTopicFromCtx(msg.Context())
		handler := message.HandlerNameFromCtx(msg.Context())

		ctx := otel.GetTextMapPropagator().Extract(msg.Context(), propagation.MapCarrier(msg.Metadata))
		ctx, span := otel.Tracer("raillink/pubsub").Start(
			ctx,
			"handle "+handler,
			trace.WithSpanKind(trace.SpanKindConsumer),
			trace.WithAttributes(
				attribute.String("messaging.destination", topic),
				attribute.String("messaging.message_id", msg.UUID),
				attribute.String("event_name", msg.Metadata.Get("name")),
			),
		)
		defer span.End()
		msg.SetContext(ctx)

		msgs, err := next(msg)
		if err != nil && !entity.IsBusinessError(err) {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}

		return msgs, err
	}
}

func logMessage(next message.HandlerFunc) message.HandlerFunc {
	return func(msg *message.Message) ([]*message.Message, error) {
		logger := log.FromContext(msg.Context()).WithFields(logrus.Fields{
			"message_id": msg.UUID,
			"event_name": msg.Metadata.Get("name"),
			"handler":    message.HandlerNameFromCtx(msg.Context()),
			"trace_id":   trace.SpanFromContext(msg.Context()).SpanContext().TraceID().String(),
		})
		msg.SetContext(log.ToContext(msg.Context(), logger))

		logger.WithField("payload", string(msg.Payload)).Debug("Handling message")

		msgs, err := next(msg)
		if err != nil {
			logger.WithError(err).Error("Message handling failed")
		}

		return msgs, err
	}
}

// ackBusinessErrors acknowledges messages rejected by a business rule:
// redelivering them can only produce the same rejection.
func ackBusinessErrors(next message.HandlerFunc) message.HandlerFunc {
	return func(msg *message.Message) ([]*message.Message, error) {
		msgs, err := next(msg)
		if err != nil && entity.IsBusinessError(err) {
			log.FromContext(msg.Context()).WithError(err).Warn("Message rejected, acking")
			return nil, nil
		}

		return msgs, err
	}
}

func measureMessage(next message.HandlerFunc) message.HandlerFunc {
	return func(msg *message.Message) ([]*message.Message, error) {
		started := time.Now()
		topic := message.SubscribeTopicFromCtx(msg.Context())
		handler := message.HandlerNameFromCtx(msg.Context())

		msgs, err := next(msg)

		metrics.MessagesProcessed.WithLabelValues(topic, handler, metrics.Outcome(err)).Inc()
		metrics.MessagesProcessingDuration.WithLabelValues(topic, handler).Observe(time.Since(started).Seconds())

		return msgs, err
	}
}

// retryPolicy retries a handler in place on storage and broker failures.
// Business errors are returned on the first attempt.
type retryPolicy struct {
	MaxRetries      uint64
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

func (p retryPolicy) Middleware(next message.HandlerFunc) message.HandlerFunc {
	return func(msg *message.Message) ([]*message.Message, error) {
		policy := backoff.NewExponentialBackOff()
		policy.InitialInterval = p.InitialInterval
		policy.MaxInterval = p.MaxInterval
		policy.MaxElapsedTime = 0

		var produced []*message.Message
		err := backoff.RetryNotify(
			func() error {
				var err error
				produced, err = next(msg)
				if err != nil && entity.IsBusinessError(err) {
					return backoff.Permanent(err)
				}
				return err
			},
			backoff.WithContext(backoff.WithMaxRetries(policy, p.MaxRetries), msg.Context()),
			func(err error, wait time.Duration) {
				log.FromContext(msg.Context()).WithError(err).WithField("retry_in", wait).Warn("Retrying message")
			},
		)

		return produced, err
	}
}
