package observability

import (
	"context"

	"quizforge/internal/config"
	contextutils "quizforge/internal/utils"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
)

// InitMetrics initializes OpenTelemetry metrics
func InitMetrics(cfg *config.OpenTelemetryConfig) (result0 *sdkmetric.MeterProvider, err error) {
	ctx := context.Background()

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
		),
	)
	if err != nil {
		return nil, contextutils.WrapErrorf(contextutils.ErrInternalError, "failed to create otel resource: %w", err)
	}

	var exporter sdkmetric.Exporter
	switch cfg.Protocol {
	case "grpc":
		exp, err := otlpmetricgrpc.New(ctx,
			otlpmetricgrpc.WithEndpoint(cfg.Endpoint),
			func() otlpmetricgrpc.Option {
				if cfg.Insecure {
					return otlpmetricgrpc.WithInsecure()
				}
				return nil
			}(),
			otlpmetricgrpc.WithHeaders(cfg.Headers),
		)
		if err != nil {
			return nil, contextutils.WrapErrorf(contextutils.ErrInternalError, "failed to create otlp grpc metric exporter: %w", err)
		}
		exporter = exp
	case "http":
		exp, err := otlpmetrichttp.New(ctx,
			otlpmetrichttp.WithEndpoint(cfg.Endpoint),
			func() otlpmetrichttp.Option {
				if cfg.Insecure {
					return otlpmetrichttp.WithInsecure()
				}
				return nil
			}(),
			otlpmetrichttp.WithHeaders(cfg.Headers),
		)
		if err != nil {
			return nil, contextutils.WrapErrorf(contextutils.ErrInternalError, "failed to create otlp http metric exporter: %w", err)
		}
		exporter = exp
	default:
		return nil, contextutils.WrapErrorf(contextutils.ErrInternalError, "unsupported otel protocol: %s", cfg.Protocol)
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter)),
		sdkmetric.WithResource(res),
	)
	return mp, nil
}

// EngineMetrics bundles the counters the orchestration engine records.
type EngineMetrics struct {
	AttemptsStarted   metric.Int64Counter
	AttemptsSubmitted metric.Int64Counter
	GenerationTier    metric.Int64Counter
	EligibilityDenied metric.Int64Counter
}

// NewEngineMetrics registers the engine counters on the given meter provider.
// A nil provider yields nil counters, which the metric API treats as no-ops
// when guarded by the callers.
func NewEngineMetrics(mp *sdkmetric.MeterProvider) (*EngineMetrics, error) {
	if mp == nil {
		return &EngineMetrics{}, nil
	}
	meter := mp.Meter("quizforge/engine")

	started, err := meter.Int64Counter("quizforge.attempts.started",
		metric.WithDescription("Attempts initiated"))
	if err != nil {
		return nil, err
	}
	submitted, err := meter.Int64Counter("quizforge.attempts.submitted",
		metric.WithDescription("Attempts submitted, by final status"))
	if err != nil {
		return nil, err
	}
	tier, err := meter.Int64Counter("quizforge.generation.tier",
		metric.WithDescription("Generation pipeline outcomes, by tier"))
	if err != nil {
		return nil, err
	}
	denied, err := meter.Int64Counter("quizforge.eligibility.denied",
		metric.WithDescription("Eligibility denials, by reason"))
	if err != nil {
		return nil, err
	}

	return &EngineMetrics{
		AttemptsStarted:   started,
		AttemptsSubmitted: submitted,
		GenerationTier:    tier,
		EligibilityDenied: denied,
	}, nil
}

// RecordAttemptStarted counts one initiated attempt
func (m *EngineMetrics) RecordAttemptStarted(ctx context.Context) {
	if m == nil || m.AttemptsStarted == nil {
		return
	}
	m.AttemptsStarted.Add(ctx, 1)
}

// RecordAttemptSubmitted counts one finalized attempt by final status
func (m *EngineMetrics) RecordAttemptSubmitted(ctx context.Context, status string) {
	if m == nil || m.AttemptsSubmitted == nil {
		return
	}
	m.AttemptsSubmitted.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
}

// RecordGenerationTier counts one pipeline run by the tier that produced
// the leading questions
func (m *EngineMetrics) RecordGenerationTier(ctx context.Context, tier string) {
	if m == nil || m.GenerationTier == nil {
		return
	}
	m.GenerationTier.Add(ctx, 1, metric.WithAttributes(attribute.String("tier", tier)))
}

// RecordEligibilityDenied counts one refused eligibility check by reason
func (m *EngineMetrics) RecordEligibilityDenied(ctx context.Context, reason string) {
	if m == nil || m.EligibilityDenied == nil {
		return
	}
	m.EligibilityDenied.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}
