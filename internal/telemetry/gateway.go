package telemetry

import (
	"context"
	"net/url"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/steveyegge/cockpit/internal/engine"
	"github.com/steveyegge/cockpit/internal/runner"
	"github.com/steveyegge/cockpit/internal/types"
)

const gatewayScopeName = "github.com/steveyegge/cockpit/engine"

// InstrumentedGateway wraps an engine gateway with OTel tracing and metrics.
// Every engine call gets a span and is counted in cockpit.engine.* metrics.
// Use WrapGateway to create one; it returns the gateway unchanged when
// telemetry is disabled.
type InstrumentedGateway struct {
	*engine.Gateway

	tracer    trace.Tracer
	reqs      metric.Int64Counter
	dur       metric.Float64Histogram
	errs      metric.Int64Counter
	incidents metric.Int64Gauge
}

// WrapGateway returns gw decorated with OTel instrumentation.
func WrapGateway(gw *engine.Gateway) runner.Session {
	if !Enabled() {
		return gw
	}
	return newInstrumentedGateway(gw)
}

func newInstrumentedGateway(gw *engine.Gateway) *InstrumentedGateway {
	m := Meter(gatewayScopeName)
	reqs, _ := m.Int64Counter("cockpit.engine.requests",
		metric.WithDescription("Total engine REST requests issued"),
	)
	dur, _ := m.Float64Histogram("cockpit.engine.duration",
		metric.WithDescription("Engine REST request duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	errs, _ := m.Int64Counter("cockpit.engine.errors",
		metric.WithDescription("Total failed engine REST requests"),
	)
	incidents, _ := m.Int64Gauge("cockpit.engine.incidents",
		metric.WithDescription("Failed-job incidents returned by the last incident query"),
	)
	return &InstrumentedGateway{
		Gateway:   gw,
		tracer:    Tracer(gatewayScopeName),
		reqs:      reqs,
		dur:       dur,
		errs:      errs,
		incidents: incidents,
	}
}

func (g *InstrumentedGateway) op(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span, time.Time, []attribute.KeyValue) {
	all := append([]attribute.KeyValue{
		attribute.String("cockpit.engine", g.Name()),
		attribute.String("cockpit.operation", name),
	}, attrs...)
	ctx, span := g.tracer.Start(ctx, "engine."+name,
		trace.WithAttributes(all...),
		trace.WithSpanKind(trace.SpanKindClient),
	)
	g.reqs.Add(ctx, 1, metric.WithAttributes(all[:2]...))
	return ctx, span, time.Now(), all[:2]
}

func (g *InstrumentedGateway) done(ctx context.Context, span trace.Span, start time.Time, err error, attrs []attribute.KeyValue) {
	ms := float64(time.Since(start).Milliseconds())
	g.dur.Record(ctx, ms, metric.WithAttributes(attrs...))
	if err != nil {
		if status := engine.StatusCode(err); status != 0 {
			span.SetAttributes(attribute.Int("http.response.status_code", status))
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		g.errs.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
	span.End()
}

func (g *InstrumentedGateway) GetIncidents(ctx context.Context, processInstanceID, activityID string) ([]types.Incident, error) {
	ctx, span, t, attrs := g.op(ctx, "GetIncidents",
		attribute.String("cockpit.process_instance_id", processInstanceID),
		attribute.String("cockpit.activity_id", activityID),
	)
	v, err := g.Gateway.GetIncidents(ctx, processInstanceID, activityID)
	if err == nil {
		span.SetAttributes(attribute.Int("cockpit.incident.count", len(v)))
		g.incidents.Record(ctx, int64(len(v)), metric.WithAttributes(attrs[0]))
	}
	g.done(ctx, span, t, err, attrs)
	return v, err
}

func (g *InstrumentedGateway) GetJobs(ctx context.Context, processInstanceID string) ([]types.Job, error) {
	ctx, span, t, attrs := g.op(ctx, "GetJobs", attribute.String("cockpit.process_instance_id", processInstanceID))
	v, err := g.Gateway.GetJobs(ctx, processInstanceID)
	if err == nil {
		span.SetAttributes(attribute.Int("cockpit.job.count", len(v)))
	}
	g.done(ctx, span, t, err, attrs)
	return v, err
}

func (g *InstrumentedGateway) PutRetries(ctx context.Context, jobID string, retries int) error {
	ctx, span, t, attrs := g.op(ctx, "PutRetries",
		attribute.String("cockpit.job_id", jobID),
		attribute.Int("cockpit.retries", retries),
	)
	err := g.Gateway.PutRetries(ctx, jobID, retries)
	g.done(ctx, span, t, err, attrs)
	return err
}

func (g *InstrumentedGateway) ListSubProcessInstances(ctx context.Context, id string) ([]types.ProcessInstance, error) {
	ctx, span, t, attrs := g.op(ctx, "ListSubProcessInstances", attribute.String("cockpit.process_instance_id", id))
	v, err := g.Gateway.ListSubProcessInstances(ctx, id)
	g.done(ctx, span, t, err, attrs)
	return v, err
}

func (g *InstrumentedGateway) DeleteProcessInstance(ctx context.Context, id string) error {
	ctx, span, t, attrs := g.op(ctx, "DeleteProcessInstance", attribute.String("cockpit.process_instance_id", id))
	err := g.Gateway.DeleteProcessInstance(ctx, id)
	g.done(ctx, span, t, err, attrs)
	return err
}

func (g *InstrumentedGateway) GetStatistics(ctx context.Context) ([]types.Statistics, error) {
	ctx, span, t, attrs := g.op(ctx, "GetStatistics")
	v, err := g.Gateway.GetStatistics(ctx)
	g.done(ctx, span, t, err, attrs)
	return v, err
}

// AdminPost is traced without the form, which carries credentials.
func (g *InstrumentedGateway) AdminPost(ctx context.Context, apiPath string, form url.Values) error {
	ctx, span, t, attrs := g.op(ctx, "AdminPost", attribute.String("url.path", apiPath))
	err := g.Gateway.AdminPost(ctx, apiPath, form)
	g.done(ctx, span, t, err, attrs)
	return err
}
