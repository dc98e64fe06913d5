// Package telemetry wires the global OTel meter provider used by
// internal/ledger's append and retry counters, grounded on the teacher's
// internal/hooks and
// internal/storage/dolt instrumentation: package-level instruments
// registered against otel.Meter(...) at init time, so they work against
// whatever provider is installed (the no-op default, or the SDK provider
// Init installs) without the instrumented packages importing the SDK
// directly.
package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
)

// serviceResource tags every instrument this process registers with the
// service name, mirroring the teacher's span/metric attributes always
// carrying a fixed "db.system"/service identity.
var serviceResource = resource.NewSchemaless(attribute.String("service.name", "pmm"))

// Init installs an in-process SDK MeterProvider as the global provider.
// It has no configured exporter, so instruments record real values that
// stay in-process; cmd/pmm calls this once at startup so every package's
// otel.Meter(...) instruments attach to a real aggregator instead of the
// global no-op default.
func Init() func() {
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithResource(serviceResource))
	otel.SetMeterProvider(provider)
	return func() { _ = provider.Shutdown(context.Background()) }
}
