package cache

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

var meter = otel.Meter("github.com/citybrief/citybrief/internal/cache")

// writeFailures makes silent cache-write drops visible to operators without
// surfacing them to callers.
var writeFailures metric.Int64Counter

func init() {
	var err error
	writeFailures, err = meter.Int64Counter("cache.write_failures.total",
		metric.WithDescription("Cache writes dropped due to store unavailability"))
	if err != nil {
		writeFailures, _ = meter.Int64Counter("cache.write_failures.total.fallback")
	}
}
