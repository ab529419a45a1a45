package store

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

var meter = otel.Meter("github.com/citybrief/citybrief/internal/store")

var purgesTotal metric.Int64Counter

func init() {
	var err error
	purgesTotal, err = meter.Int64Counter("store.purged.total",
		metric.WithDescription("Entries removed by purge sweeps"))
	if err != nil {
		purgesTotal, _ = meter.Int64Counter("store.purged.total.fallback")
	}
}
