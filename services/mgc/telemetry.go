package mgc

import "go.opentelemetry.io/otel"

const library_name = "sgassist.services.mgc"

var tracer = otel.Tracer(library_name)

var meter = otel.Meter(library_name)
var giveawaysCreated, _ = meter.Int64Counter("mgc_giveaways_created")
var giveawaysFailed, _ = meter.Int64Counter("mgc_giveaways_failed")
var duplicateWaits, _ = meter.Int64Counter("mgc_duplicate_waits")
