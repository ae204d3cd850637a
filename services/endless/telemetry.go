package endless

import "go.opentelemetry.io/otel"

const library_name = "sgassist.services.endless"

var tracer = otel.Tracer(library_name)

var meter = otel.Meter(library_name)
var pagesLoaded, _ = meter.Int64Counter("endless_pages_loaded")
var rowsSpliced, _ = meter.Int64Counter("endless_rows_spliced")
