package telemetry

import (
	"fmt"
	"io"
	"net/http"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/semconv/v1.13.0/httpconv"
	"go.opentelemetry.io/otel/trace"
)

// response bodies of listing pages are large, only keep the head of them
const maxBodyAttribute = 4096

// InstrumentResty opens one span per request made through client.
func InstrumentResty(client *resty.Client, tracerName string) {
	tracer := otel.Tracer(tracerName)

	client.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
		ctx, _ := tracer.Start(req.Context(), req.Method)
		req.SetContext(ctx)
		return nil
	})
	client.OnAfterResponse(onAfterResponse)
	client.OnError(onError)
}

func headerAttributes(prefix string, headers http.Header) []attribute.KeyValue {
	var out []attribute.KeyValue
	for header, values := range headers {
		// session cookies end up in traces otherwise
		if header == "Cookie" || header == "Set-Cookie" {
			continue
		}
		if len(values) == 1 {
			out = append(out, attribute.String(fmt.Sprintf("%s/header: %s", prefix, header), values[0]))
			continue
		}
		for i, v := range values {
			out = append(out, attribute.String(fmt.Sprintf("%s/header: %s (%d)", prefix, header, i), v))
		}
	}
	return out
}

func truncate(s string) string {
	if len(s) <= maxBodyAttribute {
		return s
	}
	return s[:maxBodyAttribute] + "..."
}

func requestBodyAttribute(req *http.Request) attribute.KeyValue {
	if req.GetBody == nil {
		return attribute.String("request/body", "")
	}
	reader, err := req.GetBody()
	if err != nil {
		return attribute.String("request/body", fmt.Sprintf("failed to get request body: %s", err.Error()))
	}
	if reader == nil {
		return attribute.String("request/body", "")
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		return attribute.String("request/body", fmt.Sprintf("failed to read request body: %s", err.Error()))
	}
	return attribute.String("request/body", truncate(string(body)))
}

func onAfterResponse(_ *resty.Client, res *resty.Response) error {
	span := trace.SpanFromContext(res.Request.Context())
	defer span.End()

	// request attributes are set here since res.Request.RawRequest is nil in OnBeforeRequest
	span.SetName(fmt.Sprintf("http %s", res.Request.Method))
	span.SetAttributes(httpconv.ClientRequest(res.Request.RawRequest)...)
	span.SetAttributes(httpconv.ClientResponse(res.RawResponse)...)
	span.SetAttributes(headerAttributes("request", res.Request.Header)...)
	span.SetAttributes(headerAttributes("response", res.Header())...)
	span.SetAttributes(
		requestBodyAttribute(res.Request.RawRequest),
		attribute.String("response/body", truncate(res.String())),
	)

	if res.IsError() {
		span.SetStatus(codes.Error, res.Status())
	}
	return nil
}

func onError(req *resty.Request, err error) {
	span := trace.SpanFromContext(req.Context())
	defer span.End()

	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	span.SetName(fmt.Sprintf("http %s", req.Method))
	span.SetAttributes(headerAttributes("request", req.Header)...)

	if req.RawRequest == nil {
		return
	}
	span.SetAttributes(httpconv.ClientRequest(req.RawRequest)...)
	span.SetAttributes(requestBodyAttribute(req.RawRequest))
}
