// SPDX-License-Identifier: MIT

package telemetry

import (
	"fmt"

	"go.opentelemetry.io/otel/attribute"
)

// Attribute keys shared across spans.
const (
	HTTPMethodKey     = "http.method"
	HTTPRouteKey      = "http.route"
	HTTPStatusCodeKey = "http.status_code"

	PrintLayersKey      = "print.layers"
	PrintImagesKey      = "print.images"
	PrintImagesAfterKey = "print.images_after"
	PrintDigestKey      = "print.digest"

	JobIDKey     = "job.id"
	JobSourceKey = "job.source"
	JobCacheKey  = "job.cache"

	ErrorKey     = "error"
	ErrorTypeKey = "error.type"
)

// HTTPAttributes creates common HTTP span attributes.
func HTTPAttributes(method, route string, statusCode int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(HTTPMethodKey, method),
		attribute.String(HTTPRouteKey, route),
		attribute.Int(HTTPStatusCodeKey, statusCode),
	}
}

// PrintAttributes describes a print file before and after optimization.
func PrintAttributes(layers, imagesBefore, imagesAfter int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Int(PrintLayersKey, layers),
		attribute.Int(PrintImagesKey, imagesBefore),
		attribute.Int(PrintImagesAfterKey, imagesAfter),
	}
}

// JobAttributes describes an optimization job.
func JobAttributes(id, source, digest string, cacheHit bool) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String(JobIDKey, id),
		attribute.String(JobSourceKey, source),
		attribute.Bool(JobCacheKey, cacheHit),
	}
	if digest != "" {
		attrs = append(attrs, attribute.String(PrintDigestKey, digest))
	}
	return attrs
}

// ErrorAttributes creates error-related span attributes.
func ErrorAttributes(err error) []attribute.KeyValue {
	if err == nil {
		return nil
	}
	return []attribute.KeyValue{
		attribute.Bool(ErrorKey, true),
		attribute.String(ErrorTypeKey, fmt.Sprintf("%T", err)),
	}
}
