// Package observability provides metrics for grid requests and poll loops.
package observability

import (
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"
)

// Attribute keys
const (
	attrMethod    = "method"
	attrEndpoint  = "endpoint"
	attrStatus    = "status"
	attrOperation = "operation"
	attrSuccess   = "success"
)

func methodAttr(method string) attribute.KeyValue {
	return attribute.String(attrMethod, method)
}

func endpointAttr(path string) attribute.KeyValue {
	return attribute.String(attrEndpoint, normalizePath(path))
}

func statusAttr(code int) attribute.KeyValue {
	// 0 is a transport failure, everything else is grouped (2xx, 4xx, 5xx)
	if code == 0 {
		return attribute.String(attrStatus, "error")
	}
	return attribute.String(attrStatus, fmt.Sprintf("%dxx", code/100))
}

func operationAttr(operation string) attribute.KeyValue {
	return attribute.String(attrOperation, operation)
}

func successAttr(success bool) attribute.KeyValue {
	return attribute.Bool(attrSuccess, success)
}

// normalizePath replaces file names and session ids with placeholders.
// A grid URL may carry a path prefix, so only the tail is inspected.
func normalizePath(path string) string {
	if i := strings.LastIndex(path, "/video/"); i >= 0 && len(path) > i+len("/video/") {
		return "/video/{fileName}"
	}
	i := strings.LastIndex(path, "/download/")
	if i < 0 {
		return path
	}
	rest := strings.Trim(path[i+len("/download/"):], "/")
	switch {
	case rest == "":
		return path
	case strings.Contains(rest, "/"):
		return "/download/{sessionId}/{fileName}"
	default:
		return "/download/{sessionId}"
	}
}
