package telemetry

import (
	"context"
	"maps"
	"slices"
	"strings"

	"github.com/grafana/pyroscope-go"
)

// Profiling label keys
const (
	ProfilingLabelDomain    = "domain"
	ProfilingLabelOperation = "operation"
	ProfilingLabelRoute     = "route"
	ProfilingLabelMethod    = "method"
)

// MaxLabelValueLength bounds label values to keep profile cardinality low
const MaxLabelValueLength = 128

// highCardinalityLabels are dropped from profiling labels; ids belong in
// traces, not in profiles.
var highCardinalityLabels = map[string]bool{
	"user_id":     true,
	"request_id":  true,
	"trace_id":    true,
	"span_id":     true,
	"cash_box_id": true,
	"entry_id":    true,
	"payment_id":  true,
}

// WithProfilingLabels runs fn with pyroscope labels attached to the
// goroutine. The labels map is copied.
func WithProfilingLabels(ctx context.Context, labels map[string]string, fn func(context.Context)) {
	pairs := sanitizeLabels(maps.Clone(labels))
	if len(pairs) == 0 {
		fn(ctx)
		return
	}
	pyroscope.TagWrapper(ctx, pyroscope.Labels(pairs...), fn)
}

// TreasuryOperationLabels labels a money-moving or installment operation
func TreasuryOperationLabels(operation string) map[string]string {
	return map[string]string{
		ProfilingLabelDomain:    "treasury",
		ProfilingLabelOperation: operation,
	}
}

// HTTPRequestLabels labels an HTTP request by route pattern and method
func HTTPRequestLabels(route, method string) map[string]string {
	labels := make(map[string]string, 2)
	if route != "" {
		labels[ProfilingLabelRoute] = route
	}
	if method != "" {
		labels[ProfilingLabelMethod] = method
	}
	return labels
}

// sanitizeLabels returns sorted key/value pairs without empty entries or
// high-cardinality keys, with values truncated to MaxLabelValueLength.
func sanitizeLabels(labels map[string]string) []string {
	if len(labels) == 0 {
		return nil
	}
	pairs := make([]string, 0, len(labels)*2)
	for _, key := range slices.Sorted(maps.Keys(labels)) {
		value := labels[key]
		key = sanitizeLabelKey(key)
		if key == "" || value == "" || highCardinalityLabels[key] {
			continue
		}
		if len(value) > MaxLabelValueLength {
			value = value[:MaxLabelValueLength]
		}
		pairs = append(pairs, key, value)
	}
	return pairs
}

// sanitizeLabelKey lowercases the key and keeps only [a-z0-9_]
func sanitizeLabelKey(key string) string {
	key = strings.NewReplacer(" ", "_", "-", "_").Replace(strings.ToLower(key))
	var b strings.Builder
	for _, c := range key {
		if (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') || c == '_' {
			b.WriteRune(c)
		}
	}
	return b.String()
}
