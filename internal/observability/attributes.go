// Package observability provides metrics for simulation runs.
package observability

import (
	"go.opentelemetry.io/otel/attribute"
)

// Attribute keys
const (
	attrSuccess  = "success"
	attrTerminal = "terminal"
)

func successAttr(success bool) attribute.KeyValue {
	return attribute.Bool(attrSuccess, success)
}

func terminalAttr(terminal bool) attribute.KeyValue {
	return attribute.Bool(attrTerminal, terminal)
}
