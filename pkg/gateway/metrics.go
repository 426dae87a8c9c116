package gateway

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	outcomeAllowed = "allowed"
	outcomeDenied  = "denied"
	outcomeError   = "error"
)

var toolCalls = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "pagegate_tool_calls_total",
		Help: "Tool dispatches by tool name and outcome",
	},
	[]string{"tool", "outcome"},
)
