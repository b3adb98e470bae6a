package service

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/zgsm-ai/chat-proxy/internal/model"
)

// MetricsInterface is what request handling reports to
type MetricsInterface interface {
	RecordRoute(route string, success bool)
	RecordChatLog(log *model.ChatLog)
}

// MetricsService handles Prometheus metrics collection
type MetricsService struct {
	registry *prometheus.Registry

	routeRequests *prometheus.CounterVec

	completionsTotal *prometheus.CounterVec
	truncatedTotal   *prometheus.CounterVec

	// Latency metrics
	firstChunkLatency *prometheus.HistogramVec
	mainModelLatency  *prometheus.HistogramVec
	totalLatency      *prometheus.HistogramVec

	toolCalls   *prometheus.CounterVec
	toolLatency *prometheus.HistogramVec

	responseTokens *prometheus.CounterVec

	errorsTotal *prometheus.CounterVec
}

// NewMetricsService creates the metrics on a private registry
func NewMetricsService() *MetricsService {
	ms := &MetricsService{
		registry: prometheus.NewRegistry(),

		routeRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chat_proxy_route_requests_total",
				Help: "Requests per route and outcome",
			},
			[]string{"route", "status"},
		),

		completionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chat_proxy_completions_total",
				Help: "Chat completions by path, model and endpoint",
			},
			[]string{"path", "model", "endpoint", "final_state"},
		),

		truncatedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chat_proxy_truncated_requests_total",
				Help: "Requests whose history was cut to fit the token budget",
			},
			[]string{"model"},
		),

		firstChunkLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "chat_proxy_first_chunk_latency_ms",
				Help:    "Time from upstream call to first relayed chunk in milliseconds",
				Buckets: []float64{100, 250, 500, 1000, 2000, 5000, 10000},
			},
			[]string{"path", "endpoint"},
		),

		mainModelLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "chat_proxy_main_model_latency_ms",
				Help:    "Upstream streaming latency in milliseconds",
				Buckets: []float64{100, 500, 1000, 2000, 5000, 10000, 20000, 60000},
			},
			[]string{"path", "endpoint"},
		),

		totalLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "chat_proxy_total_latency_ms",
				Help:    "Total request latency in milliseconds",
				Buckets: []float64{100, 500, 1000, 2000, 5000, 10000, 20000, 60000, 120000},
			},
			[]string{"path"},
		),

		toolCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chat_proxy_tool_calls_total",
				Help: "Tool executions by tool and result",
			},
			[]string{"tool", "status"},
		),

		toolLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "chat_proxy_tool_latency_ms",
				Help:    "Tool execution latency in milliseconds",
				Buckets: []float64{50, 100, 500, 1000, 5000, 10000, 30000, 100000},
			},
			[]string{"tool"},
		),

		responseTokens: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chat_proxy_response_tokens_total",
				Help: "Completion tokens reported by the upstream",
			},
			[]string{"model"},
		),

		errorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chat_proxy_errors_total",
				Help: "Errors by taxonomy type",
			},
			[]string{"path", "error_type"},
		),
	}

	ms.registry.MustRegister(
		ms.routeRequests,
		ms.completionsTotal,
		ms.truncatedTotal,
		ms.firstChunkLatency,
		ms.mainModelLatency,
		ms.totalLatency,
		ms.toolCalls,
		ms.toolLatency,
		ms.responseTokens,
		ms.errorsTotal,
	)
	return ms
}

// RecordRoute counts one request to an HTTP route
func (ms *MetricsService) RecordRoute(route string, success bool) {
	ms.routeRequests.WithLabelValues(route, strconv.FormatBool(success)).Inc()
}

// RecordChatLog records metrics from a ChatLog entry
func (ms *MetricsService) RecordChatLog(log *model.ChatLog) {
	ms.completionsTotal.WithLabelValues(log.Path, log.Model, log.Endpoint, log.FinalState).Inc()

	if log.KeptMessages < log.OriginalMessages {
		ms.truncatedTotal.WithLabelValues(log.Model).Inc()
	}

	if log.FirstChunkLatency > 0 {
		ms.firstChunkLatency.WithLabelValues(log.Path, log.Endpoint).Observe(float64(log.FirstChunkLatency))
	}
	if log.MainModelLatency > 0 {
		ms.mainModelLatency.WithLabelValues(log.Path, log.Endpoint).Observe(float64(log.MainModelLatency))
	}
	if log.TotalLatency > 0 {
		ms.totalLatency.WithLabelValues(log.Path).Observe(float64(log.TotalLatency))
	}

	for _, call := range log.ToolCalls {
		ms.toolCalls.WithLabelValues(call.ToolName, call.ResultStatus).Inc()
		ms.toolLatency.WithLabelValues(call.ToolName).Observe(float64(call.Latency))
	}

	if log.Usage.CompletionTokens > 0 {
		ms.responseTokens.WithLabelValues(log.Model).Add(float64(log.Usage.CompletionTokens))
	}

	for _, entry := range log.Error {
		for errType := range entry {
			ms.errorsTotal.WithLabelValues(log.Path, string(errType)).Inc()
		}
	}
}

// GetRegistry returns the Prometheus registry
func (ms *MetricsService) GetRegistry() *prometheus.Registry {
	return ms.registry
}
