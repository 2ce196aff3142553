package monitor

import "github.com/prometheus/client_golang/prometheus"

var (
	// ParseResultsTotal 记录交易文本解析结果分布
	// outcome: ok / empty / parse_error / schema_error
	ParseResultsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "safe_parse_results_total",
			Help: "Total number of transaction text parse attempts by outcome.",
		},
		[]string{"outcome"},
	)

	// SignaturesCollectedTotal 记录成功追加的签名总数
	SignaturesCollectedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "safe_signatures_collected_total",
			Help: "Total number of signatures appended to transactions.",
		},
	)

	// ExecutionsTotal 记录执行提交结果
	ExecutionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "safe_executions_total",
			Help: "Total number of on-chain execution submissions.",
		},
		[]string{"status"}, // submitted / failed
	)
)

// InitBusinessMetrics 注册业务指标
func InitBusinessMetrics() {
	prometheus.MustRegister(ParseResultsTotal)
	prometheus.MustRegister(SignaturesCollectedTotal)
	prometheus.MustRegister(ExecutionsTotal)
}
