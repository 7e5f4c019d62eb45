package emission

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics observabilidade das trocas com a Sefin Nacional e o ADN.
type Metrics struct {
	// Duração de cada troca por operação e status HTTP ("transporte" em falha de rede)
	ExchangeLatency *prometheus.HistogramVec

	// Resultado das operações: sucesso, rejeitada, erro_local, erro_transporte
	Outcome *prometheus.CounterVec
}

// NewMetrics registra as métricas no registry padrão.
func NewMetrics() *Metrics {
	return NewMetricsWith(prometheus.DefaultRegisterer)
}

// NewMetricsWith registra as métricas no registry informado (testes usam um registry próprio).
func NewMetricsWith(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ExchangeLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "nfse_operacao_duracao_segundos",
			Help:    "Duração das trocas com a autoridade por operação e status",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"op", "status"}),

		Outcome: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "nfse_operacoes_total",
			Help: "Total de operações NFS-e por resultado",
		}, []string{"op", "resultado"}),
	}
}

// ObserveExchange registra a duração de uma troca.
func (m *Metrics) ObserveExchange(op, status string, d time.Duration) {
	if m != nil {
		m.ExchangeLatency.WithLabelValues(op, status).Observe(d.Seconds())
	}
}

// IncrementOutcome registra o resultado de uma operação.
func (m *Metrics) IncrementOutcome(op, resultado string) {
	if m != nil {
		m.Outcome.WithLabelValues(op, resultado).Inc()
	}
}
