package ledger

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // métricas Prometheus
var (
	operations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_operations_total",
		Help: "Operações do ledger por tipo e resultado",
	}, []string{"op", "result"})

	settlements = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_settlements_total",
		Help: "Apostas liquidadas por caminho de resolução",
	}, []string{"kind"})

	yieldDistributed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ledger_yield_distributed_total",
		Help: "Rendimento distribuído aos participantes (menor unidade)",
	})

	dustRetained = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ledger_yield_retained_total",
		Help: "Rendimento não distribuído que ficou no custodiante (truncamento ou lado vazio)",
	})

	publishFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_event_publish_failures_total",
		Help: "Falhas ao publicar eventos do ciclo de vida",
	}, []string{"type"})

	refundFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ledger_refund_failures_total",
		Help: "Compensações de pull que falharam e deixaram stake órfão no escrow",
	})
)

func observe(op string, err error) {
	result := "ok"
	if err != nil {
		result = string(KindOf(err))
	}
	operations.WithLabelValues(op, result).Inc()
}
