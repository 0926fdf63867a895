package port

import (
	"fmt"

	"github.com/VictoriaMetrics/metrics"
)

// portMetrics bundles the counters of one port, labeled by socket type and
// endpoint. Counters are process-global (GetOrCreate), so a port that is
// recreated on the same endpoint continues its series.
type portMetrics struct {
	connectionsAccepted *metrics.Counter
	bytesReceived       *metrics.Counter
	tasksEnqueued       *metrics.Counter
	tasksProcessed      *metrics.Counter
	tasksDropped        *metrics.Counter
}

func newPortMetrics(socketType, endpoint string) *portMetrics {
	labels := fmt.Sprintf(`type=%q, endpoint=%q`, socketType, endpoint)

	counter := func(name string) *metrics.Counter {
		return metrics.GetOrCreateCounter(fmt.Sprintf("%s{%s}", name, labels))
	}

	return &portMetrics{
		connectionsAccepted: counter("physport_connections_accepted_total"),
		bytesReceived:       counter("physport_bytes_received_total"),
		tasksEnqueued:       counter("physport_tasks_enqueued_total"),
		tasksProcessed:      counter("physport_tasks_processed_total"),
		tasksDropped:        counter("physport_tasks_dropped_total"),
	}
}
