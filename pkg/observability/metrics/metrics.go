package metrics

import (
	"fmt"
	"net/http"
	"sync/atomic"
)

var (
	documentsQueued    atomic.Int64
	documentsSubmitted atomic.Int64
	documentsCompleted atomic.Int64
	documentsFailed    atomic.Int64
	duplicatesDropped  atomic.Int64
	activePollers      atomic.Int64
)

func DocumentQueued()    { documentsQueued.Add(1) }
func DocumentSubmitted() { documentsSubmitted.Add(1) }
func DocumentCompleted() { documentsCompleted.Add(1) }
func DocumentFailed()    { documentsFailed.Add(1) }
func DuplicateDropped()  { duplicatesDropped.Add(1) }

func SetActivePollers(n int) { activePollers.Store(int64(n)) }

func WritePrometheus(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")

	fmt.Fprintf(w, "# HELP fiscalflow_documents_queued_total Documents moved from draft to queued by the detector.\n")
	fmt.Fprintf(w, "# TYPE fiscalflow_documents_queued_total counter\n")
	fmt.Fprintf(w, "fiscalflow_documents_queued_total %d\n", documentsQueued.Load())

	fmt.Fprintf(w, "# HELP fiscalflow_documents_submitted_total Documents submitted to the gateway.\n")
	fmt.Fprintf(w, "# TYPE fiscalflow_documents_submitted_total counter\n")
	fmt.Fprintf(w, "fiscalflow_documents_submitted_total %d\n", documentsSubmitted.Load())

	fmt.Fprintf(w, "# HELP fiscalflow_documents_completed_total Documents finalized with all artifact links.\n")
	fmt.Fprintf(w, "# TYPE fiscalflow_documents_completed_total counter\n")
	fmt.Fprintf(w, "fiscalflow_documents_completed_total %d\n", documentsCompleted.Load())

	fmt.Fprintf(w, "# HELP fiscalflow_documents_failed_total Documents finalized as failed.\n")
	fmt.Fprintf(w, "# TYPE fiscalflow_documents_failed_total counter\n")
	fmt.Fprintf(w, "fiscalflow_documents_failed_total %d\n", documentsFailed.Load())

	fmt.Fprintf(w, "# HELP fiscalflow_duplicate_deliveries_total Request messages dropped because the document already left queued.\n")
	fmt.Fprintf(w, "# TYPE fiscalflow_duplicate_deliveries_total counter\n")
	fmt.Fprintf(w, "fiscalflow_duplicate_deliveries_total %d\n", duplicatesDropped.Load())

	fmt.Fprintf(w, "# HELP fiscalflow_active_pollers Polling tasks currently registered.\n")
	fmt.Fprintf(w, "# TYPE fiscalflow_active_pollers gauge\n")
	fmt.Fprintf(w, "fiscalflow_active_pollers %d\n", activePollers.Load())
}
