package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/smazurov/pingnode/internal/api/models"
	"github.com/smazurov/pingnode/internal/metrics"
)

type probeMetricsInput struct {
	IID uint16 `path:"iid" doc:"IP Ping instance id"`
}

// registerMetricsRoutes exposes the last recorded probe metrics as JSON.
func (s *Server) registerMetricsRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "get-probe-metrics",
		Method:      http.MethodGet,
		Path:        "/api/probes/{iid}/metrics",
		Summary:     "Probe Metrics",
		Description: "Last values recorded for an IP Ping instance, as exported to Prometheus",
		Tags:        []string{"metrics"},
		Security:    withAuth(),
		Errors:      []int{401, 404},
	}, func(_ context.Context, input *probeMetricsInput) (*models.ProbeMetricsResponse, error) {
		m := metrics.GetProbeMetrics(input.IID)
		if m == nil {
			return nil, huma.Error404NotFound(fmt.Sprintf("no metrics recorded for instance %d", input.IID))
		}
		return &models.ProbeMetricsResponse{Body: models.ProbeMetricsData{
			InstanceID:   input.IID,
			State:        m.State,
			SuccessCount: m.SuccessCount,
			ErrorCount:   m.ErrorCount,
			RttMinMs:     m.RttMinMs,
			RttAvgMs:     m.RttAvgMs,
			RttMaxMs:     m.RttMaxMs,
			RttStdevUs:   m.RttStdevUs,
			Runs:         m.Runs,
		}}, nil
	})
}
