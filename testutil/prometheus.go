package testutil

import (
	"testing"

	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
)

// PromHistogramSampleCount returns the sample count of the named histogram
// metric for the given label values, or 0 when no matching series exists.
func PromHistogramSampleCount(t testing.TB, metrics []*dto.MetricFamily, name string, label ...string) uint64 {
	t.Helper()
	for _, family := range metrics {
		if family.GetName() != name {
			continue
		}
	metricsLoop:
		for _, m := range family.GetMetric() {
			require.Equal(t, len(label), len(m.GetLabel()))
			for i, lv := range label {
				if lv != m.GetLabel()[i].GetValue() {
					continue metricsLoop
				}
			}
			return m.GetHistogram().GetSampleCount()
		}
	}
	return 0
}
