package metrics

import "testing"

import "github.com/prometheus/client_golang/prometheus/testutil"
import "github.com/stretchr/testify/require"

func TestRecordEval(t *testing.T) {
	RecordEval(1200, 1.5, 0.25, 0.5)
	require.Equal(t, 0.5, testutil.ToFloat64(evalGauges.WithLabelValues("best_precision")))
	require.Equal(t, 1200.0, testutil.ToFloat64(evalGauges.WithLabelValues("global_step")))
}

func TestRecordTrainStep(t *testing.T) {
	RecordTrainStep(40000, 0.7, 0.9, 0.01)
	require.Equal(t, 0.01, testutil.ToFloat64(trainGauges.WithLabelValues("learning_rate")))
}

func TestRecordPoll(t *testing.T) {
	before := testutil.ToFloat64(checkpointPolls.WithLabelValues(PollMissing))
	RecordPoll(PollMissing)
	require.Equal(t, before+1, testutil.ToFloat64(checkpointPolls.WithLabelValues(PollMissing)))
}
