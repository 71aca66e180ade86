package observability

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"ghostcredit/core/events"
)

type namedEvent string

func (e namedEvent) EventType() string { return string(e) }

func TestCountingEmitterForwards(t *testing.T) {
	rec := &events.Recorder{}
	emitter := CountingEmitter{Next: rec}
	counter := Events().Emitted().WithLabelValues("credit.account_created")
	before := testutil.ToFloat64(counter)

	emitter.Emit(namedEvent("credit.account_created"))
	emitter.Emit(nil)

	require.Equal(t, before+1, testutil.ToFloat64(counter))
	require.Equal(t, []string{"credit.account_created"}, rec.Types())

	// Without a downstream emitter the event is still counted.
	CountingEmitter{}.Emit(namedEvent("credit.account_created"))
	require.Equal(t, before+2, testutil.ToFloat64(counter))
}

func TestAPIMetricsLabelsErrors(t *testing.T) {
	m := API()
	m.Observe("/v1/accounts/{address}", "GET", 404, 5*time.Millisecond)
	m.Observe("", "", 200, time.Millisecond)
	m.RecordThrottle("accounts", "")

	require.GreaterOrEqual(t, testutil.ToFloat64(m.errors.WithLabelValues("/v1/accounts/{address}", "GET", "404")), 1.0)
	require.GreaterOrEqual(t, testutil.ToFloat64(m.requests.WithLabelValues("unknown", "unknown", "success")), 1.0)
	require.GreaterOrEqual(t, testutil.ToFloat64(m.Throttles().WithLabelValues("accounts", "unspecified")), 1.0)
}
