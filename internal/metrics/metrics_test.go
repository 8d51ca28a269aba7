package metrics

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestCountersExposed(t *testing.T) {
	m := New()
	m.BidAccept.WithLabelValues("conflict").Inc()
	m.BidAccept.WithLabelValues("conflict").Inc()
	m.AffiliateActivate.WithLabelValues("limit_reached").Inc()

	require.Equal(t, 2.0, testutil.ToFloat64(m.BidAccept.WithLabelValues("conflict")))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Result().Body)
	require.NoError(t, err)
	require.Contains(t, string(body), `procure_affiliate_activation_total{outcome="limit_reached"} 1`)
}

func TestIndependentRegistries(t *testing.T) {
	require.NotPanics(t, func() {
		New()
		New()
	})
}
