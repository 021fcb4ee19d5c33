package evacalor

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsCollectorCollects(t *testing.T) {
	p := newStubPlatform(t)
	conn := p.connect(t)
	mc := NewMetricsCollector(conn)

	// The bedroom air reading is unknown, so only one series is exported.
	if got := testutil.CollectAndCount(mc, "evacalor_air_temperature_celsius"); got != 1 {
		t.Fatalf("air temperature series = %d, want 1", got)
	}
	if got := testutil.CollectAndCount(mc, "evacalor_power_on_bool"); got != 2 {
		t.Fatalf("power series = %d, want 2", got)
	}

	air := mc.airTemp.WithLabelValues("dev-living", "Living Room", "Eva Calor Diva")
	if got := testutil.ToFloat64(air); got != 21.5 {
		t.Fatalf("living room air temperature = %v, want 21.5", got)
	}
	power := mc.power.WithLabelValues("dev-bedroom", "Bedroom", "Eva Calor Diva")
	if got := testutil.ToFloat64(power); got != 0 {
		t.Fatalf("bedroom power gauge = %v, want 0", got)
	}
	if got := testutil.ToFloat64(mc.success); got != 1 {
		t.Fatalf("scrape success = %v, want 1", got)
	}
	if got := testutil.ToFloat64(tokenValid); got != 1 {
		t.Fatalf("token validity gauge = %v, want 1", got)
	}
}

func TestMetricsCollectorKeepsLastValuesOnFailure(t *testing.T) {
	p := newStubPlatform(t)
	conn := p.connect(t)
	mc := NewMetricsCollector(conn)

	if got := testutil.CollectAndCount(mc, "evacalor_air_temperature_celsius"); got != 1 {
		t.Fatalf("air temperature series = %d, want 1", got)
	}

	p.failJobs = true
	testutil.CollectAndCount(mc)

	if got := testutil.ToFloat64(mc.success); got != 0 {
		t.Fatalf("scrape success after failure = %v, want 0", got)
	}
	air := mc.airTemp.WithLabelValues("dev-living", "Living Room", "Eva Calor Diva")
	if got := testutil.ToFloat64(air); got != 21.5 {
		t.Fatalf("cached air temperature = %v, want 21.5", got)
	}
}

func TestMetricsCollectors(t *testing.T) {
	reg := prometheus.NewPedanticRegistry()
	for _, collector := range MetricsCollectors() {
		if err := reg.Register(collector); err != nil {
			t.Fatalf("registering session collector: %v", err)
		}
	}
}
