package evacalor

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	loginSuccess = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "evacalor_login_success_total",
		Help: "Successful platform logins",
	})
	loginFailure = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "evacalor_login_failure_total",
		Help: "Failed platform logins",
	})
	refreshSuccess = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "evacalor_token_refresh_success_total",
		Help: "Successful token refreshes",
	})
	refreshFailure = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "evacalor_token_refresh_failure_total",
		Help: "Failed token refreshes",
	})
	authRecovery = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "evacalor_auth_recovery_total",
		Help: "Mid-session 401 recoveries attempted",
	})
	tokenValid = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "evacalor_token_valid",
		Help: "Auth token validity (1=valid, 0=invalid)",
	})
)

// MetricsCollectors returns the session-level collectors, for registration
// alongside a per-connection MetricsCollector.
func MetricsCollectors() []prometheus.Collector {
	return []prometheus.Collector{
		loginSuccess,
		loginFailure,
		refreshSuccess,
		refreshFailure,
		authRecovery,
		tokenValid,
	}
}

// MetricsCollector exposes per-device heating metrics for one connection.
// Each scrape refreshes every device through the connection, so it counts
// as a caller under the connection's single-caller contract: do not issue
// other calls on the connection while a registry using this collector is
// being scraped.
type MetricsCollector struct {
	conn *Connection

	airTemp     *prometheus.GaugeVec
	targetTemp  *prometheus.GaugeVec
	smokeTemp   *prometheus.GaugeVec
	status      *prometheus.GaugeVec
	power       *prometheus.GaugeVec
	powerLevel  *prometheus.GaugeVec
	realPower   *prometheus.GaugeVec
	alarms      *prometheus.GaugeVec
	online      *prometheus.GaugeVec
	lastRefresh *prometheus.GaugeVec

	lastSuccess prometheus.Gauge
	success     prometheus.Gauge
}

func NewMetricsCollector(conn *Connection) *MetricsCollector {
	labels := []string{"device_id", "device_name", "product"}
	return &MetricsCollector{
		conn: conn,
		airTemp: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "evacalor_air_temperature_celsius",
			Help: "Current air temperature per device",
		}, labels),
		targetTemp: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "evacalor_target_temperature_celsius",
			Help: "Target air temperature per device",
		}, labels),
		smokeTemp: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "evacalor_smoke_temperature_celsius",
			Help: "Flue gas temperature per device",
		}, labels),
		status: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "evacalor_status_code",
			Help: "Platform status code per device (0=off, 4=on, ...)",
		}, labels),
		power: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "evacalor_power_on_bool",
			Help: "Managed power state per device (1=on, 0=off)",
		}, labels),
		powerLevel: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "evacalor_power_level",
			Help: "Configured burn power level per device",
		}, labels),
		realPower: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "evacalor_real_power",
			Help: "Actual burn power level per device",
		}, labels),
		alarms: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "evacalor_alarm_code",
			Help: "Active alarm code per device (0=none)",
		}, labels),
		online: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "evacalor_online_bool",
			Help: "Platform online flag per device (1=online, 0=offline)",
		}, labels),
		lastRefresh: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "evacalor_device_last_refresh_timestamp_seconds",
			Help: "Last snapshot refresh timestamp per device (epoch seconds)",
		}, labels),
		lastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "evacalor_last_success_timestamp_seconds",
			Help: "Last fully successful scrape timestamp (epoch seconds)",
		}),
		success: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "evacalor_scrape_success",
			Help: "Last scrape success (1=ok, 0=error)",
		}),
	}
}

func (c *MetricsCollector) Describe(ch chan<- *prometheus.Desc) {
	c.airTemp.Describe(ch)
	c.targetTemp.Describe(ch)
	c.smokeTemp.Describe(ch)
	c.status.Describe(ch)
	c.power.Describe(ch)
	c.powerLevel.Describe(ch)
	c.realPower.Describe(ch)
	c.alarms.Describe(ch)
	c.online.Describe(ch)
	c.lastRefresh.Describe(ch)
	c.lastSuccess.Describe(ch)
	c.success.Describe(ch)
}

func (c *MetricsCollector) Collect(ch chan<- prometheus.Metric) {
	// The budget must cover one full job poll cycle per device.
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	scrapeOK := true
	for _, device := range c.conn.Devices() {
		fresh, err := c.conn.Refresh(ctx, device.ID)
		if err != nil {
			scrapeOK = false
			continue
		}
		c.setDevice(fresh)
	}

	if scrapeOK {
		c.success.Set(1)
		c.lastSuccess.Set(float64(time.Now().Unix()))
	} else {
		c.success.Set(0)
	}
	c.collectAll(ch)
}

// setDevice records one refreshed snapshot. Unknown readings leave their
// gauge untouched, so the last known value keeps being exported.
func (c *MetricsCollector) setDevice(device Device) {
	labels := prometheus.Labels{
		"device_id":   device.ID,
		"device_name": device.Name,
		"product":     device.Model,
	}
	if device.AirTemperature != nil {
		c.airTemp.With(labels).Set(*device.AirTemperature)
	}
	if device.SmokeTemperature != nil {
		c.smokeTemp.With(labels).Set(*device.SmokeTemperature)
	}
	c.targetTemp.With(labels).Set(device.TargetTemperature)
	c.status.With(labels).Set(float64(device.Status))
	c.power.With(labels).Set(boolToFloat(device.Power))
	c.powerLevel.With(labels).Set(float64(device.PowerLevel))
	c.realPower.With(labels).Set(float64(device.RealPower))
	c.alarms.With(labels).Set(float64(device.Alarms))
	c.online.With(labels).Set(boolToFloat(device.Online))
	c.lastRefresh.With(labels).Set(float64(device.RefreshedAt.Unix()))
}

func (c *MetricsCollector) collectAll(ch chan<- prometheus.Metric) {
	c.airTemp.Collect(ch)
	c.targetTemp.Collect(ch)
	c.smokeTemp.Collect(ch)
	c.status.Collect(ch)
	c.power.Collect(ch)
	c.powerLevel.Collect(ch)
	c.realPower.Collect(ch)
	c.alarms.Collect(ch)
	c.online.Collect(ch)
	c.lastRefresh.Collect(ch)
	c.lastSuccess.Collect(ch)
	c.success.Collect(ch)
}

func boolToFloat(value bool) float64 {
	if value {
		return 1
	}
	return 0
}
