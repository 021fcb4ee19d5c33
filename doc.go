// Package evacalor controls Eva Calor pellet stoves through Micronova's
// Agua IOT cloud platform.
//
// A Connection authenticates the account and eagerly loads every device
// registered to it: identity, register map, and a first reading. Connect
// returns only once each device has a populated snapshot, so Devices is
// immediately meaningful:
//
//	token := evacalor.NewClientToken() // generate once, reuse per installation
//
//	conn, err := evacalor.Connect(ctx, evacalor.Config{
//		Email:       "user@example.com",
//		Password:    "secret",
//		ClientToken: token,
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	for _, device := range conn.Devices() {
//		fmt.Printf("%s: %s, %.1f°C\n", device.Name, device.StatusText, device.TargetTemperature)
//		if _, err := conn.SetTargetTemperature(ctx, device.ID, 21.5); err != nil {
//			log.Fatal(err)
//		}
//	}
//
// Device state is exposed as point-in-time snapshots. Devices and Device
// serve the cached snapshot; Refresh and every write re-read state from
// the platform, and a failed refresh keeps the last-known-good snapshot.
// A reading the platform reports malformed decodes to nil ("unknown")
// instead of failing the device.
//
// # Caller contract
//
// A Connection must not be used from multiple goroutines at once. The
// platform keeps per-session state server-side, and overlapping calls can
// race a token re-authentication against an in-flight request. Sequence
// calls, or open one Connection per goroutine. Token state itself is
// mutex-guarded, so a violated contract corrupts no memory; it risks
// platform-side session churn.
//
// # Errors
//
// Operations fail with one of four types, matchable with errors.As:
// *AuthError (rejected credentials or an authorization the platform
// refuses after recovery), *NetworkError (transport failure, safe to
// retry), *ServiceError (unexpected status or response shape), and
// *ValidationError (caller input rejected locally, nothing sent).
// An authorization failure mid-session is recovered once, by refreshing
// the token and falling back to a full login, before AuthError surfaces.
//
// # Metrics
//
// NewMetricsCollector exposes per-device gauges for one connection and
// MetricsCollectors returns the session-level counters; both register
// with any prometheus.Registerer.
package evacalor
