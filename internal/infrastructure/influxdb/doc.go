// Package influxdb records robot telemetry in InfluxDB.
//
// It wraps the official influxdb-client-go v2 library with connection
// management, batched non-blocking writes, and health checks.
//
// # Measurements
//
//   - robot_status: battery, bin and tank levels, derived status, tagged
//     by robot_id and family
//   - robot_connection: connection phase changes, tagged by robot_id
//
// # Usage
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	client.WritePoint(influxdb.MeasurementStatus,
//	    map[string]string{"robot_id": "3145C61042726780"},
//	    map[string]any{"battery_percent": 87},
//	    time.Now())
//
// # Thread Safety
//
// All methods are safe for concurrent use from multiple goroutines.
//
// # Error Handling
//
// Writes never block and never return errors; batch failures are
// delivered to the SetOnError callback. Connection and health check
// errors are returned directly.
package influxdb
