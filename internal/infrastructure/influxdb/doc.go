// Package influxdb writes switch metrics to InfluxDB.
//
// It wraps the official influxdb-client-go v2 library with connection
// management, batched non-blocking writes and health checks. The switch
// records connection attempts, publish outcomes, state changes and a
// periodic heartbeat.
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB, "kitchen-01")
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.WriteState("power", "on")
//
// # Thread Safety
//
// All methods are safe for concurrent use from multiple goroutines.
//
// # Error Handling
//
// Writes never block and never return errors; asynchronous write failures
// are delivered to the callback set with SetOnError. Connection and health
// check errors are returned directly.
package influxdb
