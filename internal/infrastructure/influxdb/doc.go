// Package influxdb records dispatched device commands as time-series points.
//
// It is optional: when the influxdb config section is disabled Connect
// returns ErrDisabled and the service runs without command history.
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.WriteCommand("dev-1234", "rf", "on", 12*time.Millisecond)
//
// Writes are batched according to batch_size and flush_interval and never
// block the caller.
package influxdb
