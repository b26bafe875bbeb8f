// Package telemetry connects the automation engine to the message bus and
// the time-series store.
//
// The Bridge registers engine callbacks and:
//   - publishes every cycle result to {prefix}/automation/cycles
//   - publishes retained engine status to {prefix}/automation/status
//   - writes automation_cycle and automation_engine points to InfluxDB
//   - executes start, stop and emergency_stop commands received on
//     {prefix}/automation/command/+ and answers on
//     {prefix}/automation/result/{command}
//
// Either sink may be absent. Publish and write failures are logged and
// never reach the automation loop.
//
// # Usage
//
//	bridge := telemetry.New(telemetry.Deps{
//	    Engine:  engine,
//	    MQTT:    mqttClient,
//	    Metrics: influxClient,
//	    Configs: registry,
//	    Topics:  mqttClient.Topics(),
//	    QoS:     byte(cfg.MQTT.QoS),
//	})
//	if err := bridge.Start(ctx); err != nil {
//	    return err
//	}
package telemetry
