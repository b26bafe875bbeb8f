// Package mqtt provides MQTT client connectivity for the OTG controller.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Topic subscriptions with wildcard support
//   - Last Will and Testament (LWT) for offline detection
//
// # Topics
//
// Every topic lives under a configurable prefix (cfg.MQTT.TopicPrefix,
// default "otg"):
//
//	otg/system/status                   presence, retained, also the LWT
//	otg/automation/status               engine state, retained
//	otg/automation/cycles               one message per cycle
//	otg/automation/command/{name}       start, stop, emergency_stop
//	otg/automation/result/{name}        outcome of a command
//
// # Security Considerations
//
//   - Enable TLS (cfg.Broker.TLS) when the broker is not on localhost
//   - Anyone who can publish to the command topics can start and stop
//     automation; restrict them with broker ACLs
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.Subscribe(client.Topics().AllCommands(), 1,
//	    func(topic string, payload []byte) error {
//	        log.Printf("command %s", client.Topics().CommandName(topic))
//	        return nil
//	    })
package mqtt
