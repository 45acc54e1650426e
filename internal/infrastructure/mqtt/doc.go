// Package mqtt connects the RF control core to the MQTT broker that fronts
// the radio transmitters.
//
// The core only publishes. Each accepted control request becomes one
// non-retained message on {prefix}/command/{variant}/{device_id}; a bridge
// process next to the transmitter subscribes to those topics and keys the
// radio. The client also maintains a retained status message on
// {prefix}/system/status, backed by a Last Will so an unexpected drop is
// visible to the bridges.
//
// # Usage
//
//	topics := mqtt.Topics{Prefix: cfg.Control.TopicPrefix}
//	client, err := mqtt.Connect(cfg.MQTT, topics)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	ctx, cancel := context.WithTimeout(ctx, cfg.GetPublishTimeout())
//	defer cancel()
//	err = client.PublishContext(ctx, topics.Command("rf", deviceID), payload, 1, false)
package mqtt
