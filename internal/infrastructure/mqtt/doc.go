// Package mqtt provides the broker connection used by the spoken device bridge.
//
// The automation controller is reached through an MQTT adapter: it
// publishes retained entity descriptors and status events, and receives
// commands that it acknowledges on a reply topic. This package owns the
// paho client, its reconnection behaviour and the topic scheme; the
// message formats live in the controller package.
//
// # Topic scheme
//
//	{prefix}/entity/{protocol}/{address}   retained entity descriptors
//	{prefix}/state/{protocol}/{address}    status events
//	{prefix}/command/{protocol}/{address}  commands from the bridge
//	{prefix}/ack/{protocol}/{address}      command acknowledgements
//	{prefix}/health/{bridge_id}            retained bridge health
//	{prefix}/system/status                 online/offline (LWT)
//
// # Usage
//
//	topics := mqtt.Topics{Prefix: cfg.Controller.TopicPrefix}
//	client, err := mqtt.Connect(cfg.MQTT, topics)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.Subscribe(topics.AllStates("isy"), 1,
//	    func(topic string, payload []byte) error {
//	        return handleState(payload)
//	    })
//
// TLS should be enabled for any broker outside the local host.
package mqtt
