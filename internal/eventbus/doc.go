// Package eventbus publishes session events onto an MQTT broker.
//
// It wraps paho.mqtt.golang with a narrow connect/publish surface and a
// Last Will and Testament for offline detection, matching the pattern
// internal/infrastructure/mqtt uses elsewhere in this codebase.
//
// Usage:
//
//	bus, err := eventbus.Connect(cfg.EventPublisher, logger)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer bus.Close()
//	go bus.Run(client.Subscribe())
package eventbus
