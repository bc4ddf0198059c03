// Package engine описывает границу с внешним движком автоматизации.
//
// # Engine
//
// Движок — чёрный ящик: принимает task chains (Submit), выполняет их
// после Start и сообщает о ходе выполнения через Callback из своей
// горутины доставки. Running — неблокирующий флаг.
//
// # MQTTBridge
//
// MQTTBridge реализует Engine поверх MQTT: нативный движок работает в
// sidecar-процессе, запросы и ответы сопоставляются по request id,
// сообщения движка приходят в топик callback, состояние — в
// retained-топик state.
//
//	bridge, err := engine.NewMQTTBridge(mqttClient, engine.BridgeConfig{
//	    Prefix: "maa/engine",
//	})
//	id, err := bridge.Submit(ctx, "Fight", map[string]any{"stage": "1-7"})
package engine
