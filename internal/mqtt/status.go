package mqtt

import (
	"encoding/json"
	"fmt"
)

// DefaultStatusTopic — топик retained-статуса pipeline.
const DefaultStatusTopic = "maa/pipeline/status"

// Publisher — часть Client, нужная StatusPublisher.
type Publisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// StatusPublisher публикует последний статус pipeline как retained
// сообщение: новый подписчик сразу получает актуальное состояние.
type StatusPublisher struct {
	pub   Publisher
	topic string
	qos   byte
}

// NewStatusPublisher создаёт StatusPublisher. Пустой topic заменяется
// на DefaultStatusTopic.
func NewStatusPublisher(pub Publisher, topic string, qos byte) *StatusPublisher {
	if topic == "" {
		topic = DefaultStatusTopic
	}
	return &StatusPublisher{pub: pub, topic: topic, qos: qos}
}

// Topic возвращает топик статуса.
func (s *StatusPublisher) Topic() string {
	return s.topic
}

// PublishJSON сериализует v и публикует его с флагом retained.
func (s *StatusPublisher) PublishJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal status: %w", err)
	}
	return s.pub.Publish(s.topic, data, s.qos, true)
}
