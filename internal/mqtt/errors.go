package mqtt

import "errors"

var (
	// ErrNotConnected — операция на отключённом клиенте.
	ErrNotConnected = errors.New("mqtt: client not connected")

	// ErrConnectionFailed — не удалось подключиться к брокеру.
	ErrConnectionFailed = errors.New("mqtt: connection failed")

	// ErrPublishFailed — публикация не подтверждена.
	ErrPublishFailed = errors.New("mqtt: publish failed")

	// ErrSubscribeFailed — подписка не подтверждена.
	ErrSubscribeFailed = errors.New("mqtt: subscribe failed")

	// ErrInvalidQoS — допустимы только 0, 1, 2.
	ErrInvalidQoS = errors.New("mqtt: invalid QoS level")

	// ErrInvalidTopic — пустой топик.
	ErrInvalidTopic = errors.New("mqtt: topic cannot be empty")
)
