package mq

import "errors"

var (
	// ErrRejected — сообщение не может быть обработано никогда.
	// Consumer отправляет его в DLQ без повторной доставки.
	ErrRejected = errors.New("message rejected")

	// ErrNoChannel — соединение без открытого канала.
	ErrNoChannel = errors.New("no channel available")

	// ErrClosed — соединение закрыто вызовом Close.
	ErrClosed = errors.New("amqp connection closed")
)
