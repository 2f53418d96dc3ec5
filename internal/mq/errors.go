package mq

import (
	"errors"
	"fmt"
)

// Ошибки MQ.
var (
	// ErrNoChannel — AMQP канал недоступен (идёт переподключение).
	ErrNoChannel = errors.New("no amqp channel available")

	// ErrClosed — соединение закрыто через Close.
	ErrClosed = errors.New("amqp connection closed")

	// ErrPermanent — сообщение не может быть обработано повторно.
	// Consumer отправляет такое сообщение в DLQ без requeue.
	ErrPermanent = errors.New("permanent message failure")
)

// Permanent помечает ошибку обработчика как неустранимую повтором.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrPermanent, err)
}
