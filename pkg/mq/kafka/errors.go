package kafka

import "errors"

var (
	ErrInvalidConfig          = errors.New("kafka: invalid config")
	ErrNoBrokers              = errors.New("kafka: no brokers configured")
	ErrEmptyGroupID           = errors.New("kafka: empty group id")
	ErrClientClosed           = errors.New("kafka: client is closed")
	ErrProducerClosed         = errors.New("kafka: producer is closed")
	ErrConsumerAlreadyRunning = errors.New("kafka: consumer is already running")
	ErrNoHandler              = errors.New("kafka: no handler provided")
	ErrNoTopics               = errors.New("kafka: no topics provided")
	ErrConsumerPanic          = errors.New("kafka: consumer panic")
)
