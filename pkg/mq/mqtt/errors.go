package mqtt

import "errors"

var (
	ErrNoBrokers      = errors.New("mqtt: no brokers configured")
	ErrEmptyClientID  = errors.New("mqtt: empty client id")
	ErrInvalidQoS     = errors.New("mqtt: qos must be 0, 1 or 2")
	ErrNotConnected   = errors.New("mqtt: not connected")
	ErrPublishTimeout = errors.New("mqtt: publish timeout")
	ErrClientClosed   = errors.New("mqtt: client is closed")
)
