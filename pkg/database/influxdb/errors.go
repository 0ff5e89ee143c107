package influxdb

import "errors"

var (
	ErrEmptyURL     = errors.New("influxdb: url is required")
	ErrEmptyBucket  = errors.New("influxdb: org and bucket are required")
	ErrClientClosed = errors.New("influxdb: client is closed")
	ErrEmptyFields  = errors.New("influxdb: point has no fields")
)
