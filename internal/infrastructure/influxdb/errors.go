package influxdb

import "errors"

// Sentinel errors; check with errors.Is. Write failures are asynchronous
// and reported through SetOnError instead.
var (
	ErrNotConnected     = errors.New("influxdb: not connected")
	ErrConnectionFailed = errors.New("influxdb: connection failed")
	ErrDisabled         = errors.New("influxdb: disabled in configuration")
)
