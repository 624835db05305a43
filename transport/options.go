package transport

import (
	"time"

	"go.uber.org/zap"
)

type Options struct {
	// Host to connect to
	Host string

	// Port to connect to
	Port int

	// KeepAlive is the keep-alive period for the connection. Zero means 45s,
	// a negative value disables keep-alives.
	KeepAlive time.Duration

	// Trace will dump every byte written to the logger at debug level.
	// This is only useful in local debugging
	Trace bool

	Log *zap.Logger
}
