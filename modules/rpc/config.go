package rpc

import (
	"net"
	"strconv"
	"time"
)

// ClientConfig addresses one remote service.
type ClientConfig struct {
	Host        string        `env:"HOST"         envDefault:"localhost"`
	Port        uint16        `env:"PORT"`
	DialTimeout time.Duration `env:"DIAL_TIMEOUT" envDefault:"2s"`

	// Redials are throttled to RedialRate per second with RedialBurst tokens.
	RedialRate  float64 `env:"REDIAL_RATE"  envDefault:"2"`
	RedialBurst int     `env:"REDIAL_BURST" envDefault:"1"`
}

func (c ClientConfig) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(int(c.Port)))
}
