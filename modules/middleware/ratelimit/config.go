package ratelimit

import "time"

type KeyStrategyId string

const (
	RemoteIpKeyStrategy KeyStrategyId = "remote_ip"
	AthleteKeyStrategy  KeyStrategyId = "athlete"
)

// KeyStrategies maps every strategy name the configuration may use.
func KeyStrategies() map[KeyStrategyId]KeyFunc {
	return map[KeyStrategyId]KeyFunc{
		RemoteIpKeyStrategy: RemoteIpKeyFunc,
		AthleteKeyStrategy:  AthleteKeyFunc,
	}
}

type (
	// RestHTTPConfig is read from RATE_LIMIT_*, for example
	// RATE_LIMIT_ROUTE_0_PATTERN=/v1/dietary-profiles/{id} and
	// RATE_LIMIT_ROUTE_0_POLICY_0_METHOD=POST.
	RestHTTPConfig struct {
		Enabled             bool         `env:"ENABLED"           envDefault:"true"`
		AllowIfNoMatch      bool         `env:"ALLOW_IF_NO_MATCH" envDefault:"true"`
		AllowIfNoIdentifier bool         `env:"ALLOW_IF_NO_ID"`
		DefaultPolicy       EndpointRule `envPrefix:"DEFAULT_"`
		Routes              []Route      `envPrefix:"ROUTE_"`
	}

	Route struct {
		Pattern       string         `env:"PATTERN"`
		EndpointRules []EndpointRule `envPrefix:"POLICY_"`
	}

	EndpointRule struct {
		Method      string        `env:"METHOD"`
		Limit       int64         `env:"LIMIT"        envDefault:"10000"`
		Window      time.Duration `env:"WINDOW"`
		KeyStrategy KeyStrategyId `env:"KEY_STRATEGY"`
	}
)
