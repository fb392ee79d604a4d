// Copyright 2025 Nhat-Nguyen Nguyen
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package telemetry

import "time"

// Mode picks who owns tracing. Under ModeAuto an injected Go
// auto-instrumentation agent traces and only metrics are set up here.
type Mode string

const (
	ModeDetect Mode = "detect"
	ModeManual Mode = "manual"
	ModeAuto   Mode = "auto"
)

// Config follows the OTEL_* environment conventions where one exists.
type Config struct {
	ServiceName    string            `env:"OTEL_SERVICE_NAME"        envDefault:"dietary-profile"`
	ServiceVersion string            `env:"SERVICE_VERSION"          envDefault:"dev"`
	Environment    string            `env:"ENVIRONMENT"              envDefault:"local"`
	ResourceAttrs  map[string]string `env:"OTEL_RESOURCE_ATTRIBUTES" envSeparator:"," envKeyValSeparator:"="`

	Mode     Mode `env:"OTEL_MODE"         envDefault:"detect"`
	Disabled bool `env:"OTEL_SDK_DISABLED"`

	// OTLPEndpoint is a URL or a bare host:port.
	OTLPEndpoint string `env:"OTEL_EXPORTER_OTLP_TRACES_ENDPOINT" envDefault:"otel-collector:4317"`
	Insecure     bool   `env:"OTEL_EXPORTER_OTLP_TRACES_INSECURE"`

	// SamplerRatio 0 samples nothing, 1 everything, anything between is
	// parent based.
	SamplerRatio   float64       `env:"OTEL_SAMPLER_RATIO"    envDefault:"1"`
	DisableMetrics bool          `env:"OTEL_DISABLE_METRICS"`
	StartupTimeout time.Duration `env:"OTEL_STARTUP_TIMEOUT"  envDefault:"5s"`
}
