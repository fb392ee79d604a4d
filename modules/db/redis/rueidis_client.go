// Copyright 2025 Nhat-Nguyen Nguyen
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package redis

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/redis/rueidis"
	"github.com/redis/rueidis/rueidislock"
	"github.com/redis/rueidis/rueidisotel"
)

// ClientOption turns a RedisConfig into a rueidis.ClientOption.
//
// It:
//
//   - Parses redis:// / rediss:// URL
//   - Configures TLS + optional insecure skip verify
//   - Sets basic tuning flags (pipelining, retry, cache, buffers)
//   - Configures server-assisted client-side caching tracking options
func ClientOption(cfg RedisConfig) (rueidis.ClientOption, error) {
	if cfg.URL == "" {
		return rueidis.ClientOption{}, errors.New("rueidis: URL must not be empty")
	}

	u, err := url.Parse(cfg.URL)
	if err != nil {
		return rueidis.ClientOption{}, fmt.Errorf("rueidis: parse url: %w", err)
	}

	host := u.Hostname()
	if u.Scheme == "redis" {
		if cfg.RequireTLS {
			return rueidis.ClientOption{}, errors.New("rueidis: RequireTLS=true but URL uses redis:// (plaintext); use rediss://")
		}
		if cfg.SkipTLSVerify || cfg.AutoDetectAWS {
			slog.Warn("rueidis: redis:// URL disables TLS even though TLS-related options are set",
				slog.String("scheme", u.Scheme),
				slog.String("host", host),
				slog.Bool("skip_tls_verify", cfg.SkipTLSVerify),
				slog.Bool("auto_detect_aws", cfg.AutoDetectAWS),
			)
		}
	}

	if strings.Contains(u.Host, ".cache.amazonaws.com") && cfg.AutoDetectAWS {
		slog.Info("rueidis: detected AWS ElastiCache endpoint",
			slog.String("scheme", u.Scheme),
			slog.String("host", host),
		)
		if u.Scheme == "redis" {
			return rueidis.ClientOption{}, errors.New("rueidis: aws detected but using redis:// (plaintext)")
		}
	}

	if cfg.DisableCache && len(cfg.ClientTrackingPrefixes) > 0 {
		slog.Warn("turning on tracking on the server with no client cache benefit",
			slog.Bool("disable_cache", cfg.DisableCache),
		)
	}

	clientOpt, err := rueidis.ParseURL(cfg.URL)
	if err != nil {
		return rueidis.ClientOption{}, err
	}

	clientOpt.ClientName = cfg.ClientName
	clientOpt.DisableRetry = cfg.DisableRetry
	clientOpt.DisableCache = cfg.DisableCache
	clientOpt.AlwaysPipelining = cfg.AlwaysPipelining

	if cfg.RingScaleEachConn > 0 {
		clientOpt.RingScaleEachConn = cfg.RingScaleEachConn
	}
	if cfg.CacheSizeEachConn > 0 {
		clientOpt.CacheSizeEachConn = cfg.CacheSizeEachConn
	}
	if cfg.ConnWriteTimeout > 0 {
		clientOpt.ConnWriteTimeout = cfg.ConnWriteTimeout
	}

	if cfg.SkipTLSVerify {
		if clientOpt.TLSConfig == nil {
			clientOpt.TLSConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec
		} else {
			tc := clientOpt.TLSConfig.Clone()
			tc.InsecureSkipVerify = true //nolint:gosec
			clientOpt.TLSConfig = tc
		}
	}

	// BCAST + OPTIN so callers opt in per command with DoCache().
	if len(cfg.ClientTrackingPrefixes) > 0 {
		tracking := make([]string, 0, len(cfg.ClientTrackingPrefixes)*2+2)
		for _, p := range cfg.ClientTrackingPrefixes {
			p = strings.TrimSpace(p)
			if p == "" {
				continue
			}
			tracking = append(tracking, "PREFIX", p)
		}
		tracking = append(tracking, "BCAST", "OPTIN")
		clientOpt.ClientTrackingOptions = tracking
	}

	return clientOpt, nil
}

// NewRueidisClient creates a rueidis.Client from RedisConfig, optionally
// wrapped with OpenTelemetry, and PINGs it with a short timeout to fail fast.
func NewRueidisClient(ctx context.Context, cfg RedisConfig) (rueidis.Client, error) {
	clientOpt, err := ClientOption(cfg)
	if err != nil {
		return nil, err
	}

	var cli rueidis.Client
	if cfg.EnableOtel {
		cli, err = rueidisotel.NewClient(clientOpt)
	} else {
		cli, err = rueidis.NewClient(clientOpt)
	}
	if err != nil {
		slog.ErrorContext(ctx, "error during rueidis init", slog.Any("error", err))
		return nil, err
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := cli.Do(pingCtx, cli.B().Ping().Build()).Error(); err != nil {
		cli.Close()
		return nil, err
	}

	slog.Info("rueidis: connected",
		slog.String("mode", string(cli.Mode())),
		slog.String("client_name", cfg.ClientName),
	)

	return cli, nil
}

// NewLocker builds a rueidislock.Locker over its own connections. Locks use
// client-side tracking for release notifications, so they do not share the
// command client.
func NewLocker(cfg RedisConfig, keyPrefix string) (rueidislock.Locker, error) {
	clientOpt, err := ClientOption(cfg)
	if err != nil {
		return nil, err
	}
	// rueidislock relies on tracking invalidations of its own keys.
	clientOpt.DisableCache = false
	clientOpt.ClientTrackingOptions = nil

	locker, err := rueidislock.NewLocker(rueidislock.LockerOption{
		ClientOption:   clientOpt,
		KeyPrefix:      keyPrefix,
		KeyMajority:    cfg.LockKeyMajority,
		NoLoopTracking: cfg.LockNoLoopTracking,
	})
	if err != nil {
		return nil, fmt.Errorf("rueidislock: %w", err)
	}
	return locker, nil
}
