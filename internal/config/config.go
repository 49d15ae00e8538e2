// Package config loads process configuration via spf13/viper directly --
// the teacher's wrapper/viper struct-around-a-client wrapper had no other
// caller and config.Config's field set doesn't match its Viperized struct
// tags, so this drives viper.Viper itself instead of wrapping it again.
/*
 * Copyright 2020 Aldelo, LP
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds every knob the protocol engine and its transport front door
// need before the first request can be processed. The temp directory must
// be set and created before the first request (see design note in §9).
type Config struct {
	// ListenAddr is host:port for the HTTP front door.
	ListenAddr string `mapstructure:"listen_addr"`

	// TlsCertPemFile / TlsCertKeyFile, when both set, run the front door in TLS mode.
	TlsCertPemFile string `mapstructure:"tls_cert_pem_file"`
	TlsCertKeyFile string `mapstructure:"tls_cert_key_file"`

	// BaseStaticPath is prefixed to the URL path for the unbound-GET static fallback (S1).
	BaseStaticPath string `mapstructure:"base_static_path"`

	// SessionCookieName is the cookie key carrying the opaque session token.
	SessionCookieName string `mapstructure:"session_cookie_name"`

	// TempDir is where multipart spillover files are written.
	TempDir string `mapstructure:"temp_dir"`

	// MultipartMinSize is the in-memory/disk spillover threshold, in bytes.
	MultipartMinSize int64 `mapstructure:"multipart_min_size"`

	// SessionSecretKey signs/encrypts the cookie-store session (gin-contrib/sessions).
	SessionSecretKey string `mapstructure:"session_secret_key"`

	// RedisHostAndPort, if set, switches the session store backend to redis.
	RedisHostAndPort string `mapstructure:"redis_host_and_port"`

	// CsrfSecret configures the CSRF middleware guarding page-engine mutations.
	CsrfSecret string `mapstructure:"csrf_secret"`

	// JwtSigningSecretKey signs REST bearer tokens.
	JwtSigningSecretKey string `mapstructure:"jwt_signing_secret_key"`
	JwtRealm            string `mapstructure:"jwt_realm"`
	JwtTimeout          time.Duration `mapstructure:"jwt_timeout"`

	// RateLimitQps / RateLimitBurst / RateLimitTTL configure the per-client-IP admission limiter.
	RateLimitQps   int           `mapstructure:"rate_limit_qps"`
	RateLimitBurst int           `mapstructure:"rate_limit_burst"`
	RateLimitTTL   time.Duration `mapstructure:"rate_limit_ttl"`

	// CircuitBreakerTimeoutMs / CircuitBreakerMaxConcurrent configure the hystrix
	// command wrapping every DataModelHandler persistence call.
	CircuitBreakerTimeoutMs     int `mapstructure:"circuit_breaker_timeout_ms"`
	CircuitBreakerMaxConcurrent int `mapstructure:"circuit_breaker_max_concurrent"`

	// SqlitePath is the reference persistence store's backing file ("" = in-memory).
	SqlitePath string `mapstructure:"sqlite_path"`

	v *viper.Viper
}

// Default returns a Config populated with the same defaults the teacher's
// wrapper structs fall back to when a field is left zero.
func Default() *Config {
	return &Config{
		ListenAddr:                  ":8080",
		BaseStaticPath:              "./static",
		SessionCookieName:           "cookieSession",
		TempDir:                     "./tmp",
		MultipartMinSize:            16 * 1024,
		JwtRealm:                    "gatewaykernel",
		JwtTimeout:                  time.Hour,
		RateLimitQps:                20,
		RateLimitBurst:              40,
		RateLimitTTL:                5 * time.Minute,
		CircuitBreakerTimeoutMs:     1000,
		CircuitBreakerMaxConcurrent: 10,
		SqlitePath:                  ":memory:",
	}
}

// Load reads configName (without extension) from the given search paths,
// merges it over the defaults, and returns the populated Config. A missing
// config file is not an error -- defaults are used as-is, matching the
// teacher's ViperConf.Init tolerance for "config file not found".
func Load(configName string, searchPaths ...string) (*Config, error) {
	cfg := Default()

	v := viper.New()
	v.SetConfigName(configName)
	v.SetConfigType("yaml")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	for _, p := range searchPaths {
		v.AddConfigPath(p)
	}
	v.AddConfigPath(".")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, errors.New("load config failed: " + err.Error())
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.New("load config failed: unmarshal: " + err.Error())
	}

	cfg.v = v
	return cfg, nil
}
