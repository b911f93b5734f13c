/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package config loads the external Configuration record spec.md §6
// fixes: host/port/credentials/heartbeat/TLS/timeout, one instance per
// channel. It layers defaults, an optional YAML file, a .env file, and
// process environment variables, the way the teacher's own services load
// configuration.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Channel is the per-channel Configuration record spec.md §6 names.
type Channel struct {
	Host             string `mapstructure:"host"`
	Port             int    `mapstructure:"port"`
	SenderCompID     string `mapstructure:"sender_comp_id"`
	Username         string `mapstructure:"username"`
	Password         string `mapstructure:"password"`
	HeartbeatS       int    `mapstructure:"heartbeat_s"`
	UseTLS           bool   `mapstructure:"use_tls"`
	RequestTimeoutMS int    `mapstructure:"request_timeout_ms"`
}

// RequestTimeout renders RequestTimeoutMS as a time.Duration.
func (c Channel) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutMS) * time.Millisecond
}

// Config is the top-level record: one Channel each for Market and Trade,
// per spec.md §6's "separate instances for market and trade."
type Config struct {
	Market Channel `mapstructure:"market"`
	Trade  Channel `mapstructure:"trade"`
}

// Load reads configuration from a YAML file at configPath (if non-empty
// and present), overridden by environment variables prefixed CTRADER_.
// An optional .env file is first loaded into the process environment
// (without replacing variables already set), so its entries take the
// same precedence as environment variables. Defaults fill in heartbeat
// and timeout values cTrader's profile expects when the caller supplies
// none.
func Load(configPath string) (*Config, error) {
	_ = godotenv.Load() // best-effort; absence of a .env file is not an error

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("CTRADER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("market.heartbeat_s", 30)
	v.SetDefault("market.request_timeout_ms", 5000)
	v.SetDefault("market.sender_comp_id", "ctrader-fix-market")
	v.SetDefault("trade.heartbeat_s", 30)
	v.SetDefault("trade.request_timeout_ms", 5000)
	v.SetDefault("trade.sender_comp_id", "ctrader-fix-trade")

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
				return nil, fmt.Errorf("config: reading %s: %w", configPath, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	return &cfg, nil
}
