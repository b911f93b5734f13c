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

// Command ctraderctl is an interactive REPL example wiring the Market
// and Trade channels together: connect, logon, subscribe, trade, and
// inspect cached state from one terminal, the way the teacher's own
// fixclient REPL drives Coinbase Prime.
package main

import (
	"context"
	"flag"
	"log"
	"net/http"

	"github.com/geminik23/ctrader-fix/config"
	"github.com/geminik23/ctrader-fix/market"
	"github.com/geminik23/ctrader-fix/observability"
	"github.com/geminik23/ctrader-fix/store"
	"github.com/geminik23/ctrader-fix/trade"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type app struct {
	market  *market.Channel
	trade   *trade.Channel
	store   *store.Store
	exiting bool
}

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	dbPath := flag.String("db", "ctraderctl.db", "path to the SQLite persistence file")
	dev := flag.Bool("dev", true, "use development (console) logging instead of production JSON")
	metricsAddr := flag.String("metrics-addr", "", "if set, serve Prometheus metrics on this address (e.g. :9090)")
	flag.Parse()

	logger, err := observability.NewLogger(*dev)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	st, err := store.Open(*dbPath)
	if err != nil {
		log.Fatalf("failed to open store at %s: %v", *dbPath, err)
	}
	defer func() { _ = st.Close() }()

	a := &app{
		market: market.NewChannel(cfg.Market, observability.Named(logger, "market")),
		trade:  trade.NewChannel(cfg.Trade, observability.Named(logger, "trade")),
		store:  st,
	}
	a.market.SetStore(st)
	a.trade.SetStore(st)
	a.market.SetHandler(&marketPrinter{})
	a.trade.SetHandler(&tradePrinter{})
	defer a.market.Close()
	defer a.trade.Close()

	if *metricsAddr != "" {
		metrics := observability.New()
		reg := prometheus.NewRegistry()
		metrics.MustRegister(reg)
		a.market.SetMetrics(metrics)
		a.trade.SetMetrics(metrics)
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
			if err := http.ListenAndServe(*metricsAddr, mux); err != nil {
				log.Printf("metrics server stopped: %v", err)
			}
		}()
	}

	ctx := context.Background()
	if err := a.market.Connect(ctx); err != nil {
		log.Printf("market: connect failed: %v", err)
	} else if err := a.market.Logon(ctx); err != nil {
		log.Printf("market: logon failed: %v", err)
	} else {
		log.Printf("market: logged on")
	}

	if err := a.trade.Connect(ctx); err != nil {
		log.Printf("trade: connect failed: %v", err)
	} else if err := a.trade.Logon(ctx); err != nil {
		log.Printf("trade: logon failed: %v", err)
	} else {
		log.Printf("trade: logged on")
	}

	repl(a)
}
