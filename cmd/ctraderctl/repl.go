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

package main

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/chzyer/readline"
	"github.com/geminik23/ctrader-fix/protocol"
	"github.com/shopspring/decimal"
)

func repl(a *app) {
	completer := readline.NewPrefixCompleter(
		readline.PcItem("spot", readline.PcItem("sub"), readline.PcItem("unsub"), readline.PcItem("quote")),
		readline.PcItem("depth", readline.PcItem("sub"), readline.PcItem("unsub")),
		readline.PcItem("securities"),
		readline.PcItem("positions"),
		readline.PcItem("orderstatus"),
		readline.PcItem("order", readline.PcItem("buy"), readline.PcItem("sell")),
		readline.PcItem("cancel"),
		readline.PcItem("replace"),
		readline.PcItem("adjust"),
		readline.PcItem("close"),
		readline.PcItem("help"),
		readline.PcItem("exit"),
	)

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "ctrader-fix> ",
		HistoryFile:     "/tmp/ctraderctl_history",
		AutoComplete:    completer,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		log.Printf("failed to create readline: %v", err)
		return
	}
	defer rl.Close()

	for {
		if a.exiting {
			return
		}
		line, err := rl.Readline()
		if err != nil {
			return
		}
		parts := strings.Fields(strings.TrimSpace(line))
		if len(parts) == 0 {
			continue
		}
		switch strings.ToLower(parts[0]) {
		case "spot":
			a.handleSpotCommand(parts)
		case "depth":
			a.handleDepthCommand(parts)
		case "securities":
			a.handleSecuritiesCommand()
		case "positions":
			a.handlePositionsCommand()
		case "orderstatus":
			a.handleOrderStatusCommand()
		case "order":
			a.handleOrderCommand(parts)
		case "cancel":
			a.handleCancelCommand(parts)
		case "replace":
			a.handleReplaceCommand(parts)
		case "adjust":
			a.handleAdjustCommand(parts)
		case "close":
			a.handleCloseCommand(parts)
		case "help":
			displayHelp()
		case "exit":
			a.exiting = true
			return
		default:
			fmt.Println("Unknown command. Type 'help' for available commands.")
		}
	}
}

func (a *app) handleSpotCommand(parts []string) {
	if len(parts) < 3 {
		fmt.Println("Usage: spot <sub|unsub|quote> <symbolId>")
		return
	}
	symbolID := parts[2]
	ctx := context.Background()
	switch strings.ToLower(parts[1]) {
	case "sub":
		if err := a.market.SubscribeSpot(ctx, symbolID); err != nil {
			log.Printf("spot subscribe failed: %v", err)
			return
		}
		log.Printf("subscribed to spot quotes for %s", symbolID)
	case "unsub":
		if err := a.market.UnsubscribeSpot(ctx, symbolID); err != nil {
			log.Printf("spot unsubscribe failed: %v", err)
			return
		}
		log.Printf("unsubscribed from spot quotes for %s", symbolID)
	case "quote":
		q, err := a.market.QuoteSpot(symbolID)
		if err != nil {
			log.Printf("no cached quote for %s: %v", symbolID, err)
			return
		}
		fmt.Printf("%s: bid=%s ask=%s\n", symbolID, q.Bid, q.Ask)
	default:
		fmt.Println("Usage: spot <sub|unsub|quote> <symbolId>")
	}
}

func (a *app) handleDepthCommand(parts []string) {
	if len(parts) < 3 {
		fmt.Println("Usage: depth <sub|unsub> <symbolId>")
		return
	}
	symbolID := parts[2]
	ctx := context.Background()
	switch strings.ToLower(parts[1]) {
	case "sub":
		if err := a.market.SubscribeDepth(ctx, symbolID); err != nil {
			log.Printf("depth subscribe failed: %v", err)
			return
		}
		log.Printf("subscribed to depth for %s", symbolID)
	case "unsub":
		if err := a.market.UnsubscribeDepth(ctx, symbolID); err != nil {
			log.Printf("depth unsubscribe failed: %v", err)
			return
		}
		log.Printf("unsubscribed from depth for %s", symbolID)
	default:
		fmt.Println("Usage: depth <sub|unsub> <symbolId>")
	}
}

func (a *app) handleSecuritiesCommand() {
	securities, err := a.trade.FetchSecurityList(context.Background())
	if err != nil {
		log.Printf("fetch security list failed: %v", err)
		return
	}
	displaySecurities(securities)
}

func (a *app) handlePositionsCommand() {
	positions, err := a.trade.FetchPositions(context.Background())
	if err != nil {
		log.Printf("fetch positions failed: %v", err)
		return
	}
	displayPositions(positions)
}

func (a *app) handleOrderStatusCommand() {
	reports, err := a.trade.FetchAllOrderStatus(context.Background())
	if err != nil {
		log.Printf("fetch order status failed: %v", err)
		return
	}
	displayOrderStatus(reports)
}

// handleOrderCommand processes new order requests.
// Usage: order <buy|sell> <symbol> <qty> [price] [--stop <price>]
func (a *app) handleOrderCommand(parts []string) {
	if len(parts) < 4 {
		fmt.Println(`Usage: order <buy|sell> <symbol> <qty> [price] [--stop <price>]

Examples:
  order buy 1 100000             - Market buy 100000 units of symbol 1
  order sell 1 100000 1.2345     - Limit sell at 1.2345
  order buy 1 100000 --stop 1.20 - Stop buy triggered at 1.20`)
		return
	}

	var side string
	switch strings.ToLower(parts[1]) {
	case "buy":
		side = protocol.SideBuy
	case "sell":
		side = protocol.SideSell
	default:
		fmt.Println("Error: side must be 'buy' or 'sell'")
		return
	}

	symbol := parts[2]
	qty, err := decimal.NewFromString(parts[3])
	if err != nil {
		fmt.Printf("Error: invalid quantity %q: %v\n", parts[3], err)
		return
	}

	var price, stopPx decimal.Decimal
	var hasStop bool
	for i := 4; i < len(parts); i++ {
		if parts[i] == "--stop" && i+1 < len(parts) {
			i++
			stopPx, err = decimal.NewFromString(parts[i])
			if err != nil {
				fmt.Printf("Error: invalid stop price %q: %v\n", parts[i], err)
				return
			}
			hasStop = true
			continue
		}
		price, err = decimal.NewFromString(parts[i])
		if err != nil {
			fmt.Printf("Error: invalid price %q: %v\n", parts[i], err)
			return
		}
	}

	ctx := context.Background()
	var report protocol.ExecutionReport
	switch {
	case hasStop:
		report, err = a.trade.NewStopOrder(ctx, symbol, side, qty, stopPx)
	case !price.IsZero():
		report, err = a.trade.NewLimitOrder(ctx, symbol, side, qty, price)
	default:
		report, err = a.trade.NewMarketOrder(ctx, symbol, side, qty)
	}
	if err != nil {
		log.Printf("order failed: %v", err)
		return
	}
	log.Printf("order %s: status=%s ClOrdID=%s", symbol, getOrdStatusDesc(report.OrdStatus), report.ClOrdID)
}

// handleCancelCommand processes order cancel requests.
// Usage: cancel <clOrdId>
func (a *app) handleCancelCommand(parts []string) {
	if len(parts) < 2 {
		fmt.Println("Usage: cancel <clOrdId>")
		return
	}
	report, err := a.trade.CancelOrder(context.Background(), parts[1])
	if err != nil {
		log.Printf("cancel failed: %v", err)
		return
	}
	log.Printf("cancel %s: status=%s", parts[1], getOrdStatusDesc(report.OrdStatus))
}

// handleReplaceCommand processes order cancel/replace requests.
// Usage: replace <clOrdId> --qty <qty> [--price <price>]
func (a *app) handleReplaceCommand(parts []string) {
	if len(parts) < 2 {
		fmt.Println("Usage: replace <clOrdId> --qty <qty> [--price <price>]")
		return
	}
	origClOrdID := parts[1]
	var qty, price decimal.Decimal
	var hasQty, hasPrice bool
	var err error
	for i := 2; i < len(parts); i++ {
		switch parts[i] {
		case "--qty":
			if i+1 < len(parts) {
				i++
				qty, err = decimal.NewFromString(parts[i])
				if err != nil {
					fmt.Printf("Error: invalid quantity %q: %v\n", parts[i], err)
					return
				}
				hasQty = true
			}
		case "--price":
			if i+1 < len(parts) {
				i++
				price, err = decimal.NewFromString(parts[i])
				if err != nil {
					fmt.Printf("Error: invalid price %q: %v\n", parts[i], err)
					return
				}
				hasPrice = true
			}
		}
	}
	if !hasQty {
		fmt.Println("Error: --qty is required")
		return
	}
	report, err := a.trade.ReplaceOrder(context.Background(), origClOrdID, qty, price, hasPrice)
	if err != nil {
		log.Printf("replace failed: %v", err)
		return
	}
	log.Printf("replace %s -> %s: status=%s", origClOrdID, report.ClOrdID, getOrdStatusDesc(report.OrdStatus))
}

// handleAdjustCommand processes adjust_position_size requests.
// Usage: adjust <symbol> <targetQty>
func (a *app) handleAdjustCommand(parts []string) {
	if len(parts) < 3 {
		fmt.Println("Usage: adjust <symbol> <targetQty>")
		return
	}
	targetQty, err := decimal.NewFromString(parts[2])
	if err != nil {
		fmt.Printf("Error: invalid target quantity %q: %v\n", parts[2], err)
		return
	}
	report, err := a.trade.AdjustPositionSize(context.Background(), parts[1], targetQty)
	if err != nil {
		log.Printf("adjust failed: %v", err)
		return
	}
	log.Printf("adjust %s: status=%s", parts[1], getOrdStatusDesc(report.OrdStatus))
}

// handleCloseCommand processes close_position requests.
// Usage: close <symbol>
func (a *app) handleCloseCommand(parts []string) {
	if len(parts) < 2 {
		fmt.Println("Usage: close <symbol>")
		return
	}
	report, err := a.trade.ClosePosition(context.Background(), parts[1])
	if err != nil {
		log.Printf("close failed: %v", err)
		return
	}
	log.Printf("close %s: status=%s", parts[1], getOrdStatusDesc(report.OrdStatus))
}
