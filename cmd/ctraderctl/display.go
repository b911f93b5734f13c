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
	"fmt"
	"log"

	"github.com/geminik23/ctrader-fix/market"
	"github.com/geminik23/ctrader-fix/protocol"
	"github.com/shopspring/decimal"
)

func displayHelp() {
	fmt.Print(`Commands:
  --- Market Channel ---
  spot sub <symbolId>            - Subscribe to spot quotes
  spot unsub <symbolId>          - Stop spot subscription
  spot quote <symbolId>          - Show last cached spot quote
  depth sub <symbolId>           - Subscribe to order book depth
  depth unsub <symbolId>         - Stop depth subscription

  --- Trade Channel ---
  securities                     - Fetch and list tradeable securities
  positions                      - Fetch and list open positions
  orderstatus                    - Fetch status of every open order
  order <buy|sell> <symbol> <qty> [price] [--stop px]  - Submit new order
  cancel <clOrdId>               - Cancel an order
  replace <clOrdId> --qty Q [--price P]  - Modify an order
  adjust <symbol> <targetQty>    - Adjust net position to targetQty
  close <symbol>                 - Close the open position in a symbol

  --- General ---
  help                           - Show this help message
  exit                           - Disconnect both channels and quit

Order Flags:
  (no price, no --stop)          - Market order
  <price>                        - Limit order at price
  --stop <price>                 - Stop order at price

Examples:
  spot sub 1                     - Subscribe to spot quotes for symbol 1
  depth sub 1                    - Subscribe to order book depth for symbol 1
  order buy 1 100000             - Market buy 100000 units of symbol 1
  order sell 1 100000 1.2345     - Limit sell at 1.2345
  order buy 1 100000 --stop 1.20 - Stop buy triggered at 1.20
  adjust 1 50000                 - Adjust net position in symbol 1 to 50000
  close 1                        - Flatten the position in symbol 1
`)
}

// marketPrinter is the market.Handler the REPL installs: every callback
// just logs what arrived, the way the teacher's display functions print
// market data without owning any state themselves.
type marketPrinter struct{}

func (p *marketPrinter) OnSpot(symbolID string, bid, ask decimal.Decimal) {
	log.Printf("spot %s: bid=%s ask=%s", symbolID, bid, ask)
}

func (p *marketPrinter) OnDepth(symbolID string, book market.BookSnapshot) {
	log.Printf("depth snapshot %s: %d bids, %d asks", symbolID, len(book.Bids), len(book.Asks))
	printBookSide("bid", book.Bids)
	printBookSide("ask", book.Asks)
}

func (p *marketPrinter) OnDepthUpdate(symbolID string, diffs []market.BookEntry) {
	log.Printf("depth update %s: %d entries changed", symbolID, len(diffs))
}

func (p *marketPrinter) OnMarketReject(mdReqID, reason string) {
	log.Printf("market reject for %s: %s", mdReqID, reason)
}

func printBookSide(label string, entries []market.BookEntry) {
	for _, e := range entries {
		fmt.Printf("  %s %-12s %s @ %s\n", label, e.EntryID, e.Size, e.Price)
	}
}

// tradePrinter is the trade.Handler the REPL installs.
type tradePrinter struct{}

func (p *tradePrinter) OnExecution(report protocol.ExecutionReport) {
	log.Printf("execution %s %s: status=%s type=%s cum=%s leaves=%s",
		report.Symbol, report.ClOrdID, getOrdStatusDesc(report.OrdStatus), report.ExecType, report.CumQty, report.LeavesQty)
}

func (p *tradePrinter) OnCancelReject(reject protocol.OrderCancelReject) {
	log.Printf("cancel reject for %s: reason=%s text=%s", reject.ClOrdID, reject.CxlRejReason, reject.Text)
}

func (p *tradePrinter) OnDisconnected(reason error) {
	log.Printf("trade channel disconnected: %v", reason)
}

func displaySecurities(securities []protocol.Security) {
	if len(securities) == 0 {
		fmt.Println("No securities returned")
		return
	}
	fmt.Print(`
Securities:
┌────────────┬──────────────┐
│ SymbolID   │ Symbol       │
├────────────┼──────────────┤
`)
	for _, s := range securities {
		fmt.Printf("│ %-10s │ %-12s │\n", s.SymbolID, s.Symbol)
	}
	fmt.Println("└────────────┴──────────────┘")
}

func displayPositions(positions []protocol.PositionReport) {
	if len(positions) == 0 {
		fmt.Println("No open positions")
		return
	}
	fmt.Print(`
Positions:
┌────────────┬───────────────┬───────────────┬───────────────┐
│ Symbol     │ Long Qty      │ Short Qty     │ Net Qty       │
├────────────┼───────────────┼───────────────┼───────────────┤
`)
	for _, p := range positions {
		fmt.Printf("│ %-10s │ %-13s │ %-13s │ %-13s │\n", p.Symbol, p.LongQty, p.ShortQty, p.NetQty())
	}
	fmt.Println("└────────────┴───────────────┴───────────────┴───────────────┘")
}

func displayOrderStatus(reports []protocol.ExecutionReport) {
	if len(reports) == 0 {
		fmt.Println("No open orders")
		return
	}
	fmt.Print(`
Open Orders:
┌──────────────────────┬─────────────┬──────┬───────────────┬───────────────┐
│ ClOrdID              │ Symbol      │ Side │ Status        │ Leaves        │
├──────────────────────┼─────────────┼──────┼───────────────┼───────────────┤
`)
	for _, r := range reports {
		clOrdID := r.ClOrdID
		if len(clOrdID) > 20 {
			clOrdID = clOrdID[:17] + "..."
		}
		fmt.Printf("│ %-20s │ %-11s │ %-4s │ %-13s │ %-13s │\n",
			clOrdID, r.Symbol, getSideDesc(r.Side), getOrdStatusDesc(r.OrdStatus), r.LeavesQty)
	}
	fmt.Println("└──────────────────────┴─────────────┴──────┴───────────────┴───────────────┘")
}

func getSideDesc(side string) string {
	switch side {
	case protocol.SideBuy:
		return "BUY"
	case protocol.SideSell:
		return "SELL"
	default:
		return side
	}
}

func getOrdStatusDesc(status string) string {
	switch status {
	case protocol.OrdStatusNew:
		return "New"
	case protocol.OrdStatusPartiallyFilled:
		return "PartiallyFilled"
	case protocol.OrdStatusFilled:
		return "Filled"
	case protocol.OrdStatusCanceled:
		return "Canceled"
	case protocol.OrdStatusReplaced:
		return "Replaced"
	case protocol.OrdStatusPendingCancel:
		return "PendingCancel"
	case protocol.OrdStatusRejected:
		return "Rejected"
	case protocol.OrdStatusPendingNew:
		return "PendingNew"
	case protocol.OrdStatusExpired:
		return "Expired"
	case protocol.OrdStatusPendingReplace:
		return "PendingReplace"
	default:
		return status
	}
}
