// Command oictl is a terminal client for the gateway's REST API. It covers
// the desk checks that do not warrant opening the UI: upstream health, the
// current positions book, journal performance and lessons, and minting bearer
// tokens for the execution routes.
//
// Usage:
//
//	oictl [flags] <command>
//
// Commands are status, positions, performance, lessons and token. Flags must
// come before the command, e.g. `oictl -days 7 performance`.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/vasanthk84/oi-analyzer/auth"
	"github.com/vasanthk84/oi-analyzer/models"
)

const defaultGateway = "http://localhost:8080"

func main() {
	gateway := flag.String("gateway", envOr("OICTL_GATEWAY", defaultGateway), "gateway base URL")
	days := flag.Int("days", 30, "lookback window in days (performance)")
	limit := flag.Int("limit", 10, "number of rows to fetch (lessons)")
	secret := flag.String("secret", os.Getenv("OICTL_AUTH_SECRET"), "signing secret, must match the gateway's AUTH_JWT_SECRET (token)")
	issuer := flag.String("issuer", "oi-analyzer", "issuer claim (token)")
	subject := flag.String("subject", "desk-operator", "subject claim (token)")
	ttl := flag.Duration("ttl", 8*time.Hour, "token lifetime (token)")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() == 0 {
		usage()
		os.Exit(2)
	}

	gw := &gatewayClient{
		base: strings.TrimRight(*gateway, "/"),
		http: &http.Client{Timeout: 10 * time.Second},
	}

	var err error
	switch cmd := flag.Arg(0); cmd {
	case "status":
		err = runStatus(os.Stdout, gw)
	case "positions":
		err = runPositions(os.Stdout, gw)
	case "performance":
		err = runPerformance(os.Stdout, gw, *days)
	case "lessons":
		err = runLessons(os.Stdout, gw, *limit)
	case "token":
		err = runToken(os.Stdout, *secret, *issuer, *subject, *ttl)
	default:
		fmt.Fprintf(os.Stderr, "oictl: unknown command %q\n", cmd)
		usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "oictl:", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: oictl [flags] <command>

Commands:
  status       upstream availability, breaker states and feature flags
  positions    current positions snapshot with source and reliability
  performance  journal performance over the lookback window (-days)
  lessons      most recent journal lessons (-limit)
  token        mint a bearer token for the execution endpoints (-secret)

Flags:
`)
	flag.PrintDefaults()
}

// gatewayClient wraps the gateway's REST surface. Every endpoint speaks the
// same envelope; get decodes it and unwraps the data payload.
type gatewayClient struct {
	base string
	http *http.Client
}

type envelope struct {
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
	Error   string          `json:"error"`
}

func (c *gatewayClient) get(path string, out interface{}) (string, error) {
	resp, err := c.http.Get(c.base + path)
	if err != nil {
		return "", fmt.Errorf("gateway unreachable: %w", err)
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return "", fmt.Errorf("unexpected response (%s): %w", resp.Status, err)
	}

	// A degraded positions snapshot rides a 503 with a full payload, so the
	// status code alone does not decide the outcome: no data means failure.
	if len(env.Data) == 0 || string(env.Data) == "null" {
		if env.Error != "" {
			return "", fmt.Errorf("%s: %s", env.Error, env.Message)
		}
		return "", fmt.Errorf("gateway returned %s", resp.Status)
	}

	if err := json.Unmarshal(env.Data, out); err != nil {
		return "", fmt.Errorf("malformed payload: %w", err)
	}
	return env.Message, nil
}

func runStatus(w io.Writer, gw *gatewayClient) error {
	var status models.SystemStatus
	if _, err := gw.get("/api/status", &status); err != nil {
		return err
	}

	table := tablewriter.NewWriter(w)
	table.Header("Upstream", "Available", "Breaker", "Latency", "Error")
	for _, u := range status.Upstreams {
		table.Append(
			u.Name,
			yesNo(u.Available),
			u.BreakerState,
			fmt.Sprintf("%dms", u.LatencyMs),
			u.Error,
		)
	}
	table.Render()

	fmt.Fprintf(w, "\n  Routing:  %s\n", status.ActiveRouting)
	fmt.Fprintf(w, "  Features: analytics=%s execution=%s positions=%s risk=%s auto=%s\n",
		onOff(status.Features.Analytics),
		onOff(status.Features.Execution),
		onOff(status.Features.PositionManagement),
		onOff(status.Features.RiskManagement),
		onOff(status.Features.AutoTrading))
	return nil
}

func runPositions(w io.Writer, gw *gatewayClient) error {
	var snapshot models.PositionsSnapshot
	msg, err := gw.get("/api/positions", &snapshot)
	if err != nil {
		return err
	}

	if len(snapshot.Positions) == 0 {
		fmt.Fprintf(w, "no open positions (source: %s)\n", snapshot.Source)
		if msg != "" {
			fmt.Fprintf(w, "  %s\n", msg)
		}
		return nil
	}

	table := tablewriter.NewWriter(w)
	table.Header("Symbol", "Qty", "Avg", "LTP", "MTM")
	for _, p := range snapshot.Positions {
		table.Append(
			p.Symbol,
			fmt.Sprintf("%.0f", p.Quantity),
			fmt.Sprintf("%.2f", p.AveragePrice),
			fmt.Sprintf("%.2f", p.LastPrice),
			fmt.Sprintf("%+.2f", p.MTM),
		)
	}
	table.Render()

	fmt.Fprintf(w, "\n  Total MTM: %+.2f  (source: %s, reliability: %s",
		snapshot.TotalMTM, snapshot.Source, snapshot.Reliability)
	if snapshot.Reliability == models.ReliabilityDegraded {
		fmt.Fprintf(w, ", age: %s", snapshot.Age().Round(time.Second))
	}
	fmt.Fprintln(w, ")")
	return nil
}

func runPerformance(w io.Writer, gw *gatewayClient, days int) error {
	var summary models.PerformanceSummary
	if _, err := gw.get(fmt.Sprintf("/api/journal/performance?days=%d", days), &summary); err != nil {
		return err
	}

	o := summary.Overall
	fmt.Fprintf(w, "Performance over %d days — %d trades\n", summary.Days, o.TotalTrades)
	if o.TotalTrades == 0 {
		fmt.Fprintln(w, "  no closed trades in the window")
		return nil
	}

	fmt.Fprintf(w, "  Win rate:   %.1f%% (%d W / %d L)\n", summary.WinRate, o.WinningTrades, o.LosingTrades)
	fmt.Fprintf(w, "  Total P&L:  %+.2f\n", o.TotalPnL)
	fmt.Fprintf(w, "  Avg P&L:    %+.2f (%+.2f%%)\n", o.AvgPnL, o.AvgPnLPct)
	fmt.Fprintf(w, "  Best/Worst: %+.2f / %+.2f\n", o.LargestWin, o.LargestLoss)
	fmt.Fprintf(w, "  Avg hold:   %.0f min\n", o.AvgHoldMinutes)

	printBreakdown(w, "By day of week", summary.ByDayOfWeek)
	printBreakdown(w, "Expiry vs non-expiry", summary.ExpiryDayAnalysis)
	printBreakdown(w, "By emotional state", summary.EmotionalAnalysis)
	printBreakdown(w, "By VIX band", summary.VIXCorrelation)
	return nil
}

func printBreakdown(w io.Writer, title string, rows []models.BreakdownRow) {
	if len(rows) == 0 {
		return
	}
	fmt.Fprintf(w, "\n%s:\n", title)
	table := tablewriter.NewWriter(w)
	table.Header("Bucket", "Trades", "Avg P&L", "Win rate")
	for _, r := range rows {
		table.Append(
			r.Label,
			fmt.Sprintf("%d", r.Trades),
			fmt.Sprintf("%+.2f", r.AvgPnL),
			fmt.Sprintf("%.1f%%", r.WinRate),
		)
	}
	table.Render()
}

func runLessons(w io.Writer, gw *gatewayClient, limit int) error {
	var lessons []models.Lesson
	if _, err := gw.get(fmt.Sprintf("/api/journal/lessons?limit=%d", limit), &lessons); err != nil {
		return err
	}

	if len(lessons) == 0 {
		fmt.Fprintln(w, "no lessons recorded yet")
		return nil
	}

	table := tablewriter.NewWriter(w)
	table.Header("Date", "Category", "Severity", "Lesson")
	for _, l := range lessons {
		table.Append(
			l.Date.Format("2006-01-02"),
			string(l.Category),
			string(l.Severity),
			truncate(l.Lesson, 60),
		)
	}
	table.Render()
	return nil
}

// runToken mints a token locally; it never talks to the gateway. The secret
// has to match the gateway's AUTH_JWT_SECRET or the token is rejected.
func runToken(w io.Writer, secret, issuer, subject string, ttl time.Duration) error {
	if secret == "" {
		return fmt.Errorf("token requires -secret or OICTL_AUTH_SECRET")
	}
	token, err := auth.IssueToken(secret, issuer, subject, ttl)
	if err != nil {
		return err
	}
	fmt.Fprintln(w, token)
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
