package bot

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"equity-screener/internal/domain"

	tele "gopkg.in/telebot.v3"
)

const (
	defaultTopLimit  = 5
	maxTopLimit      = 10
	maxMessageLength = 4000
	commandTimeout   = 15 * time.Second
)

type AnalysisQuerier interface {
	GetAnalysis(ctx context.Context, ticker string) (*domain.AnalysisRecord, error)
	LatestReport(ctx context.Context) (*domain.BatchReport, error)
	Chart(ctx context.Context, ticker string) ([]byte, error)
}

// StartTelegramBot registers the command handlers and starts long polling
// in the background. It returns nil when token is empty. store may be nil.
func StartTelegramBot(token string, analyses AnalysisQuerier, store SubscriberStore) *AlertDispatcher {
	if strings.TrimSpace(token) == "" {
		log.Println("TELEGRAM_BOT_TOKEN not set, skipping Telegram bot startup")
		return nil
	}
	pref := tele.Settings{
		Token:  token,
		Poller: &tele.LongPoller{Timeout: 10 * time.Second},
	}
	b, err := tele.NewBot(pref)
	if err != nil {
		log.Fatalf("failed to create Telegram bot: %v", err)
	}
	alerts := NewAlertDispatcher(b, store)
	restoreCtx, cancelRestore := context.WithTimeout(context.Background(), commandTimeout)
	if err := alerts.Restore(restoreCtx); err != nil {
		log.Printf("restore alert subscriptions: %v", err)
	}
	cancelRestore()

	b.Handle("/ping", func(c tele.Context) error {
		return c.Send("pong")
	})

	b.Handle("/signal", func(c tele.Context) error {
		if analyses == nil {
			return c.Send("Analysis service unavailable")
		}
		ticker, err := parseTickerArg(c.Args())
		if err != nil {
			return c.Send("Usage: /signal AAPL")
		}

		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()
		rec, err := analyses.GetAnalysis(ctx, ticker)
		if err != nil {
			return c.Send(fmt.Sprintf("No analysis for %s: %v", ticker, err))
		}
		return sendRecordWithOptionalChart(ctx, c, analyses, *rec)
	})

	b.Handle("/top", func(c tele.Context) error {
		if analyses == nil {
			return c.Send("Analysis service unavailable")
		}
		limit, err := parseTopArgs(c.Args())
		if err != nil {
			return c.Send(fmt.Sprintf("Usage: /top | /top N (1-%d)", maxTopLimit))
		}

		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()
		report, err := analyses.LatestReport(ctx)
		if err != nil {
			return c.Send(fmt.Sprintf("Error fetching report: %v", err))
		}
		return c.Send(formatTopBuys(report.Summary.TopBuys, limit))
	})

	b.Handle("/summary", func(c tele.Context) error {
		if analyses == nil {
			return c.Send("Analysis service unavailable")
		}
		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()
		report, err := analyses.LatestReport(ctx)
		if err != nil {
			return c.Send(fmt.Sprintf("Error fetching report: %v", err))
		}
		return c.Send(truncate(formatSummary(*report)))
	})

	b.Handle("/subscribe", func(c tele.Context) error {
		side := SideAll
		if args := c.Args(); len(args) > 0 {
			var ok bool
			if side, ok = parseSide(args[0]); !ok || len(args) > 1 {
				return c.Send("Usage: /subscribe [all|buy|sell]")
			}
		}
		return handleAlertMode(c, alerts, "on", side)
	})

	b.Handle("/unsubscribe", func(c tele.Context) error {
		return handleAlertMode(c, alerts, "off", "")
	})

	b.Handle("/alerts", func(c tele.Context) error {
		mode, side, err := parseAlertMode(c.Args())
		if err != nil {
			return c.Send("Usage: /alerts on [all|buy|sell] | /alerts off | /alerts status")
		}
		return handleAlertMode(c, alerts, mode, side)
	})

	log.Println("Telegram bot started")
	go b.Start()
	return alerts
}

func handleAlertMode(c tele.Context, alerts *AlertDispatcher, mode string, side AlertSide) error {
	chat := c.Chat()
	if chat == nil {
		return c.Send("Unable to detect chat")
	}
	return c.Send(alertModeReply(alerts, chat.ID, mode, side))
}

func alertModeReply(alerts *AlertDispatcher, chatID int64, mode string, side AlertSide) string {
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	switch mode {
	case "on":
		if alerts.Subscribe(ctx, chatID, side) {
			return fmt.Sprintf("Strong signal alerts enabled for this chat (%s).", side)
		}
		return fmt.Sprintf("Strong signal alerts are already enabled for this chat (%s).", side)
	case "off":
		if alerts.Unsubscribe(ctx, chatID) {
			return "Strong signal alerts disabled for this chat."
		}
		return "Strong signal alerts are already disabled for this chat."
	default:
		if current, ok := alerts.Subscription(chatID); ok {
			return fmt.Sprintf("Alerts status: ON (%s)", current)
		}
		return "Alerts status: OFF"
	}
}

func parseTickerArg(args []string) (string, error) {
	if len(args) != 1 {
		return "", errors.New("expected exactly one ticker")
	}
	ticker := domain.NormalizeTicker(args[0])
	if ticker == "" {
		return "", errors.New("empty ticker")
	}
	return ticker, nil
}

func parseTopArgs(args []string) (int, error) {
	if len(args) == 0 {
		return defaultTopLimit, nil
	}
	if len(args) > 1 {
		return 0, errors.New("too many arguments")
	}
	n, err := strconv.Atoi(strings.TrimSpace(args[0]))
	if err != nil {
		return 0, err
	}
	if n < 1 || n > maxTopLimit {
		return 0, errors.New("limit out of range")
	}
	return n, nil
}

func formatRecord(rec domain.AnalysisRecord) string {
	v := rec.Valuation
	lines := []string{
		fmt.Sprintf("%s  %s  (conviction %d/5)", rec.Ticker, rec.Signal.Recommendation, rec.Signal.Conviction),
		fmt.Sprintf("Price: %s  IV: %s  Buy: %s", money(rec.CurrentPrice), money(v.IntrinsicValue), money(v.BuyPrice)),
		fmt.Sprintf("Upside: %s  %s (%s confidence)", pct(v.UpsidePct), v.Status, v.Confidence),
		fmt.Sprintf("Peers: %s  Band: %s  RSI: %.1f", rec.Relative.Status, rec.Technical.BandPosition, rec.Technical.RSI),
	}
	if rec.Signal.Rationale != "" {
		lines = append(lines, rec.Signal.Rationale)
	}
	if v.Warning != "" {
		lines = append(lines, "Warning: "+v.Warning)
	}
	return strings.Join(lines, "\n")
}

func formatTopBuys(picks []domain.TopPick, limit int) string {
	if len(picks) == 0 {
		return "No buy signals in the latest run."
	}
	if limit > 0 && len(picks) > limit {
		picks = picks[:limit]
	}
	lines := make([]string, 0, len(picks)+1)
	lines = append(lines, "Top buys:")
	for i, p := range picks {
		lines = append(lines, fmt.Sprintf("%d. %s %s conv %d upside %s at %s",
			i+1, p.Ticker, p.Recommendation, p.Conviction, pct(p.UpsidePct), money(p.CurrentPrice)))
	}
	return strings.Join(lines, "\n")
}

func formatSummary(report domain.BatchReport) string {
	s := report.Summary
	lines := []string{fmt.Sprintf("Analyzed %d, failed %d", s.Analyzed, s.Failed)}
	if !report.FinishedAt.IsZero() {
		lines = append(lines, "Run finished "+report.FinishedAt.UTC().Format(time.RFC822))
	}
	lines = append(lines, "", "Signals:")
	for _, action := range domain.AllActions {
		lines = append(lines, fmt.Sprintf("  %-12s %d", action, s.Distribution[action]))
	}
	lines = append(lines, "", "Valuation confidence:")
	for _, c := range []domain.Confidence{domain.ConfidenceHigh, domain.ConfidenceMedium, domain.ConfidenceLow} {
		lines = append(lines, fmt.Sprintf("  %-7s %d", c, s.Confidence[c]))
	}
	if len(report.Failures) > 0 {
		lines = append(lines, "", "Failures:")
		for i, f := range report.Failures {
			if i == 10 {
				lines = append(lines, fmt.Sprintf("  ... and %d more", len(report.Failures)-10))
				break
			}
			lines = append(lines, fmt.Sprintf("  %s: %s", f.Ticker, f.Error))
		}
	}
	return strings.Join(lines, "\n")
}

func sendRecordWithOptionalChart(ctx context.Context, c tele.Context, analyses AnalysisQuerier, rec domain.AnalysisRecord) error {
	caption := formatRecord(rec)
	png, err := analyses.Chart(ctx, rec.Ticker)
	if err != nil || len(png) == 0 {
		return c.Send(caption)
	}

	photo := &tele.Photo{
		File:    tele.FromReader(bytes.NewReader(png)),
		Caption: caption,
	}
	return c.Send(photo)
}

func money(v *float64) string {
	if v == nil {
		return "N/A"
	}
	return fmt.Sprintf("$%.2f", *v)
}

// pct renders a fraction such as 0.25 as "+25.0%".
func pct(v *float64) string {
	if v == nil {
		return "N/A"
	}
	return fmt.Sprintf("%+.1f%%", *v*100)
}

func truncate(msg string) string {
	if len(msg) > maxMessageLength {
		return msg[:maxMessageLength] + "\n\n[truncated]"
	}
	return msg
}
