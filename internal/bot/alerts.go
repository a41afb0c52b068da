package bot

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log"
	"slices"
	"strings"
	"sync"

	"equity-screener/internal/domain"

	tele "gopkg.in/telebot.v3"
)

// AlertSide selects which strong signals a chat receives.
type AlertSide string

const (
	SideAll  AlertSide = "all"
	SideBuy  AlertSide = "buy"
	SideSell AlertSide = "sell"
)

func (s AlertSide) matches(action domain.SignalAction) bool {
	switch s {
	case SideBuy:
		return action.IsBuy()
	case SideSell:
		return action.IsSell()
	default:
		return true
	}
}

func parseSide(raw string) (AlertSide, bool) {
	switch side := AlertSide(strings.ToLower(strings.TrimSpace(raw))); side {
	case SideAll, SideBuy, SideSell:
		return side, true
	}
	return "", false
}

type messageSender interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
}

// SubscriberStore persists subscriptions across restarts.
type SubscriberStore interface {
	LoadSubscribers(ctx context.Context) (map[int64]string, error)
	SaveSubscriber(ctx context.Context, chatID int64, side string) error
	DeleteSubscriber(ctx context.Context, chatID int64) error
}

// AlertDispatcher broadcasts strong signals to subscribed chats, each
// filtered to the side the chat asked for.
type AlertDispatcher struct {
	sender messageSender
	store  SubscriberStore

	mu          sync.RWMutex
	subscribers map[int64]AlertSide
}

// NewAlertDispatcher keeps subscriptions in memory only when store is nil.
func NewAlertDispatcher(sender messageSender, store SubscriberStore) *AlertDispatcher {
	return &AlertDispatcher{
		sender:      sender,
		store:       store,
		subscribers: make(map[int64]AlertSide),
	}
}

// Restore loads persisted subscriptions, skipping unknown sides.
func (d *AlertDispatcher) Restore(ctx context.Context) error {
	if d.store == nil {
		return nil
	}
	saved, err := d.store.LoadSubscribers(ctx)
	if err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	for chatID, raw := range saved {
		if side, ok := parseSide(raw); ok {
			d.subscribers[chatID] = side
		}
	}
	return nil
}

// Subscribe sets the side for chatID. It reports false when the chat
// already had that exact subscription.
func (d *AlertDispatcher) Subscribe(ctx context.Context, chatID int64, side AlertSide) bool {
	d.mu.Lock()
	if current, ok := d.subscribers[chatID]; ok && current == side {
		d.mu.Unlock()
		return false
	}
	d.subscribers[chatID] = side
	d.mu.Unlock()

	if d.store != nil {
		if err := d.store.SaveSubscriber(ctx, chatID, string(side)); err != nil {
			log.Printf("persist alert subscription: %v", err)
		}
	}
	return true
}

func (d *AlertDispatcher) Unsubscribe(ctx context.Context, chatID int64) bool {
	d.mu.Lock()
	if _, ok := d.subscribers[chatID]; !ok {
		d.mu.Unlock()
		return false
	}
	delete(d.subscribers, chatID)
	d.mu.Unlock()

	if d.store != nil {
		if err := d.store.DeleteSubscriber(ctx, chatID); err != nil {
			log.Printf("remove alert subscription: %v", err)
		}
	}
	return true
}

// Subscription returns the side chatID is subscribed to.
func (d *AlertDispatcher) Subscription(chatID int64) (AlertSide, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	side, ok := d.subscribers[chatID]
	return side, ok
}

func (d *AlertDispatcher) SubscriberCount() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.subscribers)
}

// NotifyAnalyses sends each subscriber the records on its side, stopping
// early when ctx is cancelled.
func (d *AlertDispatcher) NotifyAnalyses(ctx context.Context, records []domain.AnalysisRecord) error {
	if d == nil || d.sender == nil || len(records) == 0 {
		return nil
	}

	var errs []error
	for _, sub := range d.snapshotSubscribers() {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		matched := make([]domain.AnalysisRecord, 0, len(records))
		for _, rec := range records {
			if sub.side.matches(rec.Signal.Action) {
				matched = append(matched, rec)
			}
		}
		if len(matched) == 0 {
			continue
		}
		if _, err := d.sender.Send(&tele.Chat{ID: sub.chatID}, formatAlertMessage(matched)); err != nil {
			errs = append(errs, fmt.Errorf("chat %d: %w", sub.chatID, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("failed sending %d alerts: %w", len(errs), errors.Join(errs...))
	}
	return nil
}

type subscription struct {
	chatID int64
	side   AlertSide
}

func (d *AlertDispatcher) snapshotSubscribers() []subscription {
	d.mu.RLock()
	defer d.mu.RUnlock()

	subs := make([]subscription, 0, len(d.subscribers))
	for chatID, side := range d.subscribers {
		subs = append(subs, subscription{chatID: chatID, side: side})
	}
	slices.SortFunc(subs, func(a, b subscription) int { return cmp.Compare(a.chatID, b.chatID) })
	return subs
}

// parseAlertMode reads "/alerts [on|off|status] [all|buy|sell]".
func parseAlertMode(args []string) (string, AlertSide, error) {
	if len(args) == 0 {
		return "status", "", nil
	}
	if len(args) > 2 {
		return "", "", errors.New("too many arguments")
	}

	mode := strings.ToLower(strings.TrimSpace(args[0]))
	switch mode {
	case "on":
		if len(args) == 1 {
			return mode, SideAll, nil
		}
		side, ok := parseSide(args[1])
		if !ok {
			return "", "", fmt.Errorf("invalid side %q", args[1])
		}
		return mode, side, nil
	case "off", "status":
		if len(args) > 1 {
			return "", "", errors.New("unexpected argument")
		}
		return mode, "", nil
	default:
		return "", "", fmt.Errorf("invalid mode %q", mode)
	}
}

func formatAlertMessage(records []domain.AnalysisRecord) string {
	lines := make([]string, 0, len(records)+1)
	lines = append(lines, "Strong signal alert:")
	for _, rec := range records {
		lines = append(lines, fmt.Sprintf("%s %s conv %d upside %s at %s",
			rec.Ticker, rec.Signal.Recommendation, rec.Signal.Conviction,
			pct(rec.Valuation.UpsidePct), money(rec.CurrentPrice)))
	}
	return truncate(strings.Join(lines, "\n"))
}
