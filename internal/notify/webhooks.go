package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"sprintline/internal/config"
	"sprintline/internal/domain"
)

const (
	defaultWebhookTimeout = 5 * time.Second
	defaultQueueSize      = 256
)

// Dispatcher posts history entries to the configured webhooks. Entries are
// queued by Notify and delivered by Run; every matching hook receives an
// entry concurrently.
type Dispatcher struct {
	hooks  []webhook
	client *http.Client
	log    zerolog.Logger
	queue  chan domain.HistoryEntry
}

type webhook struct {
	cfg    config.WebhookConfig
	filter eventFilter
}

func New(hooks []config.WebhookConfig, log zerolog.Logger) *Dispatcher {
	d := &Dispatcher{
		client: &http.Client{Timeout: defaultWebhookTimeout},
		log:    log,
		queue:  make(chan domain.HistoryEntry, defaultQueueSize),
	}
	for _, hook := range hooks {
		if !hook.IsEnabled() || strings.TrimSpace(hook.URL) == "" {
			continue
		}
		d.hooks = append(d.hooks, webhook{cfg: hook, filter: newEventFilter(hook.Events)})
	}
	return d
}

// Notify enqueues an entry without blocking. When the queue is full the entry
// is dropped and a warning logged.
func (d *Dispatcher) Notify(h domain.HistoryEntry) {
	if d == nil || len(d.hooks) == 0 {
		return
	}
	select {
	case d.queue <- h:
	default:
		d.log.Warn().Str("entry_id", h.ID).Str("action", string(h.Action)).Msg("webhook: queue full, entry dropped")
	}
}

// Run delivers queued entries until ctx is done.
func (d *Dispatcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case h := <-d.queue:
			if err := d.Deliver(ctx, h); err != nil {
				d.log.Error().Err(err).Str("entry_id", h.ID).Msg("webhook: delivery failed")
			}
		}
	}
}

// Flush delivers whatever is queued right now and returns. Short-lived
// processes call it before exiting instead of running Run.
func (d *Dispatcher) Flush(ctx context.Context) {
	if d == nil {
		return
	}
	for {
		select {
		case h := <-d.queue:
			if err := d.Deliver(ctx, h); err != nil {
				d.log.Error().Err(err).Str("entry_id", h.ID).Msg("webhook: delivery failed")
			}
		default:
			return
		}
	}
}

// Deliver posts h to every matching hook and returns the first failure.
func (d *Dispatcher) Deliver(ctx context.Context, h domain.HistoryEntry) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, hook := range d.hooks {
		if !hook.filter.match(h) {
			continue
		}
		g.Go(func() error {
			if err := d.post(gctx, hook.cfg, h); err != nil {
				return fmt.Errorf("deliver to %s: %w", hook.cfg.URL, err)
			}
			return nil
		})
	}
	return g.Wait()
}

func (d *Dispatcher) post(ctx context.Context, hook config.WebhookConfig, h domain.HistoryEntry) error {
	data, err := json.Marshal(h)
	if err != nil {
		return err
	}
	timeout := defaultWebhookTimeout
	if hook.TimeoutSeconds > 0 {
		timeout = time.Duration(hook.TimeoutSeconds) * time.Second
	}
	client := d.client
	if timeout != d.client.Timeout {
		client = &http.Client{Timeout: timeout}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, hook.URL, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Sprintline-Event", string(h.Action))
	req.Header.Set("X-Sprintline-Delivery", h.ID)
	req.Header.Set("X-Sprintline-Subject", string(h.SubjectKind)+"/"+h.SubjectID)
	if strings.TrimSpace(hook.Secret) != "" {
		req.Header.Set("X-Sprintline-Secret", hook.Secret)
	}
	res, err := client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return fmt.Errorf("status %d: %s", res.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}

// eventFilter matches an entry by action code (ACTIVATE) or by subject kind
// (sprint, user_story). An empty filter matches everything.
type eventFilter struct {
	all bool
	set map[string]struct{}
}

func newEventFilter(events []string) eventFilter {
	set := make(map[string]struct{}, len(events))
	for _, evt := range events {
		if key := strings.TrimSpace(evt); key != "" {
			set[key] = struct{}{}
		}
	}
	if len(set) == 0 {
		return eventFilter{all: true}
	}
	return eventFilter{set: set}
}

func (f eventFilter) match(h domain.HistoryEntry) bool {
	if f.all {
		return true
	}
	if _, ok := f.set[string(h.Action)]; ok {
		return true
	}
	_, ok := f.set[string(h.SubjectKind)]
	return ok
}
