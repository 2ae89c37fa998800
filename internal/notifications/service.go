package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"fieldbook/internal/config"
)

const userAgent = "Fieldbook-Go/0.1.0"

// Service defines the notification surface exposed to workflow components.
type Service interface {
	NotifyNewSpecies(ctx context.Context, species []string) error
	NotifyBatchCompleted(ctx context.Context, outings, observations, newSpecies int, duration time.Duration) error
	NotifyImportCompleted(ctx context.Context, imported, skipped int) error
	NotifyError(ctx context.Context, err error, context string) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	client := &http.Client{Timeout: timeout}
	return &ntfyService{
		endpoint:   topic,
		client:     client,
		newSpecies: cfg.Notifications.NewSpecies,
		batch:      cfg.Notifications.Batch,
		errors:     cfg.Notifications.Errors,
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint   string
	client     *http.Client
	newSpecies bool
	batch      bool
	errors     bool
}

func (n *ntfyService) NotifyNewSpecies(ctx context.Context, species []string) error {
	if !n.newSpecies || len(species) == 0 {
		return nil
	}
	var message string
	if len(species) == 1 {
		message = fmt.Sprintf("New species for your dex: %s", species[0])
	} else {
		message = fmt.Sprintf("%d new species for your dex:\n%s", len(species), strings.Join(species, "\n"))
	}
	data := payload{
		title:    "Fieldbook - New Species",
		message:  message,
		tags:     []string{"fieldbook", "dex", "new-species"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyBatchCompleted(ctx context.Context, outings, observations, newSpecies int, duration time.Duration) error {
	if !n.batch {
		return nil
	}
	duration = duration.Round(time.Second)
	if duration < 0 {
		duration = 0
	}
	durationText := duration.String()
	if duration == 0 {
		durationText = "0s"
	}

	message := fmt.Sprintf("Batch complete: %d observations across %d outings in %s", observations, outings, durationText)
	if newSpecies > 0 {
		message = fmt.Sprintf("%s\n%d species recorded for the first time", message, newSpecies)
	}
	data := payload{
		title:   "Fieldbook - Batch Complete",
		message: message,
		tags:    []string{"fieldbook", "batch", "completed"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyImportCompleted(ctx context.Context, imported, skipped int) error {
	if !n.batch {
		return nil
	}
	message := fmt.Sprintf("Import complete: %d rows imported", imported)
	if skipped > 0 {
		message = fmt.Sprintf("%s, %d skipped", message, skipped)
	}
	data := payload{
		title:   "Fieldbook - Import Complete",
		message: message,
		tags:    []string{"fieldbook", "import", "completed"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyError(ctx context.Context, err error, contextLabel string) error {
	if !n.errors {
		return nil
	}
	var builder strings.Builder
	builder.WriteString("Error")
	if contextLabel = strings.TrimSpace(contextLabel); contextLabel != "" {
		builder.WriteString(" with ")
		builder.WriteString(contextLabel)
	}
	builder.WriteString(": ")
	if err != nil {
		builder.WriteString(strings.TrimSpace(err.Error()))
	} else {
		builder.WriteString("unknown")
	}

	data := payload{
		title:    "Fieldbook - Error",
		message:  builder.String(),
		tags:     []string{"fieldbook", "error", "alert"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "Fieldbook - Test",
		message:  "Notification system test",
		tags:     []string{"fieldbook", "test"},
		priority: "low",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) NotifyNewSpecies(context.Context, []string) error { return nil }
func (noopService) NotifyBatchCompleted(context.Context, int, int, int, time.Duration) error {
	return nil
}
func (noopService) NotifyImportCompleted(context.Context, int, int) error { return nil }
func (noopService) NotifyError(context.Context, error, string) error      { return nil }
func (noopService) TestNotification(context.Context) error                { return nil }
