package notify

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Summary is the event contract for one pipeline run. Delivery is fire
// and forget: a failed send never fails the run.
type Summary struct {
	AddedTitles    []string
	Unresolved     []string
	FlakyDomains   []string
	EpisodesReady  int
	EpisodesQueued int
	Duration       time.Duration
	FatalError     string
}

// Service is the notification surface exposed to the pipeline. A noop
// implementation is returned when no topic is configured.
type Service interface {
	NotifyRunCompleted(ctx context.Context, summary Summary) error
	NotifyError(ctx context.Context, err error, contextLabel string) error
}

func NewService(topic, userAgent string) Service {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return noopService{}
	}

	return &ntfyService{
		endpoint:  topic,
		userAgent: userAgent,
		client:    &http.Client{Timeout: 10 * time.Second},
	}
}

type ntfyService struct {
	endpoint  string
	userAgent string
	client    *http.Client
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

func (n *ntfyService) NotifyRunCompleted(ctx context.Context, summary Summary) error {
	var builder strings.Builder

	fmt.Fprintf(&builder, "Run complete in %s: %d added, %d unresolved\n",
		summary.Duration.Round(time.Second), len(summary.AddedTitles), len(summary.Unresolved))

	if len(summary.AddedTitles) > 0 {
		builder.WriteString("Added:\n")
		for _, title := range summary.AddedTitles {
			fmt.Fprintf(&builder, "  + %s\n", title)
		}
	}

	if len(summary.Unresolved) > 0 {
		builder.WriteString("Needs review:\n")
		for _, link := range summary.Unresolved {
			fmt.Fprintf(&builder, "  ? %s\n", link)
		}
	}

	if len(summary.FlakyDomains) > 0 {
		fmt.Fprintf(&builder, "Repeated fetch failures: %s\n", strings.Join(summary.FlakyDomains, ", "))
	}

	if summary.FatalError != "" {
		fmt.Fprintf(&builder, "Fatal: %s\n", summary.FatalError)
	}

	title := "Bookscout - Run Complete"
	priority := ""
	if summary.FatalError != "" {
		title = "Bookscout - Run Failed"
		priority = "high"
	}

	return n.send(ctx, payload{
		title:    title,
		message:  strings.TrimRight(builder.String(), "\n"),
		tags:     []string{"bookscout", "run"},
		priority: priority,
	})
}

func (n *ntfyService) NotifyError(ctx context.Context, err error, contextLabel string) error {
	message := fmt.Sprintf("Error: %v", err)
	if contextLabel = strings.TrimSpace(contextLabel); contextLabel != "" {
		message = fmt.Sprintf("Error in %s: %v", contextLabel, err)
	}

	return n.send(ctx, payload{
		title:    "Bookscout - Error",
		message:  message,
		tags:     []string{"bookscout", "error"},
		priority: "high",
	})
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("failed to build notification request: %w", err)
	}
	req.Header.Set("User-Agent", n.userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("notification endpoint returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)

	return nil
}

type noopService struct{}

func (noopService) NotifyRunCompleted(context.Context, Summary) error { return nil }
func (noopService) NotifyError(context.Context, error, string) error  { return nil }
