package backup

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"bizadmin/internal/logging"

	gojson "github.com/goccy/go-json"
)

type notifyLevel int

const (
	levelInfo notifyLevel = iota
	levelWarn
	levelError
)

func (l notifyLevel) String() string {
	switch l {
	case levelWarn:
		return "warning"
	case levelError:
		return "error"
	default:
		return "info"
	}
}

// notify delivers one message and swallows any panic from the sink
func notify(n Notifier, level notifyLevel, message string, fields map[string]interface{}) {
	if n == nil {
		return
	}
	defer func() {
		_ = recover()
	}()

	switch level {
	case levelWarn:
		n.LogWarn(message, fields)
	case levelError:
		n.LogError(message, fields)
	default:
		n.LogInfo(message, fields)
	}
}

// LogNotifier writes notifications to the application logger
type LogNotifier struct {
	logger *logging.Logger
}

// NewLogNotifier creates a notifier backed by logger
func NewLogNotifier(logger *logging.Logger) *LogNotifier {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &LogNotifier{logger: logger}
}

func (ln *LogNotifier) LogInfo(message string, fields map[string]interface{}) {
	ln.logger.WithFields(fields).Info(message)
}

func (ln *LogNotifier) LogWarn(message string, fields map[string]interface{}) {
	ln.logger.WithFields(fields).Warn(message)
}

func (ln *LogNotifier) LogError(message string, fields map[string]interface{}) {
	ln.logger.WithFields(fields).Error(message)
}

// WebhookConfig configures the webhook notification channel
type WebhookConfig struct {
	URL      string            `mapstructure:"url" yaml:"url"`
	Method   string            `mapstructure:"method" yaml:"method"`
	Headers  map[string]string `mapstructure:"headers" yaml:"headers,omitempty"`
	Timeout  time.Duration     `mapstructure:"timeout" yaml:"timeout"`
	MinLevel string            `mapstructure:"min_level" yaml:"min_level"`
}

// WebhookNotifier posts warnings and errors as JSON to an HTTP endpoint.
// Delivery happens on a separate goroutine and failures go to the logger.
type WebhookNotifier struct {
	logger   *logging.Logger
	config   WebhookConfig
	client   *http.Client
	minLevel notifyLevel
}

type webhookMessage struct {
	Level     string                 `json:"level"`
	Message   string                 `json:"message"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// NewWebhookNotifier creates a webhook channel
func NewWebhookNotifier(logger *logging.Logger, config WebhookConfig) *WebhookNotifier {
	timeout := config.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	minLevel := levelWarn
	switch config.MinLevel {
	case "info":
		minLevel = levelInfo
	case "error":
		minLevel = levelError
	}

	return &WebhookNotifier{
		logger:   logger,
		config:   config,
		client:   &http.Client{Timeout: timeout},
		minLevel: minLevel,
	}
}

func (wn *WebhookNotifier) LogInfo(message string, fields map[string]interface{}) {
	wn.dispatch(levelInfo, message, fields)
}

func (wn *WebhookNotifier) LogWarn(message string, fields map[string]interface{}) {
	wn.dispatch(levelWarn, message, fields)
}

func (wn *WebhookNotifier) LogError(message string, fields map[string]interface{}) {
	wn.dispatch(levelError, message, fields)
}

func (wn *WebhookNotifier) dispatch(level notifyLevel, message string, fields map[string]interface{}) {
	if level < wn.minLevel || wn.config.URL == "" {
		return
	}

	msg := webhookMessage{Level: level.String(), Message: message, Fields: fields, Timestamp: time.Now().UTC()}
	go func() {
		if err := wn.send(context.Background(), msg); err != nil {
			wn.logger.WithField("error", err.Error()).Warn("Webhook notification failed")
		}
	}()
}

// send posts one message synchronously
func (wn *WebhookNotifier) send(ctx context.Context, msg webhookMessage) error {
	payload, err := gojson.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal webhook payload: %w", err)
	}

	method := wn.config.Method
	if method == "" {
		method = http.MethodPost
	}

	req, err := http.NewRequestWithContext(ctx, method, wn.config.URL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for key, value := range wn.config.Headers {
		req.Header.Set(key, value)
	}

	resp, err := wn.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook returned error status: %d", resp.StatusCode)
	}
	return nil
}

// MultiNotifier fans every message out to several sinks
type MultiNotifier []Notifier

func (m MultiNotifier) LogInfo(message string, fields map[string]interface{}) {
	for _, n := range m {
		notify(n, levelInfo, message, fields)
	}
}

func (m MultiNotifier) LogWarn(message string, fields map[string]interface{}) {
	for _, n := range m {
		notify(n, levelWarn, message, fields)
	}
}

func (m MultiNotifier) LogError(message string, fields map[string]interface{}) {
	for _, n := range m {
		notify(n, levelError, message, fields)
	}
}
