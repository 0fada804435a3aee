package backup

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"bizadmin/internal/logging"

	gojson "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type panickingNotifier struct{}

func (panickingNotifier) LogInfo(string, map[string]interface{})  { panic("info sink down") }
func (panickingNotifier) LogWarn(string, map[string]interface{})  { panic("warn sink down") }
func (panickingNotifier) LogError(string, map[string]interface{}) { panic("error sink down") }

func TestNotify_RecoversFromPanics(t *testing.T) {
	assert.NotPanics(t, func() {
		notify(panickingNotifier{}, levelInfo, "Backup created successfully", nil)
		notify(panickingNotifier{}, levelWarn, "Skipping table data", nil)
		notify(panickingNotifier{}, levelError, "Backup creation failed", nil)
		notify(nil, levelInfo, "no sink", nil)
	})
}

func TestMultiNotifier(t *testing.T) {
	first := &recordingNotifier{}
	second := &recordingNotifier{}
	multi := MultiNotifier{first, panickingNotifier{}, second}

	multi.LogInfo("Backup created successfully", map[string]interface{}{"artifact": "x"})
	multi.LogWarn("Failed to mirror backup", nil)
	multi.LogError("Backup creation failed", nil)

	for _, n := range []*recordingNotifier{first, second} {
		assert.Equal(t, 1, n.count("info"))
		assert.Equal(t, 1, n.count("warn"))
		assert.Equal(t, 1, n.count("error"))
	}
}

func TestLogNotifier(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.NewLogger(logging.Config{Level: logging.LogLevelVerbose, Output: &buf, Format: "json"})
	require.NoError(t, err)

	ln := NewLogNotifier(logger)
	ln.LogInfo("Backup created successfully", map[string]interface{}{"artifact": "backup-x.sql"})
	ln.LogWarn("Skipping table data", map[string]interface{}{"table": "orders"})
	ln.LogError("Backup creation failed", nil)

	output := buf.String()
	assert.Contains(t, output, `"msg":"Backup created successfully"`)
	assert.Contains(t, output, `"artifact":"backup-x.sql"`)
	assert.Contains(t, output, `"level":"warning"`)
	assert.Contains(t, output, `"level":"error"`)
}

func TestWebhookNotifier_Send(t *testing.T) {
	received := make(chan webhookMessage, 1)
	var authHeader string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader = r.Header.Get("Authorization")
		body, _ := io.ReadAll(r.Body)
		var msg webhookMessage
		if err := gojson.Unmarshal(body, &msg); err == nil {
			received <- msg
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	wn := NewWebhookNotifier(nil, WebhookConfig{
		URL:     server.URL,
		Headers: map[string]string{"Authorization": "Bearer token"},
	})

	wn.LogInfo("Backup created successfully", nil)
	wn.LogError("Backup creation failed", map[string]interface{}{"error": "disk full"})

	select {
	case msg := <-received:
		assert.Equal(t, "error", msg.Level)
		assert.Equal(t, "Backup creation failed", msg.Message)
		assert.Equal(t, "disk full", msg.Fields["error"])
	case <-time.After(5 * time.Second):
		t.Fatal("webhook was not called")
	}
	assert.Equal(t, "Bearer token", authHeader)
}

func TestWebhookNotifier_SendErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	wn := NewWebhookNotifier(nil, WebhookConfig{URL: server.URL, Method: http.MethodPut, MinLevel: "info"})
	err := wn.send(t.Context(), webhookMessage{Level: "info", Message: "hello"})
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "502"))
}

func TestWebhookNotifier_Disabled(t *testing.T) {
	wn := NewWebhookNotifier(nil, WebhookConfig{})
	assert.NotPanics(t, func() {
		wn.LogError("Backup creation failed", nil)
	})
}
