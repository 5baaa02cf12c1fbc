package genai

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/openai/openai-go"
)

// debugLogEntry is one request/response pair written in debug mode.
type debugLogEntry struct {
	Timestamp time.Time                      `json:"timestamp"`
	Method    string                         `json:"method"`
	Model     string                         `json:"model"`
	Params    openai.ChatCompletionNewParams `json:"params"`
	Response  openai.ChatCompletion          `json:"response"`
}

// writeDebugLog stores the exchange under stateDir/debug when debug mode is on.
// Failures are logged and otherwise ignored.
func (c *Client) writeDebugLog(method string, params openai.ChatCompletionNewParams, resp openai.ChatCompletion) {
	if !c.debugMode || c.stateDir == "" {
		return
	}
	dir := filepath.Join(c.stateDir, "debug")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		slog.Warn("GenAI.writeDebugLog: failed to create debug dir", "dir", dir, "error", err)
		return
	}

	now := time.Now()
	entry := debugLogEntry{
		Timestamp: now,
		Method:    method,
		Model:     c.model,
		Params:    params,
		Response:  resp,
	}
	data, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		slog.Warn("GenAI.writeDebugLog: marshal failed", "error", err)
		return
	}

	name := fmt.Sprintf("%s_%s.json", now.Format("20060102_150405.000000000"), method)
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		slog.Warn("GenAI.writeDebugLog: write failed", "path", path, "error", err)
		return
	}
	slog.Debug("GenAI.writeDebugLog: wrote debug log", "path", path)
}
