package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/ronappleton/advisorflow/internal/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// sinkEntry is the log record accepted by the metric service's /v1/logs.
type sinkEntry struct {
	Source   string            `json:"source"`
	Level    string            `json:"level"`
	Message  string            `json:"message"`
	Time     string            `json:"ts"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// shipper posts entries from a bounded queue on one goroutine. A full queue
// drops entries rather than blocking the caller.
type shipper struct {
	endpoint string
	apiKey   string
	source   string
	client   *http.Client
	queue    chan sinkEntry
	pending  atomic.Int64
	dropped  atomic.Int64
}

func newShipper(baseURL, apiKey, source string) *shipper {
	s := &shipper{
		endpoint: strings.TrimRight(baseURL, "/") + "/v1/logs",
		apiKey:   apiKey,
		source:   source,
		client:   &http.Client{Timeout: 3 * time.Second},
		queue:    make(chan sinkEntry, 256),
	}
	go s.run()
	return s
}

func (s *shipper) run() {
	for e := range s.queue {
		s.post(e)
		s.pending.Add(-1)
	}
}

func (s *shipper) post(e sinkEntry) {
	body, err := json.Marshal(e)
	if err != nil {
		return
	}
	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return
	}
	_ = resp.Body.Close()
}

func (s *shipper) enqueue(e sinkEntry) {
	s.pending.Add(1)
	select {
	case s.queue <- e:
	default:
		s.pending.Add(-1)
		s.dropped.Add(1)
	}
}

// flush waits for queued entries to be posted, up to timeout.
func (s *shipper) flush(timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for s.pending.Load() > 0 {
		if time.Now().After(deadline) {
			return fmt.Errorf("log sink: %d entries still queued", s.pending.Load())
		}
		time.Sleep(10 * time.Millisecond)
	}
	return nil
}

func attachSink(logger *zap.Logger, cfg config.LogConfig) (*zap.Logger, error) {
	if cfg.SinkURL == "" {
		return logger, nil
	}
	level := zapcore.InfoLevel
	if cfg.SinkLevel != "" {
		parsed, err := zapcore.ParseLevel(cfg.SinkLevel)
		if err != nil {
			return nil, fmt.Errorf("sink level %q: %w", cfg.SinkLevel, err)
		}
		level = parsed
	}
	source := cfg.SinkSource
	if source == "" {
		source = filepath.Base(os.Args[0])
	}
	core := &sinkCore{level: level, shipper: newShipper(cfg.SinkURL, cfg.SinkAPIKey, source)}
	return logger.WithOptions(zap.WrapCore(func(c zapcore.Core) zapcore.Core {
		return zapcore.NewTee(c, core)
	})), nil
}

type sinkCore struct {
	level   zapcore.LevelEnabler
	fields  []zapcore.Field
	shipper *shipper
}

func (c *sinkCore) Enabled(level zapcore.Level) bool {
	return c.level.Enabled(level)
}

func (c *sinkCore) With(fields []zapcore.Field) zapcore.Core {
	clone := *c
	clone.fields = append(append([]zapcore.Field{}, c.fields...), fields...)
	return &clone
}

func (c *sinkCore) Check(entry zapcore.Entry, checked *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(entry.Level) {
		return checked.AddCore(entry, c)
	}
	return checked
}

func (c *sinkCore) Write(entry zapcore.Entry, fields []zapcore.Field) error {
	enc := zapcore.NewMapObjectEncoder()
	for _, f := range c.fields {
		f.AddTo(enc)
	}
	for _, f := range fields {
		f.AddTo(enc)
	}
	metadata := make(map[string]string, len(enc.Fields))
	for k, v := range enc.Fields {
		metadata[k] = fmt.Sprint(v)
	}
	c.shipper.enqueue(sinkEntry{
		Source:   c.shipper.source,
		Level:    entry.Level.String(),
		Message:  entry.Message,
		Time:     entry.Time.UTC().Format(time.RFC3339Nano),
		Metadata: metadata,
	})
	return nil
}

func (c *sinkCore) Sync() error {
	return c.shipper.flush(2 * time.Second)
}
