package config

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	yaml "go.yaml.in/yaml/v3"

	"premiumbot/pkg/logx"
)

// Manager owns the tunables file: strict parsing, the committed snapshot,
// and change notification for hot reload.
type Manager struct {
	path string

	mu  sync.RWMutex
	cur *Tunables

	// subsMu guards the subscriber list and ensures we never send on a
	// channel that is concurrently being closed in Unsubscribe().
	subsMu sync.Mutex
	subs   []chan *Tunables

	log       logx.Logger
	validator func(ctx context.Context, t *Tunables) error

	// lastHash tracks the last committed file content so editor-induced
	// duplicate write events don't republish unchanged tunables.
	lastHash uint64
}

func NewManager(path string) *Manager {
	return &Manager{path: path}
}

func (m *Manager) SetLogger(log logx.Logger) { m.log = log }

// SetValidator installs a validation hook run by Watch() before a reloaded
// file is committed and published.
func (m *Manager) SetValidator(fn func(ctx context.Context, t *Tunables) error) {
	m.validator = fn
}

// Parse reads and strictly decodes the tunables file. YAML input is
// coerced to JSON first so both formats share DisallowUnknownFields.
func (m *Manager) Parse() (*Tunables, error) {
	b, err := os.ReadFile(m.path)
	if err != nil {
		return nil, err
	}
	jb, err := coerceToJSON(m.path, b)
	if err != nil {
		return nil, err
	}

	var t Tunables
	dec := json.NewDecoder(bytes.NewReader(jb))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&t); err != nil {
		return nil, err
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		if err == nil {
			return nil, fmt.Errorf("invalid tunables: trailing data")
		}
		return nil, err
	}
	return &t, nil
}

// Load parses the file and commits it. A missing file commits defaults.
func (m *Manager) Load() (*Tunables, error) {
	if strings.TrimSpace(m.path) == "" {
		t := DefaultTunables()
		m.commit(t)
		return t, nil
	}
	t, err := m.Parse()
	if err != nil {
		if os.IsNotExist(err) {
			t = DefaultTunables()
			m.commit(t)
			return t, nil
		}
		return nil, err
	}
	m.commit(t)
	return t, nil
}

func (m *Manager) commit(t *Tunables) {
	m.mu.Lock()
	m.cur = t
	m.lastHash = hashTunables(t)
	m.mu.Unlock()
}

func (m *Manager) Get() *Tunables {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cur
}

func (m *Manager) Subscribe(buffer int) chan *Tunables {
	ch := make(chan *Tunables, buffer)
	m.subsMu.Lock()
	m.subs = append(m.subs, ch)
	m.subsMu.Unlock()
	return ch
}

func (m *Manager) Unsubscribe(ch chan *Tunables) {
	if ch == nil {
		return
	}
	m.subsMu.Lock()
	defer m.subsMu.Unlock()
	for i, s := range m.subs {
		if s == ch {
			last := len(m.subs) - 1
			m.subs[i] = m.subs[last]
			m.subs[last] = nil
			m.subs = m.subs[:last]
			close(ch)
			return
		}
	}
}

func (m *Manager) publish(t *Tunables) {
	// Hold subsMu while sending to avoid send-on-closed panics.
	m.subsMu.Lock()
	defer m.subsMu.Unlock()
	for _, ch := range m.subs {
		if ch == nil {
			continue
		}
		// Deliver the latest snapshot; if the subscriber is behind, drop
		// one stale item and retry once.
		select {
		case ch <- t:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- t:
			default:
			}
		}
	}
}

// Watch reloads the tunables file on change until ctx is done.
// Reloads are debounced (partial editor writes) and validated before
// commit; a rejected file leaves the previous snapshot in place.
func (m *Manager) Watch(ctx context.Context) error {
	if strings.TrimSpace(m.path) == "" {
		<-ctx.Done()
		return nil
	}
	dir := filepath.Dir(m.path)
	file := filepath.Base(m.path)

	var (
		timerMu sync.Mutex
		timer   *time.Timer
	)
	reload := func() {
		t, err := m.Parse()
		if err != nil {
			if !m.log.IsZero() {
				m.log.Warn("tunables parse failed", logx.String("path", m.path), logx.Err(err))
			}
			return
		}

		h := hashTunables(t)
		m.mu.RLock()
		unchanged := h != 0 && h == m.lastHash
		m.mu.RUnlock()
		if unchanged {
			return
		}

		if m.validator != nil {
			vctx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err := m.validator(vctx, t)
			cancel()
			if err != nil {
				if !m.log.IsZero() {
					m.log.Warn("tunables rejected", logx.String("path", m.path), logx.Err(err))
				}
				return
			}
		}

		m.commit(t)
		m.publish(t)
		if !m.log.IsZero() {
			m.log.Info("tunables reloaded", logx.String("path", m.path))
		}
	}
	debounce := func() {
		timerMu.Lock()
		defer timerMu.Unlock()
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(250*time.Millisecond, reload)
	}

	backoff := 250 * time.Millisecond
	for {
		if ctx.Err() != nil {
			return nil
		}

		w, err := fsnotify.NewWatcher()
		if err == nil {
			err = w.Add(dir)
			if err != nil {
				_ = w.Close()
			}
		}
		if err != nil {
			if !m.log.IsZero() {
				m.log.Warn("tunables watch init failed", logx.Err(err), logx.String("dir", dir))
			}
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(backoff):
			}
			if backoff < 5*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = 250 * time.Millisecond

		broken := false
		for !broken {
			select {
			case <-ctx.Done():
				_ = w.Close()
				return nil
			case ev, ok := <-w.Events:
				if !ok {
					broken = true
					break
				}
				if strings.EqualFold(filepath.Base(ev.Name), file) {
					if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove|fsnotify.Chmod) != 0 {
						debounce()
					}
				}
			case _, ok := <-w.Errors:
				if !ok {
					broken = true
				}
			}
		}
		_ = w.Close()
	}
}

func hashTunables(t *Tunables) uint64 {
	if t == nil {
		return 0
	}
	b, err := json.Marshal(t)
	if err != nil {
		return 0
	}
	h := fnv.New64a()
	_, _ = h.Write(b)
	return h.Sum64()
}

// coerceToJSON converts YAML files to JSON bytes so the strict JSON
// decoder serves both formats.
func coerceToJSON(path string, data []byte) ([]byte, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".yaml" && ext != ".yml" {
		return data, nil
	}

	var v any
	if err := yaml.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("yaml unmarshal: %w", err)
	}
	v = normalizeYAML(v)

	j, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("yaml->json marshal: %w", err)
	}
	return j, nil
}

// normalizeYAML ensures all map keys are strings so the result can be
// JSON-marshaled.
func normalizeYAML(in any) any {
	switch x := in.(type) {
	case map[any]any:
		m := make(map[string]any, len(x))
		for k, v := range x {
			m[fmt.Sprint(k)] = normalizeYAML(v)
		}
		return m
	case map[string]any:
		m := make(map[string]any, len(x))
		for k, v := range x {
			m[k] = normalizeYAML(v)
		}
		return m
	case []any:
		for i := range x {
			x[i] = normalizeYAML(x[i])
		}
		return x
	default:
		return in
	}
}
