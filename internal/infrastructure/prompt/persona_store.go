package prompt

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// DefaultPersona is used when no persona file is configured or it cannot be parsed.
const DefaultPersona = `You are the friendly sales assistant of an online shop.
Reply in the customer's language and keep answers short.
Only mention products that appear in the catalog you are given, with their exact prices.`

// PersonaMeta is the YAML frontmatter of a persona file.
type PersonaMeta struct {
	ShopName string            `yaml:"shop_name"`
	Language string            `yaml:"language"`
	Currency string            `yaml:"currency"`
	Extra    map[string]string `yaml:"vars"`
}

// vars flattens the frontmatter into placeholder values.
func (m PersonaMeta) vars() map[string]string {
	out := make(map[string]string, len(m.Extra)+3)
	for k, v := range m.Extra {
		out[k] = v
	}
	if m.ShopName != "" {
		out["shop_name"] = m.ShopName
	}
	if m.Language != "" {
		out["language"] = m.Language
	}
	if m.Currency != "" {
		out["currency"] = m.Currency
	}
	return out
}

var placeholderRe = regexp.MustCompile(`\{\{\s*([a-zA-Z0-9_]+)\s*\}\}`)

// ParsePersona splits optional frontmatter from the markdown body and fills
// {{key}} placeholders. Unknown placeholders are left as they are.
//
//	---
//	shop_name: Our Shop
//	currency: EGP
//	---
//	You are the sales assistant of {{shop_name}}...
func ParsePersona(data []byte) (string, PersonaMeta, error) {
	var meta PersonaMeta
	content := strings.TrimPrefix(string(data), "\ufeff")

	if strings.HasPrefix(strings.TrimSpace(content), "---") {
		trimmed := strings.TrimSpace(content)
		rest := strings.TrimPrefix(trimmed, "---")
		end := strings.Index(rest, "\n---")
		if end < 0 {
			return "", meta, fmt.Errorf("unterminated frontmatter")
		}
		if err := yaml.Unmarshal([]byte(rest[:end]), &meta); err != nil {
			return "", meta, fmt.Errorf("parse frontmatter: %w", err)
		}
		content = rest[end+len("\n---"):]
	}

	body := strings.TrimSpace(content)
	if body == "" {
		return "", meta, fmt.Errorf("persona body is empty")
	}

	vars := meta.vars()
	body = placeholderRe.ReplaceAllStringFunc(body, func(m string) string {
		key := placeholderRe.FindStringSubmatch(m)[1]
		if v, ok := vars[key]; ok {
			return v
		}
		return m
	})
	return body, meta, nil
}

// PersonaStore holds the current persona text and reloads it when the file changes.
type PersonaStore struct {
	path   string
	logger *zap.Logger

	mu      sync.RWMutex
	persona string
	meta    PersonaMeta
}

// NewPersonaStore loads path once. An empty path or a broken file falls back
// to DefaultPersona; the error is logged, not returned.
func NewPersonaStore(path string, logger *zap.Logger) *PersonaStore {
	s := &PersonaStore{
		path:    path,
		logger:  logger.With(zap.String("component", "persona")),
		persona: DefaultPersona,
	}
	if path != "" {
		if err := s.Reload(); err != nil {
			s.logger.Warn("Persona file not loaded, using built-in persona",
				zap.String("path", path),
				zap.Error(err),
			)
		}
	}
	return s
}

// Persona returns the current persona block.
func (s *PersonaStore) Persona() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.persona
}

// Meta returns the frontmatter of the last good load.
func (s *PersonaStore) Meta() PersonaMeta {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.meta
}

// Reload re-reads the persona file. On error the previous persona stays active.
func (s *PersonaStore) Reload() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("read persona: %w", err)
	}
	body, meta, err := ParsePersona(data)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.persona = body
	s.meta = meta
	s.mu.Unlock()
	return nil
}

// Watch reloads the persona whenever its file is written or replaced, until
// ctx is done. The parent directory is watched so editors that rename on save
// are picked up.
func (s *PersonaStore) Watch(ctx context.Context) error {
	if s.path == "" {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	dir := filepath.Dir(s.path)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch persona dir: %w", err)
	}

	target := filepath.Clean(s.path)
	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != target {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				if err := s.Reload(); err != nil {
					s.logger.Warn("Persona reload failed, keeping previous", zap.Error(err))
					continue
				}
				s.logger.Info("Persona reloaded", zap.String("path", s.path))
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				s.logger.Error("Watcher error", zap.Error(err))
			}
		}
	}()

	s.logger.Info("Persona hot-reload watching started", zap.String("path", s.path))
	return nil
}
