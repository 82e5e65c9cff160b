package classify

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

const summaryPlaceholder = "{{summary}}"

// DefaultPrompt asks for exactly one of the four category labels.
const DefaultPrompt = `Analyze the following call summary and categorize it as one of these:
- Positive
- Negative
- Follow-up
- Wrong Number

Summary:
"{{summary}}"

Return only the category.`

// RenderPrompt substitutes summary into template. A template without the
// placeholder gets the summary appended.
func RenderPrompt(template, summary string) string {
	template = strings.TrimSpace(template)
	if template == "" {
		template = DefaultPrompt
	}
	if !strings.Contains(template, summaryPlaceholder) {
		return template + "\n\nSummary:\n\"" + summary + "\""
	}
	return strings.ReplaceAll(template, summaryPlaceholder, summary)
}

type promptFile struct {
	ClassifierPrompt string `yaml:"classifier_prompt"`
}

// PromptManager hot-reloads the classifier prompt from a YAML file without
// requiring process restarts.
type PromptManager struct {
	path   string
	mu     sync.RWMutex
	prompt string
}

// NewPromptManager seeds a manager with the file's prompt, or DefaultPrompt
// when the file is missing or has no classifier_prompt key.
func NewPromptManager(path string) *PromptManager {
	pm := &PromptManager{path: path, prompt: DefaultPrompt}
	if err := pm.Reload(); err != nil {
		log.Debug().Err(err).Str("path", path).Msg("classifier prompt not loaded, using default")
	}
	return pm
}

// Current returns the latest prompt template.
func (pm *PromptManager) Current() string {
	if pm == nil {
		return DefaultPrompt
	}
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	return pm.prompt
}

// Reload reads the prompt file. A missing key resets to DefaultPrompt.
func (pm *PromptManager) Reload() error {
	if pm.path == "" {
		return nil
	}
	data, err := os.ReadFile(pm.path)
	if err != nil {
		return err
	}
	var parsed promptFile
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return errors.Wrap(err, "parse prompt file")
	}
	prompt := strings.TrimSpace(parsed.ClassifierPrompt)
	if prompt == "" {
		prompt = DefaultPrompt
	}
	pm.mu.Lock()
	pm.prompt = prompt
	pm.mu.Unlock()
	return nil
}

// Watch reloads the prompt whenever its file changes until ctx is done. The
// parent directory is watched so editors that replace the file are handled.
func (pm *PromptManager) Watch(ctx context.Context) error {
	dir := filepath.Dir(pm.path)
	if pm.path == "" {
		<-ctx.Done()
		return nil
	}
	if _, err := os.Stat(dir); err != nil {
		log.Debug().Str("dir", dir).Msg("prompt directory missing, hot reload disabled")
		<-ctx.Done()
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "prompt watcher")
	}
	defer watcher.Close()

	if err := watcher.Add(dir); err != nil {
		return errors.Wrapf(err, "watch %s", dir)
	}
	target := filepath.Clean(pm.path)
	for {
		select {
		case <-ctx.Done():
			return nil
		case evt, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(evt.Name) != target {
				continue
			}
			if evt.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if err := pm.Reload(); err != nil {
				log.Warn().Err(err).Str("path", pm.path).Msg("classifier prompt reload failed")
				continue
			}
			log.Info().Str("path", pm.path).Msg("classifier prompt reloaded")
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Warn().Err(err).Msg("prompt watcher error")
		}
	}
}
