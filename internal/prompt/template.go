// Package prompt resolves task names to parameterized prompt templates and
// renders them against note content. Templates are loaded once at startup and
// immutable thereafter; Render is a pure function over the template and its
// inputs, so concurrent renders need no locking.
package prompt

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/cortexnotes/cortex/internal/domain"
)

// placeholderRegex matches {{name}} placeholders in template bodies.
var placeholderRegex = regexp.MustCompile(`\{\{(\w+)\}\}`)

// Template is a named, parameterized prompt pattern.
type Template struct {
	TaskName       string   `yaml:"task"`
	Body           string   `yaml:"prompt"`
	RequiredInputs []string `yaml:"inputs"`
}

type templateFile struct {
	Templates []Template `yaml:"templates"`
}

// Engine holds the immutable template set keyed by task name.
type Engine struct {
	templates map[string]Template
}

// Load reads templates from a YAML file and validates them.
func Load(path string) (*Engine, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read templates %s: %w", path, err)
	}

	var file templateFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}

	return New(file.Templates)
}

// New builds an engine from an in-memory template set.
// Every placeholder in a template body must be declared in its inputs.
func New(templates []Template) (*Engine, error) {
	byTask := make(map[string]Template, len(templates))
	for _, tpl := range templates {
		if tpl.TaskName == "" {
			return nil, fmt.Errorf("template with empty task name")
		}
		if _, ok := byTask[tpl.TaskName]; ok {
			return nil, fmt.Errorf("duplicate task %q", tpl.TaskName)
		}
		if err := validateTemplate(tpl); err != nil {
			return nil, err
		}
		byTask[tpl.TaskName] = tpl
	}
	return &Engine{templates: byTask}, nil
}

// validateTemplate checks that every placeholder is a declared input.
func validateTemplate(tpl Template) error {
	declared := make(map[string]struct{}, len(tpl.RequiredInputs))
	for _, in := range tpl.RequiredInputs {
		declared[in] = struct{}{}
	}

	for _, m := range placeholderRegex.FindAllStringSubmatch(tpl.Body, -1) {
		if _, ok := declared[m[1]]; !ok {
			return fmt.Errorf("task %q: placeholder {{%s}} not declared in inputs", tpl.TaskName, m[1])
		}
	}
	return nil
}

// Render resolves the task and substitutes every placeholder literally.
// Missing required inputs fail with an error naming each absent key;
// nothing is ever silently substituted with an empty string.
func (e *Engine) Render(taskName string, inputs map[string]string) (string, error) {
	tpl, ok := e.templates[taskName]
	if !ok {
		return "", fmt.Errorf("task %q: %w", taskName, domain.ErrUnknownTask)
	}

	var missing []string
	for _, key := range tpl.RequiredInputs {
		if _, ok := inputs[key]; !ok {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return "", domain.NewMissingInput(taskName, missing)
	}

	rendered := tpl.Body
	for _, key := range tpl.RequiredInputs {
		rendered = strings.ReplaceAll(rendered, "{{"+key+"}}", inputs[key])
	}
	return rendered, nil
}

// Tasks lists loaded task names in sorted order.
func (e *Engine) Tasks() []string {
	tasks := make([]string, 0, len(e.templates))
	for name := range e.templates {
		tasks = append(tasks, name)
	}
	sort.Strings(tasks)
	return tasks
}
