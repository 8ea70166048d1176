package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/devicelab-dev/screenkit/pkg/logger"
)

// DefaultOutputDir is where results go when no directory is configured.
const DefaultOutputDir = "allure-results"

// resultSuffix names result files: <uuid>-result.json.
const resultSuffix = "-result.json"

// AllureCategory defines a failure category with regex matching.
type AllureCategory struct {
	Name            string   `json:"name"`
	MatchedStatuses []string `json:"matchedStatuses"`
	MessageRegex    string   `json:"messageRegex"`
}

// AllureExecutor holds executor branding info.
type AllureExecutor struct {
	Name       string `json:"name"`
	Type       string `json:"type"`
	ReportURL  string `json:"reportUrl,omitempty"`
	ReportName string `json:"reportName,omitempty"`
}

// Writer persists finished results into an Allure results directory.
type Writer struct {
	dir string
}

// NewWriter creates a Writer for dir, or DefaultOutputDir when dir is empty.
func NewWriter(dir string) *Writer {
	if dir == "" {
		dir = DefaultOutputDir
	}
	return &Writer{dir: dir}
}

// Dir returns the output directory.
func (w *Writer) Dir() string {
	return w.dir
}

// ResultPath returns the file a result with the given UUID is written to.
func (w *Writer) ResultPath(uuid string) string {
	return filepath.Join(w.dir, uuid+resultSuffix)
}

// Write serializes result to <dir>/<uuid>-result.json, creating dir if needed
// and overwriting an existing file of the same name. It returns the path.
func (w *Writer) Write(result *TestResult) (string, error) {
	if result == nil {
		return "", fmt.Errorf("write allure result: nil result")
	}
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return "", fmt.Errorf("create %s dir: %w", w.dir, err)
	}

	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal allure result for %s: %w", result.UUID, err)
	}

	path := w.ResultPath(result.UUID)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write allure result %s: %w", result.UUID, err)
	}
	logger.Info("wrote allure result %s (%s, %s)", path, result.Name, result.Status)
	return path, nil
}

// DefaultCategories returns the failure categories written by WriteCategories.
func DefaultCategories() []AllureCategory {
	return []AllureCategory{
		{Name: "Retry Budget Exceeded", MatchedStatuses: []string{"failed"}, MessageRegex: "(?i).*flaky safety timeout.*"},
		{Name: "Element Not Found", MatchedStatuses: []string{"failed"}, MessageRegex: "(?i).*element not found.*|.*no element matches.*"},
		{Name: "Element Not Visible", MatchedStatuses: []string{"failed"}, MessageRegex: "(?i).*not visible.*|.*not displayed.*"},
		{Name: "Text Mismatch", MatchedStatuses: []string{"failed"}, MessageRegex: "(?i).*text.*expected.*"},
		{Name: "Assertion Failed", MatchedStatuses: []string{"failed"}, MessageRegex: "(?i).*assert.*"},
		{Name: "Lifecycle Misuse", MatchedStatuses: []string{"failed", "broken"}, MessageRegex: "(?i).*(start|stop|finish)(Test|Step).*"},
	}
}

// WriteCategories writes categories.json for failure categorization.
func (w *Writer) WriteCategories(categories []AllureCategory) error {
	if categories == nil {
		categories = DefaultCategories()
	}
	return w.writeJSON("categories.json", categories)
}

// WriteEnvironment writes environment.properties with keys in sorted order.
func (w *Writer) WriteEnvironment(env map[string]string) error {
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		b.WriteString(fmt.Sprintf("%s=%s\n", k, env[k]))
	}

	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return fmt.Errorf("create %s dir: %w", w.dir, err)
	}
	path := filepath.Join(w.dir, "environment.properties")
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("write environment.properties: %w", err)
	}
	return nil
}

// WriteExecutor writes executor.json.
func (w *Writer) WriteExecutor(executor AllureExecutor) error {
	return w.writeJSON("executor.json", executor)
}

func (w *Writer) writeJSON(name string, v interface{}) error {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return fmt.Errorf("create %s dir: %w", w.dir, err)
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", name, err)
	}

	path := filepath.Join(w.dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}
