package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"
)

// ReadResult loads a single result file.
func ReadResult(path string) (*TestResult, error) {
	data, err := os.ReadFile(path) //#nosec G304 -- caller-provided results directory
	if err != nil {
		return nil, err
	}

	var result TestResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	return &result, nil
}

// ReadResults loads every <uuid>-result.json in dir, ordered by start time
// and then name.
func ReadResults(dir string) ([]TestResult, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var results []TestResult
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), resultSuffix) {
			continue
		}
		r, err := ReadResult(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, err
		}
		results = append(results, *r)
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Start != results[j].Start {
			return results[i].Start < results[j].Start
		}
		return results[i].Name < results[j].Name
	})
	return results, nil
}

// Validate checks a result against the report contract and returns every
// violation found.
func Validate(r *TestResult) []error {
	var errs []error
	if _, err := uuid.Parse(r.UUID); err != nil {
		errs = append(errs, fmt.Errorf("uuid %q: %w", r.UUID, err))
	}
	if r.Name == "" {
		errs = append(errs, fmt.Errorf("name is empty"))
	}
	if !r.Status.Valid() {
		errs = append(errs, fmt.Errorf("status %q is not an allure status", r.Status))
	}
	if r.Stop < r.Start {
		errs = append(errs, fmt.Errorf("stop %d before start %d", r.Stop, r.Start))
	}
	if r.StatusDetails != nil && r.Status == StatusPassed {
		errs = append(errs, fmt.Errorf("passed result carries status details"))
	}

	Walk(r.Steps, func(depth int, s *StepResult) {
		if s.Name == "" {
			errs = append(errs, fmt.Errorf("step at depth %d has no name", depth))
		}
		if !s.Status.Valid() {
			errs = append(errs, fmt.Errorf("step %q: status %q is not an allure status", s.Name, s.Status))
		}
		if s.Stop < s.Start {
			errs = append(errs, fmt.Errorf("step %q: stop %d before start %d", s.Name, s.Stop, s.Start))
		}
	})
	return errs
}
