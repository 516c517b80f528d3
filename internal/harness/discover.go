package harness

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ScenarioNotFoundError is returned when a scenario directory holds no
// scenario matching the filter.
type ScenarioNotFoundError struct {
	Dir    string
	Filter string
}

// Error implements the error interface.
func (e *ScenarioNotFoundError) Error() string {
	if e.Filter != "" {
		return fmt.Sprintf("no scenarios matching %q in %s", e.Filter, e.Dir)
	}
	return fmt.Sprintf("no scenarios in %s", e.Dir)
}

// FindScenarios returns the scenario files directly under dir, sorted by
// path. filter is an optional glob matched against the file name without
// extension.
func FindScenarios(dir, filter string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read scenarios directory: %w", err)
	}

	var out []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := filepath.Ext(e.Name())
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		if filter != "" {
			ok, err := filepath.Match(filter, strings.TrimSuffix(e.Name(), ext))
			if err != nil {
				return nil, fmt.Errorf("invalid filter %q: %w", filter, err)
			}
			if !ok {
				continue
			}
		}
		out = append(out, filepath.Join(dir, e.Name()))
	}
	if len(out) == 0 {
		return nil, &ScenarioNotFoundError{Dir: dir, Filter: filter}
	}
	sort.Strings(out)
	return out, nil
}
