package analysis

import (
	"fmt"
	"sort"
	"strings"

	"github.com/0ximu/mu/internal/storage"
)

// Pattern is one detected convention or architectural marker.
type Pattern struct {
	Name        string   `json:"pattern_name"`
	Category    string   `json:"category"`
	Description string   `json:"description"`
	Confidence  float64  `json:"confidence"`
	Occurrences int      `json:"occurrences"`
	Examples    []string `json:"examples,omitempty"`
}

// PatternReport is the result of a pattern scan.
type PatternReport struct {
	Patterns           []Pattern `json:"patterns"`
	NodesAnalyzed      int       `json:"nodes_analyzed"`
	CategoriesAnalyzed []string  `json:"categories_analyzed"`
}

// PatternCategories are the scan categories, in report order.
var PatternCategories = []string{
	"naming", "architecture", "testing", "imports", "error_handling",
	"api", "async", "logging", "security",
}

// ScanPatterns runs fixed SQL pattern scans over names and paths. category
// restricts the scan; empty means all categories.
func ScanPatterns(store *storage.MUbase, category string, includeExamples bool) (*PatternReport, error) {
	categories := PatternCategories
	if category != "" {
		normalized := strings.ReplaceAll(strings.ToLower(category), "-", "_")
		found := false
		for _, c := range PatternCategories {
			if c == normalized {
				categories = []string{c}
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("unknown pattern category %q", category)
		}
	}

	scanner := &patternScanner{store: store, includeExamples: includeExamples}

	report := &PatternReport{CategoriesAnalyzed: categories}
	if err := scanner.count("SELECT COUNT(*) FROM nodes", &report.NodesAnalyzed); err != nil {
		return nil, err
	}

	for _, cat := range categories {
		var patterns []Pattern
		var err error
		switch cat {
		case "naming":
			patterns, err = scanner.naming()
		case "architecture":
			patterns, err = scanner.architecture()
		case "testing":
			patterns, err = scanner.testing()
		case "imports":
			patterns, err = scanner.imports()
		case "error_handling":
			patterns, err = scanner.errorHandling()
		case "api":
			patterns, err = scanner.api()
		case "async":
			patterns, err = scanner.async()
		case "logging":
			patterns, err = scanner.logging()
		case "security":
			patterns, err = scanner.security()
		}
		if err != nil {
			return nil, fmt.Errorf("scan %s patterns: %w", cat, err)
		}
		report.Patterns = append(report.Patterns, patterns...)
	}

	sort.SliceStable(report.Patterns, func(i, j int) bool {
		return report.Patterns[i].Confidence > report.Patterns[j].Confidence
	})

	return report, nil
}

type patternScanner struct {
	store           *storage.MUbase
	includeExamples bool
}

func (s *patternScanner) count(sql string, out *int) error {
	result, err := s.store.Query(sql)
	if err != nil {
		return err
	}
	if len(result.Rows) > 0 {
		if n, ok := result.Rows[0][0].(int64); ok {
			*out = int(n)
		}
	}
	return nil
}

func (s *patternScanner) examples(sql string) []string {
	if !s.includeExamples {
		return nil
	}
	result, err := s.store.Query(sql)
	if err != nil {
		return nil
	}
	var examples []string
	for _, row := range result.Rows {
		if name, ok := row[0].(string); ok {
			examples = append(examples, name)
		}
	}
	return examples
}

func (s *patternScanner) naming() ([]Pattern, error) {
	var patterns []Pattern

	var snakeCount, totalFunctions int
	if err := s.count("SELECT COUNT(*) FROM nodes WHERE kind = 'function' AND simple_name LIKE '%\\_%' ESCAPE '\\' AND simple_name = LOWER(simple_name)", &snakeCount); err != nil {
		return nil, err
	}
	if err := s.count("SELECT COUNT(*) FROM nodes WHERE kind = 'function'", &totalFunctions); err != nil {
		return nil, err
	}
	if totalFunctions > 0 && snakeCount > 0 {
		patterns = append(patterns, Pattern{
			Name:        "snake_case_functions",
			Category:    "naming",
			Description: "Functions use snake_case naming convention",
			Confidence:  float64(snakeCount) / float64(totalFunctions),
			Occurrences: snakeCount,
			Examples:    s.examples("SELECT simple_name FROM nodes WHERE kind = 'function' AND simple_name LIKE '%\\_%' ESCAPE '\\' AND simple_name = LOWER(simple_name) LIMIT 5"),
		})
	}

	var pascalCount, totalClasses int
	if err := s.count("SELECT COUNT(*) FROM nodes WHERE kind = 'class' AND simple_name GLOB '[A-Z]*'", &pascalCount); err != nil {
		return nil, err
	}
	if err := s.count("SELECT COUNT(*) FROM nodes WHERE kind = 'class'", &totalClasses); err != nil {
		return nil, err
	}
	if totalClasses > 0 && pascalCount > 0 {
		patterns = append(patterns, Pattern{
			Name:        "pascal_case_classes",
			Category:    "naming",
			Description: "Classes use PascalCase naming convention",
			Confidence:  float64(pascalCount) / float64(totalClasses),
			Occurrences: pascalCount,
			Examples:    s.examples("SELECT simple_name FROM nodes WHERE kind = 'class' AND simple_name GLOB '[A-Z]*' LIMIT 5"),
		})
	}

	var serviceCount int
	if err := s.count("SELECT COUNT(*) FROM nodes WHERE kind = 'class' AND simple_name LIKE '%Service'", &serviceCount); err != nil {
		return nil, err
	}
	if serviceCount >= 2 {
		patterns = append(patterns, Pattern{
			Name:        "service_suffix",
			Category:    "naming",
			Description: "Service classes use 'Service' suffix",
			Confidence:  0.8,
			Occurrences: serviceCount,
			Examples:    s.examples("SELECT simple_name FROM nodes WHERE kind = 'class' AND simple_name LIKE '%Service' LIMIT 5"),
		})
	}

	return patterns, nil
}

func (s *patternScanner) architecture() ([]Pattern, error) {
	var patterns []Pattern

	markers := []struct {
		name        string
		description string
		confidence  float64
		where       string
	}{
		{"repository_pattern", "Uses repository pattern for data access", 0.9,
			"kind = 'class' AND (simple_name LIKE '%Repository' OR simple_name LIKE '%Repo')"},
		{"factory_pattern", "Uses factory pattern for object creation", 0.85,
			"(kind = 'class' OR kind = 'function') AND simple_name LIKE '%Factory%'"},
		{"handler_pattern", "Uses handler naming for request processing", 0.8,
			"(kind = 'class' OR kind = 'function') AND simple_name LIKE '%Handler%'"},
	}

	for _, m := range markers {
		var count int
		if err := s.count("SELECT COUNT(*) FROM nodes WHERE "+m.where, &count); err != nil {
			return nil, err
		}
		if count >= 2 {
			patterns = append(patterns, Pattern{
				Name:        m.name,
				Category:    "architecture",
				Description: m.description,
				Confidence:  m.confidence,
				Occurrences: count,
				Examples:    s.examples("SELECT simple_name FROM nodes WHERE " + m.where + " LIMIT 5"),
			})
		}
	}

	var moduleCount int
	if err := s.count("SELECT COUNT(*) FROM nodes WHERE kind = 'module'", &moduleCount); err != nil {
		return nil, err
	}
	if moduleCount >= 5 {
		patterns = append(patterns, Pattern{
			Name:        "modular_structure",
			Category:    "architecture",
			Description: "Codebase is split across many modules",
			Confidence:  min(float64(moduleCount)/20.0, 1.0),
			Occurrences: moduleCount,
		})
	}

	return patterns, nil
}

func (s *patternScanner) testing() ([]Pattern, error) {
	var patterns []Pattern

	var testFiles int
	if err := s.count("SELECT COUNT(DISTINCT file_path) FROM nodes WHERE file_path LIKE '%test%' OR file_path LIKE '%spec%'", &testFiles); err != nil {
		return nil, err
	}
	if testFiles >= 1 {
		patterns = append(patterns, Pattern{
			Name:        "dedicated_test_files",
			Category:    "testing",
			Description: "Tests live in dedicated test files",
			Confidence:  0.9,
			Occurrences: testFiles,
			Examples:    s.examples("SELECT DISTINCT file_path FROM nodes WHERE file_path LIKE '%test%' OR file_path LIKE '%spec%' LIMIT 5"),
		})
	}

	var testFunctions int
	if err := s.count("SELECT COUNT(*) FROM nodes WHERE kind = 'function' AND (simple_name LIKE 'test\\_%' ESCAPE '\\' OR simple_name LIKE '%\\_test' ESCAPE '\\')", &testFunctions); err != nil {
		return nil, err
	}
	if testFunctions >= 2 {
		patterns = append(patterns, Pattern{
			Name:        "test_function_naming",
			Category:    "testing",
			Description: "Test functions use test_ prefix or _test suffix",
			Confidence:  0.9,
			Occurrences: testFunctions,
			Examples:    s.examples("SELECT simple_name FROM nodes WHERE kind = 'function' AND (simple_name LIKE 'test\\_%' ESCAPE '\\' OR simple_name LIKE '%\\_test' ESCAPE '\\') LIMIT 5"),
		})
	}

	return patterns, nil
}

func (s *patternScanner) imports() ([]Pattern, error) {
	var patterns []Pattern

	var importEdges, moduleCount int
	if err := s.count("SELECT COUNT(*) FROM edges WHERE kind = 'imports'", &importEdges); err != nil {
		return nil, err
	}
	if err := s.count("SELECT COUNT(*) FROM nodes WHERE kind = 'module'", &moduleCount); err != nil {
		return nil, err
	}

	if moduleCount > 0 && importEdges > 0 {
		avg := float64(importEdges) / float64(moduleCount)
		switch {
		case avg < 5.0:
			patterns = append(patterns, Pattern{
				Name:        "minimal_imports",
				Category:    "imports",
				Description: "Modules have minimal import dependencies",
				Confidence:  1.0 - min(avg/10.0, 1.0),
				Occurrences: importEdges,
				Examples:    []string{fmt.Sprintf("%.1f imports/module avg", avg)},
			})
		case avg > 15.0:
			patterns = append(patterns, Pattern{
				Name:        "heavy_imports",
				Category:    "imports",
				Description: "Modules have many import dependencies",
				Confidence:  min(avg/30.0, 1.0),
				Occurrences: importEdges,
				Examples:    []string{fmt.Sprintf("%.1f imports/module avg", avg)},
			})
		}
	}

	return patterns, nil
}

func (s *patternScanner) errorHandling() ([]Pattern, error) {
	var patterns []Pattern

	var errorClasses int
	if err := s.count("SELECT COUNT(*) FROM nodes WHERE kind = 'class' AND (simple_name LIKE '%Error' OR simple_name LIKE '%Exception')", &errorClasses); err != nil {
		return nil, err
	}
	if errorClasses >= 2 {
		patterns = append(patterns, Pattern{
			Name:        "custom_exceptions",
			Category:    "error_handling",
			Description: "Defines custom error/exception classes",
			Confidence:  0.9,
			Occurrences: errorClasses,
			Examples:    s.examples("SELECT simple_name FROM nodes WHERE kind = 'class' AND (simple_name LIKE '%Error' OR simple_name LIKE '%Exception') LIMIT 5"),
		})
	}

	return patterns, nil
}

func (s *patternScanner) api() ([]Pattern, error) {
	var patterns []Pattern

	const restWhere = "kind = 'function' AND (simple_name LIKE 'get\\_%' ESCAPE '\\' OR simple_name LIKE 'post\\_%' ESCAPE '\\' OR simple_name LIKE 'create\\_%' ESCAPE '\\' OR simple_name LIKE 'update\\_%' ESCAPE '\\' OR simple_name LIKE 'delete\\_%' ESCAPE '\\')"
	var restFunctions int
	if err := s.count("SELECT COUNT(*) FROM nodes WHERE "+restWhere, &restFunctions); err != nil {
		return nil, err
	}
	if restFunctions >= 3 {
		patterns = append(patterns, Pattern{
			Name:        "rest_naming",
			Category:    "api",
			Description: "API functions follow REST-like naming (get_, create_, update_, delete_)",
			Confidence:  0.85,
			Occurrences: restFunctions,
			Examples:    s.examples("SELECT simple_name FROM nodes WHERE " + restWhere + " LIMIT 5"),
		})
	}

	return patterns, nil
}

func (s *patternScanner) async() ([]Pattern, error) {
	var patterns []Pattern

	var asyncFunctions int
	if err := s.count("SELECT COUNT(*) FROM nodes WHERE kind = 'function' AND (simple_name LIKE 'async\\_%' ESCAPE '\\' OR simple_name LIKE '%\\_async' ESCAPE '\\')", &asyncFunctions); err != nil {
		return nil, err
	}
	if asyncFunctions >= 2 {
		patterns = append(patterns, Pattern{
			Name:        "async_naming",
			Category:    "async",
			Description: "Async functions use async_ prefix/suffix",
			Confidence:  0.8,
			Occurrences: asyncFunctions,
			Examples:    s.examples("SELECT simple_name FROM nodes WHERE kind = 'function' AND (simple_name LIKE 'async\\_%' ESCAPE '\\' OR simple_name LIKE '%\\_async' ESCAPE '\\') LIMIT 5"),
		})
	}

	return patterns, nil
}

func (s *patternScanner) logging() ([]Pattern, error) {
	var patterns []Pattern

	const loggerWhere = "simple_name LIKE '%logger%' OR simple_name LIKE '%Logger%' OR simple_name LIKE '%logging%'"
	var loggerCount int
	if err := s.count("SELECT COUNT(*) FROM nodes WHERE "+loggerWhere, &loggerCount); err != nil {
		return nil, err
	}
	if loggerCount >= 1 {
		patterns = append(patterns, Pattern{
			Name:        "centralized_logging",
			Category:    "logging",
			Description: "Uses centralized logging infrastructure",
			Confidence:  0.85,
			Occurrences: loggerCount,
			Examples:    s.examples("SELECT simple_name FROM nodes WHERE " + loggerWhere + " LIMIT 5"),
		})
	}

	return patterns, nil
}

func (s *patternScanner) security() ([]Pattern, error) {
	var patterns []Pattern

	const sensitiveWhere = "simple_name LIKE '%password%' OR simple_name LIKE '%secret%' OR simple_name LIKE '%token%' OR simple_name LIKE '%credential%' OR simple_name LIKE '%auth%'"
	var sensitiveCount int
	if err := s.count("SELECT COUNT(*) FROM nodes WHERE "+sensitiveWhere, &sensitiveCount); err != nil {
		return nil, err
	}
	if sensitiveCount >= 1 {
		patterns = append(patterns, Pattern{
			Name:        "security_sensitive_names",
			Category:    "security",
			Description: "Entities handling credentials or authentication",
			Confidence:  0.75,
			Occurrences: sensitiveCount,
			Examples:    s.examples("SELECT simple_name FROM nodes WHERE " + sensitiveWhere + " LIMIT 5"),
		})
	}

	return patterns, nil
}
