// Command report_gen merges `go test -json` output with the TestPurpose
// annotations found in *_test.go files and writes JSON and Markdown reports.
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// TestMetadata holds info parsed from Go source comments
type TestMetadata struct {
	Name       string `json:"name"`
	Purpose    string `json:"purpose,omitempty"`
	Scope      string `json:"scope,omitempty"`
	Security   string `json:"security,omitempty"`
	Expected   string `json:"expected,omitempty"`
	TestCaseID string `json:"test_case_id,omitempty"`
	Package    string `json:"package"`
	Category   string `json:"category"`
	Type       string `json:"type"` // UT or IT
}

// GoTestEvent represents a single event from 'go test -json'
type GoTestEvent struct {
	Action  string  `json:"Action"`
	Package string  `json:"Package"`
	Test    string  `json:"Test"`
	Elapsed float64 `json:"Elapsed"`
	Output  string  `json:"Output"`
}

// FinalTestResult is the merged result for a single test
type FinalTestResult struct {
	Name        string       `json:"name"`
	Status      string       `json:"status"`
	Elapsed     float64      `json:"elapsed_seconds"`
	Package     string       `json:"package"`
	Failure     string       `json:"failure_reason,omitempty"`
	Annotations TestMetadata `json:"annotations"`
}

// ReportSummary holds top-level stats
type ReportSummary struct {
	GeneratedAt time.Time         `json:"generated_at"`
	Total       int               `json:"total"`
	Passed      int               `json:"passed"`
	Failed      int               `json:"failed"`
	Skipped     int               `json:"skipped"`
	Results     []FinalTestResult `json:"results"`
}

// Test case ID prefixes and the area they cover
var categories = map[string]string{
	"PRM":  "Permissions",
	"RCX":  "Request Context",
	"AUTH": "Authentication",
	"MW":   "HTTP Middleware",
	"API":  "HTTP API",
	"RL":   "Rate Limiting",
	"STO":  "Storage",
	"AUD":  "Audit",
	"CFG":  "Configuration",
	"LOG":  "Observability",
	"MET":  "Observability",
	"TRC":  "Observability",
	"RPT":  "Tooling",
}

func main() {
	inputPath := flag.String("input", "", "Path to go test -json output file")
	outputJSON := flag.String("out-json", "", "Path for output JSON report")
	outputMD := flag.String("out-md", "", "Path for output Markdown report")
	title := flag.String("title", "Test Report", "Report title")
	root := flag.String("root", ".", "Repository root to scan for annotations")
	flag.Parse()

	if *inputPath == "" || *outputJSON == "" || *outputMD == "" {
		fmt.Println("Usage: report_gen -input <json_file> -out-json <out_json> -out-md <out_md>")
		os.Exit(1)
	}

	modulePath, err := readModulePath(filepath.Join(*root, "go.mod"))
	if err != nil {
		fmt.Printf("Error reading go.mod: %v\n", err)
		os.Exit(1)
	}

	meta, err := scanMetadata(*root, modulePath)
	if err != nil {
		fmt.Printf("Error scanning tests: %v\n", err)
		os.Exit(1)
	}

	f, err := os.Open(*inputPath)
	if err != nil {
		fmt.Printf("Error opening test output: %v\n", err)
		os.Exit(1)
	}
	results := parseTestOutput(f, meta)
	f.Close()

	summary := generateSummary(results, time.Now())

	if err := saveJSON(summary, *outputJSON); err != nil {
		fmt.Printf("Error writing JSON report: %v\n", err)
		os.Exit(1)
	}
	if err := os.WriteFile(*outputMD, []byte(renderMarkdown(summary, *title)), 0o644); err != nil {
		fmt.Printf("Error writing Markdown report: %v\n", err)
		os.Exit(1)
	}

	// Fail the CI gate when any test failed
	if summary.Failed > 0 {
		fmt.Printf("\nTest Reporting: %d tests failed. Exiting with error.\n", summary.Failed)
		os.Exit(1)
	}
}

func readModulePath(goMod string) (string, error) {
	data, err := os.ReadFile(goMod)
	if err != nil {
		return "", err
	}
	for _, line := range strings.Split(string(data), "\n") {
		if rest, ok := strings.CutPrefix(strings.TrimSpace(line), "module "); ok {
			return strings.TrimSpace(rest), nil
		}
	}
	return "", fmt.Errorf("no module directive in %s", goMod)
}

func scanMetadata(root, modulePath string) (map[string]TestMetadata, error) {
	meta := make(map[string]TestMetadata)
	fset := token.NewFileSet()

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if name := d.Name(); path != root && (strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_") || name == "vendor") {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(path, "_test.go") {
			return nil
		}

		node, err := parser.ParseFile(fset, path, nil, parser.ParseComments)
		if err != nil {
			return nil
		}

		rel, _ := filepath.Rel(root, filepath.Dir(path))
		pkgPath := modulePath
		if rel != "." {
			pkgPath = modulePath + "/" + filepath.ToSlash(rel)
		}
		testType := "UT"
		if hasIntegrationTag(node) {
			testType = "IT"
		}

		for _, decl := range node.Decls {
			fn, ok := decl.(*ast.FuncDecl)
			if !ok || fn.Recv != nil || !strings.HasPrefix(fn.Name.Name, "Test") {
				continue
			}
			m := parseAnnotations(fn.Doc)
			m.Name = fn.Name.Name
			m.Package = pkgPath
			m.Type = testType
			m.Category = categoryFor(m.TestCaseID)
			meta[pkgPath+"."+fn.Name.Name] = m
		}
		return nil
	})
	return meta, err
}

func hasIntegrationTag(f *ast.File) bool {
	for _, cg := range f.Comments {
		if cg.Pos() > f.Package {
			break
		}
		for _, c := range cg.List {
			if strings.HasPrefix(c.Text, "//go:build") && strings.Contains(c.Text, "integration") {
				return true
			}
		}
	}
	return false
}

func parseAnnotations(doc *ast.CommentGroup) TestMetadata {
	var m TestMetadata
	if doc == nil {
		return m
	}
	fields := map[string]*string{
		"TestPurpose:":  &m.Purpose,
		"Scope:":        &m.Scope,
		"Security:":     &m.Security,
		"Expected:":     &m.Expected,
		"Test Case ID:": &m.TestCaseID,
	}
	for _, line := range doc.List {
		text := strings.TrimSpace(strings.TrimPrefix(line.Text, "//"))
		for prefix, dst := range fields {
			if rest, ok := strings.CutPrefix(text, prefix); ok {
				*dst = strings.TrimSpace(rest)
			}
		}
	}
	return m
}

func categoryFor(testCaseID string) string {
	prefix, _, _ := strings.Cut(testCaseID, "-")
	if c, ok := categories[prefix]; ok {
		return c
	}
	return "Other"
}

func parseTestOutput(r io.Reader, meta map[string]TestMetadata) []FinalTestResult {
	states := make(map[string]*FinalTestResult)
	for key, m := range meta {
		states[key] = &FinalTestResult{Name: m.Name, Package: m.Package, Status: "not run", Annotations: m}
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		var event GoTestEvent
		if err := json.Unmarshal(scanner.Bytes(), &event); err != nil || event.Test == "" {
			continue
		}

		key := event.Package + "." + event.Test
		res, ok := states[key]
		if !ok {
			parent, _, _ := strings.Cut(event.Test, "/")
			annotations := TestMetadata{Name: event.Test, Package: event.Package, Type: "UT", Category: "Other"}
			if pm, found := meta[event.Package+"."+parent]; found {
				annotations = pm
				annotations.Name = event.Test
			}
			res = &FinalTestResult{Name: event.Test, Package: event.Package, Annotations: annotations}
			states[key] = res
		}

		switch event.Action {
		case "pass", "fail":
			res.Status = event.Action
			res.Elapsed = event.Elapsed
		case "skip":
			res.Status = "skip"
		case "output":
			res.Failure += event.Output
		}
	}

	list := make([]FinalTestResult, 0, len(states))
	for _, v := range states {
		if v.Status != "fail" {
			v.Failure = ""
		}
		list = append(list, *v)
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].Package != list[j].Package {
			return list[i].Package < list[j].Package
		}
		return list[i].Name < list[j].Name
	})
	return list
}

func generateSummary(results []FinalTestResult, now time.Time) ReportSummary {
	summary := ReportSummary{GeneratedAt: now, Results: results}
	for _, r := range results {
		summary.Total++
		switch r.Status {
		case "pass":
			summary.Passed++
		case "fail":
			summary.Failed++
		case "skip":
			summary.Skipped++
		}
	}
	return summary
}

func saveJSON(summary ReportSummary, path string) error {
	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func renderMarkdown(summary ReportSummary, title string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# Eventboard %s\n\n", title)
	fmt.Fprintf(&sb, "**Generated:** %s  \n", summary.GeneratedAt.Format("2006-01-02 15:04:05 MST"))

	status := "PASSED"
	if summary.Failed > 0 {
		status = "FAILED"
	}
	fmt.Fprintf(&sb, "**Status:** %s  \n", status)
	fmt.Fprintf(&sb, "**Total:** %d | **Passed:** %d | **Failed:** %d | **Skipped:** %d\n\n",
		summary.Total, summary.Passed, summary.Failed, summary.Skipped)

	byCategory := make(map[string][]FinalTestResult)
	var names []string
	for _, r := range summary.Results {
		c := r.Annotations.Category
		if _, seen := byCategory[c]; !seen {
			names = append(names, c)
		}
		byCategory[c] = append(byCategory[c], r)
	}
	sort.Strings(names)

	for _, c := range names {
		fmt.Fprintf(&sb, "## %s\n\n", c)
		sb.WriteString("| ID | Test | Type | Status | Purpose |\n")
		sb.WriteString("|---|---|---|---|---|\n")
		for _, r := range byCategory[c] {
			fmt.Fprintf(&sb, "| %s | `%s` | %s | %s | %s |\n",
				r.Annotations.TestCaseID, r.Name, r.Annotations.Type, r.Status,
				strings.ReplaceAll(r.Annotations.Purpose, "|", "\\|"))
		}
		sb.WriteString("\n")
	}

	if summary.Failed > 0 {
		sb.WriteString("## Failures\n\n")
		for _, r := range summary.Results {
			if r.Status == "fail" {
				fmt.Fprintf(&sb, "### %s\n\n```\n%s```\n\n", r.Name, r.Failure)
			}
		}
	}
	return sb.String()
}
