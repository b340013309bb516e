package domains

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/raf-andrew/sniffer/internal/model"
)

// matches top-level definitions across the languages this is pointed at
var definitionRx = regexp.MustCompile(`^\s*(?:export\s+)?(func|def|class|function|public function|private function|protected function)\s+([A-Za-z_][A-Za-z0-9_]*)`)

// Docs flags functions and classes with no adjacent documentation comment.
type Docs struct{}

func NewDocs() *Docs { return &Docs{} }

func (d *Docs) Name() string { return model.DomainDocs }

func (d *Docs) SniffFile(ctx context.Context, path string) (model.Result, error) {
	if err := ctx.Err(); err != nil {
		return model.Result{}, err
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return model.Result{}, fmt.Errorf("reading %s: %w", path, err)
	}

	lines := strings.Split(string(b), "\n")
	var issues []model.Issue
	var definitions int
	for i, line := range lines {
		m := definitionRx.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		definitions++
		if i > 0 && isComment(lines[i-1]) {
			continue
		}
		issues = append(issues, model.Issue{
			Severity:    model.SeverityLow,
			Category:    "missing-doc",
			Description: fmt.Sprintf("%s %s has no documentation comment", m[1], m[2]),
			Line:        i + 1,
		})
	}

	metrics := map[string]float64{
		"definitions":  float64(definitions),
		"undocumented": float64(len(issues)),
	}
	if definitions > 0 {
		metrics["coverage"] = float64(definitions-len(issues)) / float64(definitions)
	}

	return model.Result{
		Path:      path,
		Domain:    d.Name(),
		Outcome:   model.OutcomeSuccess,
		Issues:    issues,
		Metrics:   metrics,
		Timestamp: time.Now().UTC(),
	}, nil
}

func isComment(line string) bool {
	trimmed := strings.TrimSpace(line)
	for _, prefix := range []string{"//", "#", "*", "/*", "*/", `"""`, "'''"} {
		if strings.HasPrefix(trimmed, prefix) {
			return true
		}
	}
	return false
}

func (d *Docs) AnalyzeResult(_ context.Context, path string, res model.Result) (model.Analysis, error) {
	return summarize(path, d.Name(), res), nil
}

// FixIssues cannot write documentation for the author; everything stays
// remaining.
func (d *Docs) FixIssues(_ context.Context, path string, issues []model.Issue) (model.FixResult, error) {
	return model.FixResult{
		Path:      path,
		Domain:    d.Name(),
		Remaining: len(issues),
	}, nil
}
