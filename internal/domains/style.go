package domains

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/raf-andrew/sniffer/internal/model"
)

const maxLineLength = 120

const (
	categoryLineLength     = "line-length"
	categoryTrailingWS     = "trailing-whitespace"
	categoryNoFinalNewline = "no-final-newline"
)

// Style runs line-level formatting checks. Trailing whitespace and a missing
// final newline carry fix descriptors; overlong lines do not.
type Style struct{}

func NewStyle() *Style { return &Style{} }

func (s *Style) Name() string { return model.DomainStyle }

func (s *Style) SniffFile(ctx context.Context, path string) (model.Result, error) {
	if err := ctx.Err(); err != nil {
		return model.Result{}, err
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return model.Result{}, fmt.Errorf("reading %s: %w", path, err)
	}

	content := string(b)
	lines := strings.Split(content, "\n")

	var issues []model.Issue
	for i, line := range lines {
		if len(line) > maxLineLength {
			issues = append(issues, model.Issue{
				Severity:    model.SeverityMedium,
				Category:    categoryLineLength,
				Description: fmt.Sprintf("line is %d characters, limit is %d", len(line), maxLineLength),
				Line:        i + 1,
			})
		}
		if trimmed := strings.TrimRight(line, " \t"); trimmed != line {
			issues = append(issues, model.Issue{
				Severity:    model.SeverityLow,
				Category:    categoryTrailingWS,
				Description: "trailing whitespace",
				Line:        i + 1,
				Fix:         &model.Fix{Description: "remove trailing whitespace"},
			})
		}
	}
	if len(content) > 0 && !strings.HasSuffix(content, "\n") {
		issues = append(issues, model.Issue{
			Severity:    model.SeverityInfo,
			Category:    categoryNoFinalNewline,
			Description: "file does not end with a newline",
			Line:        len(lines),
			Fix:         &model.Fix{Description: "append final newline"},
		})
	}

	return model.Result{
		Path:    path,
		Domain:  s.Name(),
		Outcome: model.OutcomeSuccess,
		Issues:  issues,
		Metrics: map[string]float64{
			"lines":  float64(len(lines)),
			"issues": float64(len(issues)),
		},
		Timestamp: time.Now().UTC(),
	}, nil
}

func (s *Style) AnalyzeResult(_ context.Context, path string, res model.Result) (model.Analysis, error) {
	return summarize(path, s.Name(), res), nil
}

// FixIssues rewrites the file, applying the fixable categories: trailing
// whitespace stripped on the flagged lines, final newline appended. The file
// lock held by the calling executor keeps other jobs away from the path while
// it is rewritten.
func (s *Style) FixIssues(ctx context.Context, path string, issues []model.Issue) (model.FixResult, error) {
	res := model.FixResult{Path: path, Domain: s.Name()}
	if err := ctx.Err(); err != nil {
		return res, err
	}

	fixLines := make(map[int]bool)
	var addNewline bool
	for _, issue := range issues {
		switch issue.Category {
		case categoryTrailingWS:
			fixLines[issue.Line] = true
		case categoryNoFinalNewline:
			addNewline = true
		default:
			res.Remaining++
		}
	}
	if len(fixLines) == 0 && !addNewline {
		return res, nil
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return res, fmt.Errorf("reading %s: %w", path, err)
	}
	info, err := os.Stat(path)
	if err != nil {
		return res, fmt.Errorf("stating %s: %w", path, err)
	}

	lines := strings.Split(string(b), "\n")
	for n := range fixLines {
		if n < 1 || n > len(lines) {
			continue
		}
		lines[n-1] = strings.TrimRight(lines[n-1], " \t")
		res.Applied++
	}
	out := strings.Join(lines, "\n")
	if addNewline && !strings.HasSuffix(out, "\n") {
		out += "\n"
		res.Applied++
	}

	if err := os.WriteFile(path, []byte(out), info.Mode().Perm()); err != nil {
		return res, fmt.Errorf("writing %s: %w", path, err)
	}
	return res, nil
}
