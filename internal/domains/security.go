package domains

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/zricethezav/gitleaks/v8/detect"

	"github.com/raf-andrew/sniffer/internal/model"
)

// Security detects leaked credentials and secrets using the gitleaks default
// ruleset. The detector is stateful and non-reentrant; the domain lock keeps
// it single-caller.
type Security struct {
	detector *detect.Detector
}

func NewSecurity() (*Security, error) {
	d, err := detect.NewDetectorDefaultConfig()
	if err != nil {
		return nil, fmt.Errorf("creating gitleaks detector: %w", err)
	}
	return &Security{detector: d}, nil
}

func (s *Security) Name() string { return model.DomainSecurity }

func (s *Security) SniffFile(ctx context.Context, path string) (model.Result, error) {
	if err := ctx.Err(); err != nil {
		return model.Result{}, err
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return model.Result{}, fmt.Errorf("reading %s: %w", path, err)
	}

	var issues []model.Issue
	for _, finding := range s.detector.DetectString(string(b)) {
		issues = append(issues, model.Issue{
			Severity:    model.SeverityCritical,
			Category:    finding.RuleID,
			Description: finding.Description,
			Line:        finding.StartLine,
		})
	}

	return model.Result{
		Path:    path,
		Domain:  s.Name(),
		Outcome: model.OutcomeSuccess,
		Issues:  issues,
		Metrics: map[string]float64{
			"bytes":    float64(len(b)),
			"findings": float64(len(issues)),
		},
		Timestamp: time.Now().UTC(),
	}, nil
}

func (s *Security) AnalyzeResult(_ context.Context, path string, res model.Result) (model.Analysis, error) {
	return summarize(path, s.Name(), res), nil
}

// FixIssues never rewrites files: a leaked secret needs rotation, not an
// automated edit. All issues are reported back as remaining.
func (s *Security) FixIssues(_ context.Context, path string, issues []model.Issue) (model.FixResult, error) {
	return model.FixResult{
		Path:      path,
		Domain:    s.Name(),
		Remaining: len(issues),
	}, nil
}
