package model

import (
	"sort"
	"time"
)

// Outcome of one (file, domain) handler invocation.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
	OutcomePartial Outcome = "partial"
)

// Severity of a single issue.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
	SeverityInfo     Severity = "info"
)

// Fix describes an automated remediation a handler can apply to an issue.
type Fix struct {
	Description string `json:"description"`
}

// Issue is a single finding reported by a domain handler. Immutable.
type Issue struct {
	Severity    Severity `json:"severity"`
	Category    string   `json:"category"`
	Description string   `json:"description"`
	Line        int      `json:"line,omitempty"`
	Fix         *Fix     `json:"fix,omitempty"`
}

// Fixable reports whether the issue carries a fix descriptor.
func (i Issue) Fixable() bool { return i.Fix != nil }

// Result is the outcome of one (file, domain) analysis. Created once by a
// handler invocation (or synthesized for a failure) and never mutated.
type Result struct {
	Path      string             `json:"path"`
	Domain    string             `json:"domain"`
	Outcome   Outcome            `json:"outcome"`
	Issues    []Issue            `json:"issues,omitempty"`
	Metrics   map[string]float64 `json:"metrics,omitempty"`
	Error     string             `json:"error,omitempty"`
	Timestamp time.Time          `json:"timestamp"`
	Cached    bool               `json:"cached,omitempty"`
}

func (r Result) Key() ResultKey { return ResultKey{Path: r.Path, Domain: r.Domain} }

func (r Result) Failed() bool { return r.Outcome == OutcomeFailure }

// FixableIssues returns the subset of issues carrying a fix descriptor.
func (r Result) FixableIssues() []Issue {
	var out []Issue
	for _, issue := range r.Issues {
		if issue.Fixable() {
			out = append(out, issue)
		}
	}
	return out
}

// FailedResult synthesizes the failure Result recorded when a handler call
// errors, panics or times out. The error becomes data, it is never propagated
// to abort the job.
func FailedResult(path, domain string, err error) Result {
	res := Result{
		Path:      path,
		Domain:    domain,
		Outcome:   OutcomeFailure,
		Timestamp: time.Now().UTC(),
	}
	if err != nil {
		res.Error = err.Error()
	}
	return res
}

func sortResults(results []Result) {
	sort.Slice(results, func(i, j int) bool {
		if results[i].Domain != results[j].Domain {
			return results[i].Domain < results[j].Domain
		}
		return results[i].Path < results[j].Path
	})
}

// Analysis summarizes one Result for reporting collaborators.
type Analysis struct {
	Path       string           `json:"path"`
	Domain     string           `json:"domain"`
	Total      int              `json:"total"`
	BySeverity map[Severity]int `json:"by_severity,omitempty"`
	Fixable    int              `json:"fixable"`
}

// FixResult reports the outcome of one auto-fix pass.
type FixResult struct {
	Path      string `json:"path"`
	Domain    string `json:"domain"`
	Applied   int    `json:"applied"`
	Remaining int    `json:"remaining"`
}
