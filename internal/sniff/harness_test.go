package sniff_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/raf-andrew/sniffer/internal/model"
)

var errSecurityDown = errors.New("security scanner exploded")

// tracker records lock-held intervals observed from inside handlers so tests
// can assert the no-overlap properties. Shared by all fake handlers of one
// test.
type tracker struct {
	mx         sync.Mutex
	perPath    map[string]int
	perDomain  map[string]int
	violations []string
	order      []string // "domain:path" in invocation order
}

func newTracker() *tracker {
	return &tracker{
		perPath:   make(map[string]int),
		perDomain: make(map[string]int),
	}
}

func (tr *tracker) enter(domain, path string) {
	tr.mx.Lock()
	defer tr.mx.Unlock()
	tr.perPath[path]++
	tr.perDomain[domain]++
	if tr.perPath[path] > 1 {
		tr.violations = append(tr.violations, fmt.Sprintf("overlapping file access on %s", path))
	}
	if tr.perDomain[domain] > 1 {
		tr.violations = append(tr.violations, fmt.Sprintf("overlapping domain access on %s", domain))
	}
	tr.order = append(tr.order, domain+":"+path)
}

func (tr *tracker) leave(domain, path string) {
	tr.mx.Lock()
	defer tr.mx.Unlock()
	tr.perPath[path]--
	tr.perDomain[domain]--
}

func (tr *tracker) Violations() []string {
	tr.mx.Lock()
	defer tr.mx.Unlock()
	return append([]string(nil), tr.violations...)
}

func (tr *tracker) Order() []string {
	tr.mx.Lock()
	defer tr.mx.Unlock()
	return append([]string(nil), tr.order...)
}

// fakeHandler is a scriptable domain handler. Zero value sniffs everything
// successfully with no issues.
type fakeHandler struct {
	name    string
	tracker *tracker

	mx       sync.Mutex
	sniffed  map[string]int // path -> SniffFile invocations
	fixed    map[string]int // path -> FixIssues invocations
	failOn   map[string]error
	panicOn  map[string]bool
	issuesOn map[string][]model.Issue
	gate     chan struct{} // when set, SniffFile blocks until closed
	delay    time.Duration
}

func newFakeHandler(name string, tr *tracker) *fakeHandler {
	return &fakeHandler{
		name:     name,
		tracker:  tr,
		sniffed:  make(map[string]int),
		fixed:    make(map[string]int),
		failOn:   make(map[string]error),
		panicOn:  make(map[string]bool),
		issuesOn: make(map[string][]model.Issue),
	}
}

func (h *fakeHandler) Name() string { return h.name }

func (h *fakeHandler) SniffFile(ctx context.Context, path string) (model.Result, error) {
	if h.tracker != nil {
		h.tracker.enter(h.name, path)
		defer h.tracker.leave(h.name, path)
	}

	h.mx.Lock()
	h.sniffed[path]++
	gate := h.gate
	failErr := h.failOn[path]
	doPanic := h.panicOn[path]
	issues := h.issuesOn[path]
	delay := h.delay
	h.mx.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return model.Result{}, ctx.Err()
		}
	}
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return model.Result{}, ctx.Err()
		}
	}
	if doPanic {
		panic("scripted handler panic on " + path)
	}
	if failErr != nil {
		return model.Result{}, failErr
	}

	return model.Result{
		Path:      path,
		Domain:    h.name,
		Outcome:   model.OutcomeSuccess,
		Issues:    issues,
		Timestamp: time.Now().UTC(),
	}, nil
}

func (h *fakeHandler) AnalyzeResult(_ context.Context, path string, res model.Result) (model.Analysis, error) {
	return model.Analysis{Path: path, Domain: h.name, Total: len(res.Issues)}, nil
}

func (h *fakeHandler) FixIssues(_ context.Context, path string, issues []model.Issue) (model.FixResult, error) {
	h.mx.Lock()
	h.fixed[path]++
	h.mx.Unlock()
	return model.FixResult{Path: path, Domain: h.name, Applied: len(issues)}, nil
}

func (h *fakeHandler) sniffCount(path string) int {
	h.mx.Lock()
	defer h.mx.Unlock()
	return h.sniffed[path]
}

func (h *fakeHandler) fixCount(path string) int {
	h.mx.Lock()
	defer h.mx.Unlock()
	return h.fixed[path]
}

func fixableIssue() model.Issue {
	return model.Issue{
		Severity:    model.SeverityLow,
		Category:    "trailing-whitespace",
		Description: "trailing whitespace",
		Line:        1,
		Fix:         &model.Fix{Description: "remove trailing whitespace"},
	}
}
