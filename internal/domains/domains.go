// Package domains defines the handler contract the scheduler drives and the
// built-in handlers shipped with the binary.
//
// Handlers are shared, mutable and non-reentrant. The scheduler's domain lock
// guarantees at most one in-flight call per handler system-wide; handlers rely
// on that and do no locking of their own.
package domains

import (
	"context"
	"fmt"
	"sort"

	"github.com/raf-andrew/sniffer/internal/model"
)

// Handler performs the per-file analysis for one domain.
type Handler interface {
	// Name returns the domain name the handler is registered under.
	Name() string

	// SniffFile analyzes one file. Detection problems (unreadable file,
	// malformed content) are reported via the error; the scheduler records
	// them as a failed Result and keeps the job going.
	SniffFile(ctx context.Context, path string) (model.Result, error)

	// AnalyzeResult summarizes a result for reporting collaborators. The
	// scheduler itself never consumes the Analysis.
	AnalyzeResult(ctx context.Context, path string, res model.Result) (model.Analysis, error)

	// FixIssues applies the fix descriptors of the given issues to the file.
	// Invoked only for jobs submitted with the auto-fix flag.
	FixIssues(ctx context.Context, path string, issues []model.Issue) (model.FixResult, error)
}

// Registry maps domain names to handlers. Built once at startup; no runtime
// module loading.
type Registry struct {
	handlers map[string]Handler
}

func NewRegistry(handlers ...Handler) *Registry {
	r := &Registry{handlers: make(map[string]Handler, len(handlers))}
	for _, h := range handlers {
		r.handlers[h.Name()] = h
	}
	return r
}

// BuiltIn constructs the registry of built-in handlers for the enabled
// domains.
func BuiltIn(enabled []string) (*Registry, error) {
	var handlers []Handler
	for _, name := range enabled {
		switch name {
		case model.DomainSecurity:
			h, err := NewSecurity()
			if err != nil {
				return nil, fmt.Errorf("initializing security handler: %w", err)
			}
			handlers = append(handlers, h)
		case model.DomainStyle:
			handlers = append(handlers, NewStyle())
		case model.DomainDocs:
			handlers = append(handlers, NewDocs())
		default:
			return nil, fmt.Errorf("no built-in handler for domain %q", name)
		}
	}
	return NewRegistry(handlers...), nil
}

func (r *Registry) Get(name string) (Handler, bool) {
	h, ok := r.handlers[name]
	return h, ok
}

func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// summarize is the AnalyzeResult implementation shared by the built-in
// handlers.
func summarize(path, domain string, res model.Result) model.Analysis {
	a := model.Analysis{
		Path:   path,
		Domain: domain,
		Total:  len(res.Issues),
	}
	for _, issue := range res.Issues {
		if a.BySeverity == nil {
			a.BySeverity = make(map[model.Severity]int)
		}
		a.BySeverity[issue.Severity]++
		if issue.Fixable() {
			a.Fixable++
		}
	}
	return a
}
