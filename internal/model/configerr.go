package model

import (
	"log/slog"
	"regexp"
	"strings"

	cueerrors "cuelang.org/go/cue/errors"
)

// CueErrorDetail is one humanized config validation failure, suitable for
// structured logging before the process exits.
type CueErrorDetail struct {
	Path    string // e.g. sniffer.max_concurrent_jobs
	Code    string // missing_required | unknown_field | type_mismatch | conflict | invalid_value
	Message string
	Pos     CueErrorPosition
}

type CueErrorPosition struct {
	Filename string
	Line     int
	Column   int
}

func (c CueErrorDetail) Attr(name string) slog.Attr {
	return slog.Group(
		name,
		slog.String("code", c.Code),
		slog.String("path", c.Path),
		slog.String("message", c.Message),
		slog.String("file", c.Pos.Filename),
		slog.Int("line", c.Pos.Line),
	)
}

var (
	reIncomplete = regexp.MustCompile(`(?i)incomplete value`)
	reNotAllowed = regexp.MustCompile(`(?i)not allowed|unknown field`)
	reConflict   = regexp.MustCompile(`(?i)conflicting values|cannot unify|incompatible`)
	reMismatch   = regexp.MustCompile(`(?i)expected .* got .*`)
)

// CueErrDetails unwraps a cue validation error into per-field details. At most
// one detail per source position so repeated unification failures do not spam
// the log.
func CueErrDetails(err error) []CueErrorDetail {
	if err == nil {
		return nil
	}

	seen := make(map[CueErrorPosition]struct{})
	var out []CueErrorDetail
	for _, e := range cueerrors.Errors(err) {
		raw, _ := e.Msg()
		pos := CueErrorPosition{}
		if p := e.Position(); p.IsValid() {
			pos = CueErrorPosition{
				Filename: p.Filename(),
				Line:     p.Line(),
				Column:   p.Column(),
			}
		}
		if _, ok := seen[pos]; ok {
			continue
		}
		seen[pos] = struct{}{}

		out = append(out, CueErrorDetail{
			Path:    strings.Join(e.Path(), "."),
			Code:    classify(raw),
			Message: cueerrors.Details(e, nil),
			Pos:     pos,
		})
	}
	return out
}

func classify(raw string) string {
	switch {
	case reIncomplete.MatchString(raw):
		return "missing_required"
	case reNotAllowed.MatchString(raw):
		return "unknown_field"
	case reConflict.MatchString(raw):
		return "conflict"
	case reMismatch.MatchString(raw):
		return "type_mismatch"
	default:
		return "invalid_value"
	}
}
