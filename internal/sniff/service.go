package sniff

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/raf-andrew/sniffer/internal/model"
	"github.com/raf-andrew/sniffer/internal/walk"
)

// Service submits the configured scans to an orchestrator: once in manual
// mode, repeatedly on a schedule in timer mode. Completion is observed by
// polling Status, the same way any external caller would.
type Service struct {
	orch *Orchestrator
	cfg  model.Config
	poll time.Duration
}

func NewService(orch *Orchestrator, cfg model.Config) *Service {
	return &Service{
		orch: orch,
		cfg:  cfg,
		poll: 100 * time.Millisecond,
	}
}

// Run executes according to service.mode and blocks until done (manual) or
// until ctx is cancelled (timer).
func (s *Service) Run(ctx context.Context) error {
	switch s.cfg.Service.Mode {
	case model.ServiceModeManual:
		_, err := s.RunOnce(ctx)
		return err
	case model.ServiceModeTimer:
		return s.runTimer(ctx)
	default:
		return fmt.Errorf("unknown service mode %q", s.cfg.Service.Mode)
	}
}

// RunOnce submits every configured scan and waits for all of them to reach a
// terminal state, returning the final statuses.
func (s *Service) RunOnce(ctx context.Context) ([]JobStatus, error) {
	if len(s.cfg.Scans) == 0 {
		return nil, errors.New("no scans configured")
	}

	ids := make([]string, 0, len(s.cfg.Scans))
	for _, scan := range s.cfg.Scans {
		files, err := walk.Expand(ctx, scan.Paths)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", scan.Name, err)
		}
		if len(files) == 0 {
			slog.WarnContext(ctx, "scan matches no files", "scan", scan.Name)
			continue
		}

		fix := scan.Fix != nil && *scan.Fix
		id, err := s.orch.Submit(ctx, files, scan.Domains, scan.Priority, fix)
		if err != nil {
			return nil, fmt.Errorf("submitting scan %s: %w", scan.Name, err)
		}
		ids = append(ids, id)
	}
	return s.wait(ctx, ids)
}

func (s *Service) runTimer(ctx context.Context) error {
	scheduler, err := newScheduler(s.cfg.Service.Schedule, func() {
		if _, err := s.RunOnce(ctx); err != nil {
			slog.ErrorContext(ctx, "scheduled scan failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("timer mode failed: %w", err)
	}

	scheduler.Start()
	slog.InfoContext(ctx, "timer mode running")
	<-ctx.Done()
	return scheduler.Shutdown()
}

// wait polls Status until every submitted job is terminal.
func (s *Service) wait(ctx context.Context, ids []string) ([]JobStatus, error) {
	pending := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		pending[id] = struct{}{}
	}
	statuses := make(map[string]JobStatus, len(ids))

	ticker := time.NewTicker(s.poll)
	defer ticker.Stop()
	for len(pending) > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}

		for id := range pending {
			st, err := s.orch.Status(id)
			if err != nil {
				return nil, err
			}
			if st.Status.Terminal() {
				statuses[id] = st
				delete(pending, id)
			}
		}
	}

	out := make([]JobStatus, 0, len(ids))
	for _, id := range ids {
		if st, ok := statuses[id]; ok {
			out = append(out, st)
		}
	}
	return out, nil
}

// newScheduler builds the timer-mode gocron scheduler from the configured
// schedule, either a validated 5-field cron expression or a duration.
func newScheduler(cfg *model.TimerSchedule, startFunc func()) (gocron.Scheduler, error) {
	if cfg == nil {
		return nil, errors.New("service.schedule is required in timer mode")
	}

	var job gocron.JobDefinition
	switch {
	case cfg.Cron != "":
		interval, err := model.ParseCron(cfg.Cron)
		if err != nil {
			return nil, fmt.Errorf("parsing service.schedule.cron: %w", err)
		}
		slog.Debug("cron schedule parsed", "cron", cfg.Cron, "interval", interval)
		job = gocron.CronJob(cfg.Cron, false)
	case cfg.Duration != "":
		d, err := model.ParseDuration(cfg.Duration)
		if err != nil {
			return nil, fmt.Errorf("parsing service.schedule.duration: %w", err)
		}
		if d <= 0 {
			return nil, errors.New("service.schedule.duration must be positive")
		}
		job = gocron.DurationJob(d)
	default:
		return nil, errors.New("both cron and duration are empty")
	}

	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("initializing gocron scheduler: %w", err)
	}
	_, err = s.NewJob(job, gocron.NewTask(startFunc))
	if err != nil {
		return nil, fmt.Errorf("initializing gocron job: %w", err)
	}
	return s, nil
}
