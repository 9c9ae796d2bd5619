package server

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"

	"github.com/existflow/taskdeck/internal/logger"
)

// PurgeResult counts rows removed by PurgeExpired
type PurgeResult struct {
	Sessions   int64
	MagicLinks int64
}

// PurgeExpired deletes expired sessions and magic links that are used or expired
func (s *Server) PurgeExpired(ctx context.Context) (PurgeResult, error) {
	now := formatTime(s.now())

	var r PurgeResult
	res, err := s.exec(ctx, `DELETE FROM sessions WHERE expires_at < $1`, now)
	if err != nil {
		return r, fmt.Errorf("purge sessions: %w", err)
	}
	r.Sessions, _ = res.RowsAffected()

	res, err = s.exec(ctx, `DELETE FROM magic_links WHERE used = $1 OR expires_at < $2`, true, now)
	if err != nil {
		return r, fmt.Errorf("purge magic links: %w", err)
	}
	r.MagicLinks, _ = res.RowsAffected()

	return r, nil
}

// StartJanitor runs PurgeExpired on the configured cron schedule.
// An empty schedule leaves the janitor off.
func (s *Server) StartJanitor() error {
	if s.cfg.JanitorSchedule == "" || s.cron != nil {
		return nil
	}

	c := cron.New()
	_, err := c.AddFunc(s.cfg.JanitorSchedule, func() {
		r, err := s.PurgeExpired(context.Background())
		if err != nil {
			logger.Error("Janitor failed", logger.F("error", err))
			return
		}
		logger.Info("Janitor purged expired rows",
			logger.F("sessions", r.Sessions),
			logger.F("magic_links", r.MagicLinks))
	})
	if err != nil {
		return fmt.Errorf("invalid janitor schedule %q: %w", s.cfg.JanitorSchedule, err)
	}

	c.Start()
	s.cron = c
	logger.Info("Janitor started", logger.F("schedule", s.cfg.JanitorSchedule))
	return nil
}

// StopJanitor stops the janitor and waits for a running purge to finish
func (s *Server) StopJanitor() {
	if s.cron == nil {
		return
	}
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.cron = nil
}
