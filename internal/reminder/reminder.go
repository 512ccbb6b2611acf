// Package reminder sends membership renewal reminders to members whose plan ends in two
// days.
package reminder

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/BTreeMap/GymBro/internal/metrics"
	"github.com/BTreeMap/GymBro/internal/models"
)

const (
	// JobName identifies the sweep in the scheduler
	JobName = "membership-reminders"
	// DaysBeforeEnd is how many days before the end date the reminder goes out
	DaysBeforeEnd = 2
	// DefaultSendTimeout bounds one reminder send
	DefaultSendTimeout = 30 * time.Second
)

// Directory lists the memberships eligible for reminders.
type Directory interface {
	ListActive(ctx context.Context) ([]models.Membership, error)
}

// Sender delivers the reminder text.
type Sender interface {
	SendText(ctx context.Context, to, body, replyTo string) error
}

// Scheduler registers the periodic sweep. *scheduler.Scheduler implements it.
type Scheduler interface {
	AddJob(name, expr string, task func()) error
}

// Result summarizes one sweep.
type Result struct {
	Checked int
	Sent    int
	Skipped int
	Failed  int
}

// Opts holds configuration for the sweeper.
type Opts struct {
	Location    *time.Location
	Now         func() time.Time
	SendTimeout time.Duration
}

// Option configures the sweeper.
type Option func(*Opts)

// WithLocation sets the zone whose midnight delimits days.
func WithLocation(loc *time.Location) Option {
	return func(o *Opts) { o.Location = loc }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *Opts) { o.Now = now }
}

// WithSendTimeout bounds each send.
func WithSendTimeout(d time.Duration) Option {
	return func(o *Opts) { o.SendTimeout = d }
}

// Sweeper scans the membership directory and sends renewal reminders.
type Sweeper struct {
	directory Directory
	sender    Sender
	cfg       Opts

	mu sync.Mutex // one sweep at a time
}

// NewSweeper creates a sweeper.
func NewSweeper(directory Directory, sender Sender, opts ...Option) *Sweeper {
	cfg := Opts{Now: time.Now, SendTimeout: DefaultSendTimeout}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Location == nil {
		cfg.Location = models.LoadLocation("")
	}
	return &Sweeper{directory: directory, sender: sender, cfg: cfg}
}

// Message renders the reminder for a member.
func Message(name, endDate string) string {
	return fmt.Sprintf("🔔 ¡Hola %s! Tu membresía en GymBro vence en %d días (%s).\n\n"+
		"Renuévala a tiempo para seguir entrenando sin interrupciones 💪. "+
		"Escríbenos si tienes alguna pregunta.", name, DaysBeforeEnd, endDate)
}

// Run performs one sweep. A failed send is counted and the sweep continues.
func (s *Sweeper) Run(ctx context.Context) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var res Result
	members, err := s.directory.ListActive(ctx)
	if err != nil {
		slog.Error("Sweeper.Run: failed to list active memberships", "error", err)
		return res, fmt.Errorf("list active memberships: %w", err)
	}

	today := s.cfg.Now().In(s.cfg.Location)
	for _, m := range members {
		res.Checked++
		phone, name := strings.TrimSpace(m.Phone), strings.TrimSpace(m.Name)
		if phone == "" || name == "" || strings.TrimSpace(m.EndDate) == "" {
			slog.Warn("Sweeper.Run: skipping incomplete membership", "idNumber", m.IDNumber,
				"has_phone", phone != "", "has_name", name != "", "has_end_date", m.EndDate != "")
			res.Skipped++
			metrics.Reminders.WithLabelValues("skipped").Inc()
			continue
		}
		end, err := models.ParseMembershipDate(m.EndDate, s.cfg.Location)
		if err != nil {
			slog.Warn("Sweeper.Run: skipping membership with invalid end date", "idNumber", m.IDNumber, "end_date", m.EndDate)
			res.Skipped++
			metrics.Reminders.WithLabelValues("skipped").Inc()
			continue
		}
		if models.DaysUntil(today, end, s.cfg.Location) != DaysBeforeEnd {
			continue
		}

		sendCtx, cancel := context.WithTimeout(ctx, s.cfg.SendTimeout)
		err = s.sender.SendText(sendCtx, phone, Message(name, m.EndDate), "")
		cancel()
		if err != nil {
			slog.Error("Sweeper.Run: reminder failed", "phone", phone, "error", err)
			res.Failed++
			metrics.Reminders.WithLabelValues("failed").Inc()
			continue
		}
		res.Sent++
		metrics.Reminders.WithLabelValues("sent").Inc()
		slog.Info("Sweeper.Run: reminder sent", "phone", phone, "end_date", m.EndDate)
	}

	slog.Info("Sweeper.Run: sweep finished", "checked", res.Checked, "sent", res.Sent, "skipped", res.Skipped, "failed", res.Failed)
	return res, nil
}

// Start runs one sweep in the background right away and schedules the rest with expr
// (for example "@every 24h"). Sweeps stop when ctx is cancelled.
func (s *Sweeper) Start(ctx context.Context, sched Scheduler, expr string) error {
	sweep := func() {
		if ctx.Err() != nil {
			return
		}
		if _, err := s.Run(ctx); err != nil {
			slog.Error("Sweeper.Start: sweep failed", "error", err)
		}
	}
	if err := sched.AddJob(JobName, expr, sweep); err != nil {
		return err
	}
	go sweep()
	return nil
}
