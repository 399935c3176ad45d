package app

import (
	"time"

	"supertictactoe/internal/config"
	"supertictactoe/internal/domain"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// queueReaper is what the reaper needs from the matchmaking queue.
type queueReaper interface {
	Reap(now time.Time) (expired, cleared int)
}

// Reaper periodically destroys matches nobody will come back to and trims
// stale matchmaking state. It runs on its own cron scheduler so sweep
// cadence is independent of traffic.
type Reaper struct {
	service *Service
	queue   queueReaper
	cron    *cron.Cron
	log     *zap.Logger
	now     func() time.Time

	matchSpec         string
	queueSpec         string
	terminalRetention time.Duration
	idleGrace         time.Duration
}

// NewReaper builds a reaper from the service and, optionally, a matchmaking
// queue. A nil queue skips the queue sweep.
func NewReaper(service *Service, queue queueReaper, cfg config.Config, log *zap.Logger) *Reaper {
	if log == nil {
		log = zap.NewNop()
	}
	return &Reaper{
		service:           service,
		queue:             queue,
		cron:              cron.New(),
		log:               log,
		now:               time.Now,
		matchSpec:         cfg.MatchReapSpec,
		queueSpec:         cfg.QueueReapSpec,
		terminalRetention: cfg.TerminalRetention(),
		idleGrace:         cfg.IdleGrace(),
	}
}

// Start schedules the sweeps and launches the scheduler.
func (r *Reaper) Start() error {
	if _, err := r.cron.AddFunc(r.matchSpec, r.SweepMatches); err != nil {
		return err
	}
	if r.queue != nil {
		if _, err := r.cron.AddFunc(r.queueSpec, r.SweepQueue); err != nil {
			return err
		}
	}
	r.cron.Start()
	return nil
}

// Stop halts the scheduler and waits for a running sweep to finish.
func (r *Reaper) Stop() {
	<-r.cron.Stop().Done()
}

// SweepMatches destroys every match that is either finished and past the
// retention window or has sat without human players for the idle grace.
// Matches that just finished are kept around so late watchers still see the
// final board.
func (r *Reaper) SweepMatches() {
	now := r.now()
	var doomed []string

	r.service.Registry().Range(func(m *Match) bool {
		if r.shouldReap(m, now) {
			doomed = append(doomed, m.ID())
		}
		return true
	})

	for _, id := range doomed {
		r.service.Registry().Remove(id)
		r.service.closeTransport(id)
	}

	if len(doomed) > 0 {
		r.log.Info("reaped stale matches", zap.Int("count", len(doomed)))
	}
}

func (r *Reaper) shouldReap(m *Match, now time.Time) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	g := m.game

	idle := now.Sub(lastActivity(g))
	if g.Terminal() {
		return idle >= r.terminalRetention
	}
	// Freshly created matches have no players yet either; the grace period
	// keeps them alive long enough for the creator to connect.
	return humanPlayerCount(g) == 0 && idle >= r.idleGrace
}

func lastActivity(g *domain.Game) time.Time {
	if g.LastMoveAt.IsZero() {
		return g.CreatedAt
	}
	return g.LastMoveAt
}

// SweepQueue expires stale matchmaking entries and old pairing records.
func (r *Reaper) SweepQueue() {
	expired, cleared := r.queue.Reap(r.now())
	if expired > 0 || cleared > 0 {
		r.log.Info("reaped matchmaking state",
			zap.Int("expired_entries", expired),
			zap.Int("cleared_pairings", cleared))
	}
}
