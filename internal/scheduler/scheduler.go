package scheduler

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/tazhate/tasksync/config"
	"github.com/tazhate/tasksync/internal/service"
)

// Syncer is the work done on every tick
type Syncer interface {
	SyncAll(ctx context.Context) (service.SyncResult, error)
}

// Scheduler polls every enabled provider on a cron spec
type Scheduler struct {
	cron   *cron.Cron
	cfg    *config.Config
	syncer Syncer

	mu      sync.Mutex
	ctx     context.Context
	running bool
}

func New(cfg *config.Config, syncer Syncer) *Scheduler {
	c := cron.New(cron.WithLocation(cfg.Timezone))

	return &Scheduler{
		cron:   c,
		cfg:    cfg,
		syncer: syncer,
		ctx:    context.Background(),
	}
}

// Start runs one sync right away, then one per tick until ctx is done
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()

	if _, err := s.cron.AddFunc(s.cfg.PollSpec, s.poll); err != nil {
		return fmt.Errorf("add poll %q: %w", s.cfg.PollSpec, err)
	}

	s.cron.Start()
	log.Printf("Scheduler started (TZ: %s, poll: %s)", s.cfg.Timezone, s.cfg.PollSpec)

	s.poll()

	<-ctx.Done()
	return nil
}

func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Println("Scheduler stopped")
}

// poll skips the tick when the previous sync is still running
func (s *Scheduler) poll() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		log.Println("Previous sync still running, skipping tick")
		return
	}
	s.running = true
	ctx := s.ctx
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	res, err := s.syncer.SyncAll(ctx)
	if err != nil {
		log.Printf("Error syncing providers: %v", err)
		return
	}
	if res.Updated > 0 || res.Imported > 0 {
		log.Printf("Sync done: %d updated, %d imported", res.Updated, res.Imported)
	}
}
