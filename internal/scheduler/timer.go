package scheduler

import (
	"sync"
	"time"

	"github.com/robfig/cron"
	"github.com/rs/zerolog"
)

// Timer is the recurring-trigger collaborator. Registrations are keyed by
// hook name; registering an existing name replaces it.
type Timer interface {
	Registered(name string) bool
	Register(name string, every time.Duration, fn func())
	Unregister(name string)
}

// CronTimer runs each hook on its own cron runner so a single hook can be
// stopped without touching the others.
type CronTimer struct {
	log zerolog.Logger

	mu   sync.Mutex
	jobs map[string]*cron.Cron
}

func NewCronTimer(log zerolog.Logger) *CronTimer {
	return &CronTimer{log: log, jobs: map[string]*cron.Cron{}}
}

func (t *CronTimer) Registered(name string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	c, ok := t.jobs[name]
	return ok && len(c.Entries()) > 0
}

// Register schedules fn every interval. cron.Every rounds intervals below
// one second up to one second.
func (t *CronTimer) Register(name string, every time.Duration, fn func()) {
	c := cron.New()
	c.Schedule(cron.Every(every), cron.FuncJob(fn))

	t.mu.Lock()
	prev := t.jobs[name]
	t.jobs[name] = c
	t.mu.Unlock()

	if prev != nil {
		prev.Stop()
	}
	c.Start()
	t.log.Debug().Str("hook", name).Dur("every", every).Msg("[timer] registered")
}

func (t *CronTimer) Unregister(name string) {
	t.mu.Lock()
	c := t.jobs[name]
	delete(t.jobs, name)
	t.mu.Unlock()

	if c != nil {
		c.Stop()
		t.log.Debug().Str("hook", name).Msg("[timer] unregistered")
	}
}

// Close stops every hook.
func (t *CronTimer) Close() {
	t.mu.Lock()
	jobs := t.jobs
	t.jobs = map[string]*cron.Cron{}
	t.mu.Unlock()
	for _, c := range jobs {
		c.Stop()
	}
}
