// Package notify pushes run failures to Telegram.
package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
	tele "gopkg.in/telebot.v4"

	"watchdag/internal/eventbus"
	"watchdag/pkg/logx"
)

// Config enables and tunes the Telegram notifier.
type Config struct {
	Enabled    bool
	Token      string
	ChatID     int64
	RatePerSec int
}

// dedupWindow suppresses repeat notifications for the same task while
// a flapping command keeps failing.
const dedupWindow = 5 * time.Minute

// Service subscribes to the engine's event bus and sends one message
// per task failure and per failed run. Disabled configs produce a
// no-op service so callers never branch.
type Service struct {
	log     logx.Logger
	cfg     Config
	bot     *tele.Bot
	limiter *rate.Limiter

	mu   sync.Mutex
	seen map[string]time.Time
}

func New(cfg Config, log logx.Logger) (*Service, error) {
	s := &Service{
		log:  log.With(logx.String("component", "notify")),
		cfg:  cfg,
		seen: map[string]time.Time{},
	}
	if !cfg.Enabled {
		return s, nil
	}
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("notify.telegram.token is empty")
	}
	if cfg.ChatID == 0 {
		return nil, errors.New("notify.telegram.chat_id is required")
	}
	rps := cfg.RatePerSec
	if rps <= 0 {
		rps = 1
	}
	bot, err := tele.NewBot(tele.Settings{Token: cfg.Token})
	if err != nil {
		return nil, err
	}
	s.bot = bot
	// Burst = rate per sec, so short spikes don't block too hard.
	s.limiter = rate.NewLimiter(rate.Limit(rps), rps)
	return s, nil
}

func (s *Service) Enabled() bool { return s.cfg.Enabled && s.bot != nil }

// Run consumes bus events until ctx is cancelled. Meant to be started
// under the supervisor.
func (s *Service) Run(ctx context.Context, bus eventbus.Bus) error {
	if !s.Enabled() {
		<-ctx.Done()
		return nil
	}
	ch, unsub := bus.Subscribe(64)
	defer unsub()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-ch:
			if !ok {
				return nil
			}
			if msg := s.format(ev); msg != "" {
				s.send(ctx, msg)
			}
		}
	}
}

func (s *Service) format(ev eventbus.Event) string {
	switch ev.Type {
	case eventbus.TypeTaskFailed:
		te, ok := ev.Data.(eventbus.TaskEvent)
		if !ok || s.suppressed("task:"+te.Task) {
			return ""
		}
		return fmt.Sprintf("❌ task %s failed (exit %d, run #%d)", te.Task, te.ExitCode, te.RunID)
	case eventbus.TypeRunFinished:
		re, ok := ev.Data.(eventbus.RunEvent)
		if !ok || len(re.Failed) == 0 || s.suppressed(fmt.Sprintf("run:%d", re.RunID)) {
			return ""
		}
		return fmt.Sprintf("⚠️ run #%d finished with failures: %s", re.RunID, strings.Join(re.Failed, ", "))
	default:
		return ""
	}
}

func (s *Service) suppressed(key string) bool {
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	if until, ok := s.seen[key]; ok && now.Before(until) {
		return true
	}
	s.seen[key] = now.Add(dedupWindow)
	if len(s.seen) > 1000 {
		for k, v := range s.seen {
			if now.After(v) {
				delete(s.seen, k)
			}
		}
	}
	return false
}

func (s *Service) send(ctx context.Context, msg string) {
	if err := s.limiter.Wait(ctx); err != nil {
		return
	}
	if _, err := s.bot.Send(tele.ChatID(s.cfg.ChatID), msg); err != nil {
		s.log.Warn("notification send failed", logx.Err(err))
	} else {
		s.log.Debug("notification sent")
	}
}
