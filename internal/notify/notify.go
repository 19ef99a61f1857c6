// Package notify turns fired schedule entries into chat messages. It is the
// action sink registered with the schedule engine: the engine hands it
// (owner, payload) pairs and it resolves the owner context to a chat target,
// rate-limits the send and retries transient transport errors.
package notify

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	kit "chimebot/internal/transport"
	logx "chimebot/pkg/logx"
)

type Config struct {
	RatePerSec int
	RetryMax   int
}

type Service struct {
	cfg     Config
	adapter kit.Adapter
	log     logx.Logger
	limiter *rate.Limiter
}

func New(cfg Config, adapter kit.Adapter, log logx.Logger) *Service {
	rps := cfg.RatePerSec
	if rps <= 0 {
		rps = 10
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{
		cfg:     cfg,
		adapter: adapter,
		log:     log,
		limiter: rate.NewLimiter(rate.Limit(rps), rps),
	}
}

// ParseOwner resolves an owner context string to a chat target. Accepted
// forms: "chatID" and "chatID:threadID".
func ParseOwner(owner string) (kit.ChatTarget, error) {
	s := strings.TrimSpace(owner)
	if s == "" {
		return kit.ChatTarget{}, fmt.Errorf("empty owner context")
	}
	chatPart, threadPart, hasThread := strings.Cut(s, ":")
	chatID, err := strconv.ParseInt(chatPart, 10, 64)
	if err != nil {
		return kit.ChatTarget{}, fmt.Errorf("owner context %q: bad chat id: %w", owner, err)
	}
	t := kit.ChatTarget{ChatID: chatID}
	if hasThread {
		threadID, err := strconv.Atoi(threadPart)
		if err != nil {
			return kit.ChatTarget{}, fmt.Errorf("owner context %q: bad thread id: %w", owner, err)
		}
		t.ThreadID = threadID
	}
	return t, nil
}

// Deliver implements schedule.Sink.
func (s *Service) Deliver(ctx context.Context, owner, payload string) error {
	to, err := ParseOwner(owner)
	if err != nil {
		return err
	}

	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return err
		}
	}

	opt := &kit.SendOptions{DisablePreview: true}
	var last error
	retry := s.cfg.RetryMax
	for i := 0; i <= retry; i++ {
		_, err := s.adapter.SendText(ctx, to, payload, opt)
		if err == nil {
			if i > 0 {
				s.log.Debug("delivery succeeded after retry", logx.Int64("chat_id", to.ChatID), logx.Int("attempt", i+1))
			}
			return nil
		}
		last = err
		if i == retry {
			break
		}
		// Backoff must not outlive the caller; shutdown cancels mid-wait.
		select {
		case <-time.After(time.Duration(200+100*i) * time.Millisecond):
		case <-ctx.Done():
		}
		if ctx.Err() != nil {
			break
		}
	}
	s.log.Warn("delivery failed",
		logx.Int64("chat_id", to.ChatID),
		logx.Int("thread_id", to.ThreadID),
		logx.Err(last),
	)
	return last
}
