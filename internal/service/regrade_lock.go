package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/quiz-overview/internal/config"
)

var (
	// ErrRegradeInProgress is returned when another batch already holds the quiz lock.
	ErrRegradeInProgress = errors.New("a regrade batch is already running for this quiz")
	// ErrLockLost is returned when a lease expired or was taken over before it was renewed.
	ErrLockLost = errors.New("regrade lock no longer held")
)

// releaseScript deletes the lock only while it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// extendScript resets the lock TTL only while it still holds our token.
var extendScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// QuizLock serializes regrade and close batches per quiz across server instances.
type QuizLock struct {
	rdb *redis.Client
	ttl time.Duration
	log zerolog.Logger
}

// NewQuizLock creates a new QuizLock. ttl bounds how long a crashed holder
// blocks the quiz; a live holder keeps renewing it.
func NewQuizLock(rdb *redis.Client, ttl time.Duration, log zerolog.Logger) *QuizLock {
	return &QuizLock{
		rdb: rdb,
		ttl: ttl,
		log: log.With().Str("component", "quiz_lock").Logger(),
	}
}

// Lease is one holder's claim on a quiz lock. A watchdog renews it every
// third of the TTL until Release.
type Lease struct {
	lock   *QuizLock
	quizID int64
	key    string
	token  string

	stop chan struct{}
	done chan struct{}
	once sync.Once
}

// Acquire takes the quiz lock and starts renewing it.
func (l *QuizLock) Acquire(ctx context.Context, quizID int64) (*Lease, error) {
	key := config.CacheKey.RegradeLockKey(quizID)
	token := uuid.New().String()

	ok, err := l.rdb.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire regrade lock: %w", err)
	}
	if !ok {
		return nil, ErrRegradeInProgress
	}

	lease := &Lease{
		lock:   l,
		quizID: quizID,
		key:    key,
		token:  token,
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	go lease.watch(context.WithoutCancel(ctx), l.ttl/3)
	return lease, nil
}

// Held reports whether any batch currently holds the quiz lock.
func (l *QuizLock) Held(ctx context.Context, quizID int64) (bool, error) {
	n, err := l.rdb.Exists(ctx, config.CacheKey.RegradeLockKey(quizID)).Result()
	return n > 0, err
}

// Refresh resets the lease TTL. It returns ErrLockLost once another holder owns the key.
func (s *Lease) Refresh(ctx context.Context) error {
	n, err := extendScript.Run(ctx, s.lock.rdb, []string{s.key}, s.token, s.lock.ttl.Milliseconds()).Int()
	if err != nil {
		return fmt.Errorf("extend regrade lock: %w", err)
	}
	if n == 0 {
		return ErrLockLost
	}
	return nil
}

// Release stops the watchdog and deletes the lock if it is still ours.
func (s *Lease) Release(ctx context.Context) error {
	s.once.Do(func() { close(s.stop) })
	<-s.done
	return releaseScript.Run(ctx, s.lock.rdb, []string{s.key}, s.token).Err()
}

func (s *Lease) watch(ctx context.Context, every time.Duration) {
	defer close(s.done)
	if every <= 0 {
		<-s.stop
		return
	}

	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			err := s.Refresh(ctx)
			if errors.Is(err, ErrLockLost) {
				s.lock.log.Error().Int64("quiz_id", s.quizID).Msg("Regrade lock lost while batch running")
				<-s.stop
				return
			}
			if err != nil {
				s.lock.log.Warn().Err(err).Int64("quiz_id", s.quizID).Msg("Failed to renew regrade lock")
			}
		}
	}
}
