package batching

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// Marker is the sliding window position of a key: the last appended token and
// how long ago it arrived, measured on the store's clock.
type Marker struct {
	Token string
	Quiet time.Duration
}

// Store is the shared list plus marker behind a batch key. Drain must be an
// atomic compare-and-drain: it only empties the list when token still owns
// the marker.
type Store interface {
	Push(ctx context.Context, key, token, content string, ttl time.Duration) error
	Marker(ctx context.Context, key string) (Marker, bool, error)
	Drain(ctx context.Context, key, token string) ([]string, bool, error)
}

// Batch is the outcome of a wait. Only the leader carries content.
type Batch struct {
	Key     string
	Content string
	Parts   []string
	Leader  bool
}

type Config struct {
	Window time.Duration
	Poll   time.Duration
	TTL    time.Duration
}

type Service struct {
	store Store
	cfg   Config
}

func NewService(store Store, cfg Config) *Service {
	if cfg.Window < 0 {
		cfg.Window = 0
	}
	if cfg.Poll <= 0 {
		cfg.Poll = 500 * time.Millisecond
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 6*cfg.Window + time.Minute
	}
	return &Service{store: store, cfg: cfg}
}

func Key(tenantID, phone string) string {
	return tenantID + ":" + phone
}

// Add appends content to the batch of key and slides its window to token.
func (s *Service) Add(ctx context.Context, key, token, content string) error {
	return s.store.Push(ctx, key, token, content, s.cfg.TTL)
}

// Wait blocks until the batch of key has been quiet for the window. The caller
// whose token is still the latest marker drains the batch and becomes leader;
// every other caller returns as soon as it sees a newer marker.
func (s *Service) Wait(ctx context.Context, key, token string) (Batch, error) {
	log := logrus.WithFields(logrus.Fields{"batch_key": key, "token": token})
	for {
		marker, found, err := s.store.Marker(ctx, key)
		if err != nil {
			return Batch{}, err
		}
		if !found || marker.Token != token {
			log.Debug("[BATCH] superseded by a newer message")
			return Batch{Key: key}, nil
		}

		quiet := marker.Quiet
		if quiet >= s.cfg.Window {
			parts, ok, err := s.store.Drain(ctx, key, token)
			if err != nil {
				return Batch{}, err
			}
			if !ok {
				return Batch{Key: key}, nil
			}
			log.WithField("parts", len(parts)).Info("[BATCH] window closed, flushing combined message")
			return Batch{Key: key, Content: strings.Join(parts, "\n"), Parts: parts, Leader: true}, nil
		}

		sleep := s.cfg.Window - quiet
		if sleep > s.cfg.Poll {
			sleep = s.cfg.Poll
		}
		timer := time.NewTimer(sleep)
		select {
		case <-ctx.Done():
			timer.Stop()
			return Batch{}, ctx.Err()
		case <-timer.C:
		}
	}
}

var errCorruptMarker = errors.New("batch marker is corrupt")
