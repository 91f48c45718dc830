package service

import (
	"context"
	"sync"
	"time"

	"github.com/dmehra2102/prod-golang-projects/medbill/internal/domain/notification"
	"github.com/dmehra2102/prod-golang-projects/medbill/pkg/metrics"
	"go.uber.org/zap"
)

// NotificationService is the notification sink. Delivery is persisted by a
// background worker so callers never wait on the store.
type NotificationService struct {
	repo    notification.Repository
	metrics *metrics.Collector
	log     *zap.Logger
	queue   chan *notification.Notification
	done    chan struct{}

	mu     sync.RWMutex
	closed bool
}

const notificationBufferSize = 1_000

func NewNotificationService(repo notification.Repository, m *metrics.Collector, log *zap.Logger) *NotificationService {
	svc := &NotificationService{
		repo:    repo,
		metrics: m,
		log:     log,
		queue:   make(chan *notification.Notification, notificationBufferSize),
		done:    make(chan struct{}),
	}
	go svc.worker()
	return svc
}

func (s *NotificationService) Notify(_ context.Context, n *notification.Notification) {
	if len(n.UserIDs) == 0 {
		s.log.Debug("notification has no recipients, skipping", zap.String("title", n.Title))
		return
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		s.record(n.Type, "dropped")
		s.log.Warn("notification service stopped, dropping notification",
			zap.String("type", string(n.Type)),
			zap.String("title", n.Title),
		)
		return
	}

	select {
	case s.queue <- n:
	default:
		s.record(n.Type, "dropped")
		s.log.Warn("notification buffer full, dropping notification",
			zap.String("type", string(n.Type)),
			zap.String("title", n.Title),
		)
	}
}

// Shutdown stops intake and waits for queued notifications to be stored.
// Notify calls that arrive afterwards are dropped.
func (s *NotificationService) Shutdown(timeout time.Duration) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.queue)
	s.mu.Unlock()

	select {
	case <-s.done:
	case <-time.After(timeout):
		s.log.Warn("notification service shutdown timed out; some notifications may be lost")
	}
}

func (s *NotificationService) worker() {
	defer close(s.done)
	for n := range s.queue {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := s.repo.Create(ctx, n); err != nil {
			s.record(n.Type, "failed")
			s.log.Error("failed to persist notification",
				zap.String("kind", "downstream_failure"),
				zap.String("component", "notification_sink"),
				zap.String("action", "create"),
				zap.String("title", n.Title),
				zap.Error(err),
			)
		} else {
			s.record(n.Type, "sent")
		}
		cancel()
	}
}

func (s *NotificationService) record(t notification.Type, result string) {
	if s.metrics != nil {
		s.metrics.NotificationsSent.WithLabelValues(string(t), result).Inc()
	}
}
