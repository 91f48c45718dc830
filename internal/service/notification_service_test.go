package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dmehra2102/prod-golang-projects/medbill/internal/domain/notification"
	"github.com/dmehra2102/prod-golang-projects/medbill/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"
)

func TestNotificationService_PersistsInBackground(t *testing.T) {
	repo := &mockNotificationRepo{}
	m := metrics.NewCollector("test", prometheus.NewRegistry())
	svc := NewNotificationService(repo, m, zap.NewNop())

	svc.Notify(context.Background(), &notification.Notification{Type: notification.TypeBilling, Title: "nobody listening"})
	svc.Notify(context.Background(), &notification.Notification{
		UserIDs: []string{"billing-desk"},
		Type:    notification.TypeBilling,
		Title:   "New Bill Generated",
	})
	svc.Shutdown(time.Second)

	if len(repo.created) != 1 || repo.created[0].Title != "New Bill Generated" {
		t.Errorf("persisted = %+v", repo.created)
	}
	if got := testutil.ToFloat64(m.NotificationsSent.WithLabelValues("billing", "sent")); got != 1 {
		t.Errorf("sent = %v, want 1", got)
	}
}

func TestNotificationService_StoreFailureIsCounted(t *testing.T) {
	repo := &mockNotificationRepo{err: errors.New("relation does not exist")}
	m := metrics.NewCollector("test", prometheus.NewRegistry())
	svc := NewNotificationService(repo, m, zap.NewNop())

	svc.Notify(context.Background(), &notification.Notification{
		UserIDs: []string{"billing-desk"},
		Type:    notification.TypeSystem,
		Title:   "Autobilling failed",
	})
	svc.Shutdown(time.Second)

	if got := testutil.ToFloat64(m.NotificationsSent.WithLabelValues("system", "failed")); got != 1 {
		t.Errorf("failed = %v, want 1", got)
	}
}

func TestNotificationService_NotifyAfterShutdownIsDropped(t *testing.T) {
	repo := &mockNotificationRepo{}
	m := metrics.NewCollector("test", prometheus.NewRegistry())
	svc := NewNotificationService(repo, m, zap.NewNop())
	svc.Shutdown(time.Second)
	svc.Shutdown(time.Second)

	svc.Notify(context.Background(), &notification.Notification{
		UserIDs: []string{"billing-desk"},
		Type:    notification.TypeBilling,
		Title:   "New Bill Generated",
	})

	if len(repo.created) != 0 {
		t.Errorf("persisted after shutdown: %+v", repo.created)
	}
	if got := testutil.ToFloat64(m.NotificationsSent.WithLabelValues("billing", "dropped")); got != 1 {
		t.Errorf("dropped = %v, want 1", got)
	}
}

func TestAuditService_LogAfterShutdownIsDropped(t *testing.T) {
	repo := &mockAuditRepo{}
	m := metrics.NewCollector("test", prometheus.NewRegistry())
	svc := NewAuditService(repo, m, zap.NewNop())
	svc.Shutdown()
	svc.Shutdown()

	svc.LogAsync(context.Background(), AuditEntry{UserRole: "admin", Action: "update", ResourceType: "autobilling_config"})

	if got := repo.actions(); len(got) != 0 {
		t.Errorf("persisted after shutdown: %v", got)
	}
	if got := testutil.ToFloat64(m.AuditBufferDropped); got != 1 {
		t.Errorf("dropped = %v, want 1", got)
	}
}

func TestAuditService_CarriesRequestID(t *testing.T) {
	repo := &mockAuditRepo{}
	svc := NewAuditService(repo, nil, zap.NewNop())

	ctx := WithRequestID(context.Background(), "req-42")
	svc.LogAsync(ctx, AuditEntry{
		UserRole:     "admin",
		Action:       "update",
		ResourceType: "bill",
		Changes:      map[string]any{"status": "paid"},
	})
	svc.Shutdown()

	if len(repo.entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(repo.entries))
	}
	e := repo.entries[0]
	if e.RequestID != "req-42" || e.UserID != nil {
		t.Errorf("entry = %+v", e)
	}
	if string(e.Changes) != `{"status":"paid"}` {
		t.Errorf("changes = %s", e.Changes)
	}
}
