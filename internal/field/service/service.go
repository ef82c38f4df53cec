package service

import (
	"time"

	"go.uber.org/zap"

	"github.com/diego-dcr-sisco/ZondaAPP/internal/field/repository"
	"github.com/diego-dcr-sisco/ZondaAPP/internal/field/session"
	"github.com/diego-dcr-sisco/ZondaAPP/internal/shared/zonda"
)

// Services bundles the field-service core.
type Services struct {
	Order  *OrderService
	Report *ReportService
	Sync   *SyncService
}

func NewServices(repos *repository.Repositories, client *zonda.Client, sess *session.Manager, log *zap.Logger) *Services {
	reportSvc := NewReportService(repos, sess, log)
	return &Services{
		Order:  NewOrderService(repos, client, log),
		Report: reportSvc,
		Sync:   NewSyncService(client, repos, log),
	}
}

// nowStamp is the single clock format used for report timestamps.
func nowStamp() string {
	return time.Now().Format(time.RFC3339)
}
