package worker

import (
	"context"
	"log"

	"order-sync-service/internal/broker"
	"order-sync-service/internal/service"
)

// SyncWorker consumes sync jobs and runs one delivery attempt per job
type SyncWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
}

// NewSyncWorker creates a new sync worker
func NewSyncWorker(consumer *broker.Consumer, syncService *service.SyncService) *SyncWorker {
	eventHandler := broker.NewEventHandler()
	eventHandler.OnSyncRequested(syncService.ProcessSyncJob)

	return &SyncWorker{
		consumer:     consumer,
		eventHandler: eventHandler,
	}
}

// Start starts the worker. It blocks until ctx is cancelled.
func (w *SyncWorker) Start(ctx context.Context) error {
	log.Println("Starting sync worker...")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *SyncWorker) Stop() error {
	log.Println("Stopping sync worker...")
	return w.consumer.Close()
}
