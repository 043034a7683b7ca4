package service

import (
	"time"

	"github.com/google/uuid"
)

// Option configures a TaskService at construction time.
type Option func(*TaskService)

// WithClock replaces time.Now; tests pin it to reproduce timer scenarios.
func WithClock(now func() time.Time) Option {
	return func(s *TaskService) {
		if now != nil {
			s.now = now
		}
	}
}

func WithIDGenerator(newID func() uuid.UUID) Option {
	return func(s *TaskService) {
		if newID != nil {
			s.newID = newID
		}
	}
}

func WithInvoiceExporter(exporter InvoiceExporter) Option {
	return func(s *TaskService) {
		s.invoices = exporter
	}
}

func WithAttachmentStore(store AttachmentStore) Option {
	return func(s *TaskService) {
		s.attachments = store
	}
}
