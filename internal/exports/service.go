package exports

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/fdg312/menu-batches/internal/batches"
	"github.com/fdg312/menu-batches/internal/blob"
	"github.com/google/uuid"
)

// CalendarSource resolves a batch the caller may read, grouped by day.
type CalendarSource interface {
	Calendar(ctx context.Context, batchID int64) (*batches.Calendar, *batches.BatchDTO, error)
}

// Service builds exports of a batch calendar. Without a blob store the file
// is returned to the caller directly.
type Service struct {
	source    CalendarSource
	blobStore blob.Store
	ttl       time.Duration
	now       func() time.Time
}

func NewService(source CalendarSource, blobStore blob.Store, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Service{
		source:    source,
		blobStore: blobStore,
		ttl:       ttl,
		now:       time.Now,
	}
}

// LocalMode is true when exports are streamed instead of uploaded.
func (s *Service) LocalMode() bool {
	return s.blobStore == nil
}

func (s *Service) Export(ctx context.Context, batchID int64, format string) (*Result, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		format = FormatPDF
	}
	if format != FormatPDF && format != FormatCSV {
		return nil, ErrInvalidFormat
	}

	cal, batch, err := s.source.Calendar(ctx, batchID)
	if err != nil {
		return nil, err
	}

	var data []byte
	if format == FormatCSV {
		data, err = GenerateCSV(batch, cal)
	} else {
		data, err = GeneratePDF(batch, cal)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to generate export: %w", err)
	}

	res := &Result{
		Filename:    fmt.Sprintf("menu_%d_%04d-%02d.%s", batch.ID, batch.Year, batch.Month, format),
		ContentType: contentType(format),
	}
	if s.LocalMode() {
		res.Data = data
		return res, nil
	}

	key := fmt.Sprintf("exports/batches/%d/%04d-%02d_%s.%s", batch.ID, batch.Year, batch.Month, uuid.New().String(), format)
	if _, err := s.blobStore.PutObject(ctx, key, data, res.ContentType); err != nil {
		return nil, fmt.Errorf("failed to upload export: %w", err)
	}
	url, err := s.blobStore.PresignGet(ctx, key, s.ttl)
	if err != nil {
		if delErr := s.blobStore.DeleteObject(ctx, key); delErr != nil {
			log.Printf("WARN exports: failed to delete orphan object key=%s: %v", key, delErr)
		}
		return nil, fmt.Errorf("failed to presign export: %w", err)
	}

	log.Printf("INFO exports: uploaded batch_id=%d format=%s size=%d key=%s", batch.ID, format, len(data), key)
	res.URL = url
	res.ObjectKey = key
	res.ExpiresAt = s.now().Add(s.ttl).UTC()
	return res, nil
}
