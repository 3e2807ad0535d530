package exports

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/fdg312/menu-batches/internal/batches"
)

type fakeSource struct {
	batch batches.BatchDTO
	items []batches.ItemInput
	err   error
}

func (f *fakeSource) Calendar(ctx context.Context, batchID int64) (*batches.Calendar, *batches.BatchDTO, error) {
	if f.err != nil {
		return nil, nil, f.err
	}
	if batchID != f.batch.ID {
		return nil, nil, batches.ErrBatchNotFound
	}
	cal := batches.GroupItemsByDay(f.batch.Year, f.batch.Month, f.items)
	b := f.batch
	return &cal, &b, nil
}

type fakeBlob struct {
	objects    map[string][]byte
	deleted    []string
	presignErr error
}

func (f *fakeBlob) PutObject(ctx context.Context, key string, data []byte, contentType string) (int64, error) {
	if f.objects == nil {
		f.objects = make(map[string][]byte)
	}
	f.objects[key] = data
	return int64(len(data)), nil
}

func (f *fakeBlob) PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error) {
	if f.presignErr != nil {
		return "", f.presignErr
	}
	return "https://s3.example.com/menus/" + key + "?X-Amz-Expires=" + ttl.String(), nil
}

func (f *fakeBlob) DeleteObject(ctx context.Context, key string) error {
	f.deleted = append(f.deleted, key)
	delete(f.objects, key)
	return nil
}

func sampleSource() *fakeSource {
	notes := "Без орехов"
	return &fakeSource{
		batch: batches.BatchDTO{ID: 5, ConsumerID: 9, Year: 2026, Month: 2, Status: batches.StatusSubmitted, DietaryNotes: &notes},
		items: []batches.ItemInput{
			{Day: 2, MealType: batches.MealDinner, Description: "Grilled trout, quinoa", Calories: 540, Protein: 42, Carbs: 35, Fats: 20},
			{Day: 2, MealType: batches.MealBreakfast, Description: "Сырники со сметаной", Calories: 380, Protein: 22},
			{Day: 30, MealType: batches.MealLunch, Description: "Out of month", Calories: 999},
		},
	}
}

func TestGenerateCSV(t *testing.T) {
	src := sampleSource()
	cal, batch, _ := src.Calendar(context.Background(), 5)

	data, err := GenerateCSV(batch, cal)
	if err != nil {
		t.Fatalf("GenerateCSV: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	want := []string{
		"day,date,meal_type,description,calories,protein,carbs,fats",
		"2,2026-02-02,BREAKFAST,Сырники со сметаной,380,22,0,0",
		`2,2026-02-02,DINNER,"Grilled trout, quinoa",540,42,35,20`,
		"2,2026-02-02,TOTAL,,920,64,35,20",
	}
	if len(lines) != len(want) {
		t.Fatalf("expected %d lines, got %d:\n%s", len(want), len(lines), data)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Errorf("line %d: got %q, want %q", i, lines[i], want[i])
		}
	}
}

func TestGeneratePDF(t *testing.T) {
	src := sampleSource()
	cal, batch, _ := src.Calendar(context.Background(), 5)

	data, err := GeneratePDF(batch, cal)
	if err != nil {
		t.Fatalf("GeneratePDF: %v", err)
	}
	if !bytes.HasPrefix(data, []byte("%PDF-")) {
		t.Fatalf("expected PDF header, got %q", data[:8])
	}
}

func TestExportLocalMode(t *testing.T) {
	svc := NewService(sampleSource(), nil, 0)

	res, err := svc.Export(context.Background(), 5, "CSV")
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if res.URL != "" || len(res.Data) == 0 {
		t.Fatalf("expected inline data, got %+v", res)
	}
	if res.Filename != "menu_5_2026-02.csv" {
		t.Errorf("unexpected filename %q", res.Filename)
	}

	if _, err := svc.Export(context.Background(), 5, "xlsx"); !errors.Is(err, ErrInvalidFormat) {
		t.Errorf("expected ErrInvalidFormat, got %v", err)
	}
	if _, err := svc.Export(context.Background(), 6, "pdf"); !errors.Is(err, batches.ErrBatchNotFound) {
		t.Errorf("expected ErrBatchNotFound, got %v", err)
	}
}

func TestExportUploadsToBlob(t *testing.T) {
	store := &fakeBlob{}
	svc := NewService(sampleSource(), store, 15*time.Minute)
	fixed := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }

	res, err := svc.Export(context.Background(), 5, "")
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if !strings.HasPrefix(res.ObjectKey, "exports/batches/5/2026-02_") || !strings.HasSuffix(res.ObjectKey, ".pdf") {
		t.Errorf("unexpected key %q", res.ObjectKey)
	}
	if _, ok := store.objects[res.ObjectKey]; !ok {
		t.Error("expected object uploaded")
	}
	if !strings.Contains(res.URL, res.ObjectKey) {
		t.Errorf("expected URL for key, got %s", res.URL)
	}
	if !res.ExpiresAt.Equal(fixed.Add(15 * time.Minute)) {
		t.Errorf("unexpected expiry %v", res.ExpiresAt)
	}
	if res.Data != nil {
		t.Error("data must not be returned in s3 mode")
	}
}

func TestExportPresignFailureRemovesObject(t *testing.T) {
	store := &fakeBlob{presignErr: errors.New("signer broken")}
	svc := NewService(sampleSource(), store, time.Minute)

	if _, err := svc.Export(context.Background(), 5, "csv"); err == nil {
		t.Fatal("expected error")
	}
	if len(store.deleted) != 1 || len(store.objects) != 0 {
		t.Fatalf("expected orphan cleanup, deleted=%v left=%d", store.deleted, len(store.objects))
	}
}

func TestHandleExport(t *testing.T) {
	t.Run("StreamsFileInLocalMode", func(t *testing.T) {
		h := NewHandlers(NewService(sampleSource(), nil, 0))
		req := httptest.NewRequest("GET", "/v1/batches/5/export?format=csv", nil)
		req.SetPathValue("id", "5")
		w := httptest.NewRecorder()

		h.HandleExport(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
		}
		if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
			t.Errorf("unexpected content type %q", ct)
		}
		if cd := w.Header().Get("Content-Disposition"); !strings.Contains(cd, "menu_5_2026-02.csv") {
			t.Errorf("unexpected disposition %q", cd)
		}
	})

	t.Run("ReturnsLinkInS3Mode", func(t *testing.T) {
		h := NewHandlers(NewService(sampleSource(), &fakeBlob{}, time.Hour))
		req := httptest.NewRequest("GET", "/v1/batches/5/export", nil)
		req.SetPathValue("id", "5")
		w := httptest.NewRecorder()

		h.HandleExport(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", w.Code)
		}
		var resp batches.ExportResponse
		if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
			t.Fatal(err)
		}
		if !strings.HasPrefix(resp.URL, "https://s3.example.com/menus/exports/batches/5/") {
			t.Errorf("unexpected url %s", resp.URL)
		}
	})

	t.Run("Errors", func(t *testing.T) {
		tests := []struct {
			id, format string
			source     *fakeSource
			status     int
		}{
			{"abc", "pdf", sampleSource(), http.StatusBadRequest},
			{"5", "doc", sampleSource(), http.StatusBadRequest},
			{"77", "pdf", sampleSource(), http.StatusNotFound},
			{"5", "pdf", &fakeSource{err: batches.ErrForbidden}, http.StatusForbidden},
		}
		for _, tt := range tests {
			h := NewHandlers(NewService(tt.source, nil, 0))
			req := httptest.NewRequest("GET", "/v1/batches/x/export?format="+tt.format, nil)
			req.SetPathValue("id", tt.id)
			w := httptest.NewRecorder()

			h.HandleExport(w, req)

			if w.Code != tt.status {
				t.Errorf("id=%s format=%s: expected %d, got %d", tt.id, tt.format, tt.status, w.Code)
			}
		}
	})
}
