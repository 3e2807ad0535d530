package dbmigrate

import (
	"os"
	"strings"
	"testing"

	"github.com/fdg312/menu-batches/internal/config"
)

func TestSelectDatabaseURL(t *testing.T) {
	tests := []struct {
		name          string
		cfg           config.Config
		requireDirect bool
		wantURL       string
		wantSource    string
		wantWarning   bool
		wantErr       bool
	}{
		{
			name:       "direct wins",
			cfg:        config.Config{DatabaseURLDirect: "postgres://direct", DatabaseURLRaw: "postgres://url", DatabaseURLPooled: "postgres://pooled"},
			wantURL:    "postgres://direct",
			wantSource: "DATABASE_URL_DIRECT",
		},
		{
			name:       "falls back to DATABASE_URL",
			cfg:        config.Config{DatabaseURLRaw: "postgres://url", DatabaseURLPooled: "postgres://pooled"},
			wantURL:    "postgres://url",
			wantSource: "DATABASE_URL",
		},
		{
			name:        "pooled warns",
			cfg:         config.Config{DatabaseURLPooled: "postgres://pooled"},
			wantURL:     "postgres://pooled",
			wantSource:  "DATABASE_URL_POOLED",
			wantWarning: true,
		},
		{
			name:          "require direct",
			cfg:           config.Config{DatabaseURLRaw: "postgres://url"},
			requireDirect: true,
			wantErr:       true,
		},
		{
			name:          "require direct satisfied",
			cfg:           config.Config{DatabaseURLDirect: "postgres://direct"},
			requireDirect: true,
			wantURL:       "postgres://direct",
			wantSource:    "DATABASE_URL_DIRECT",
		},
		{
			name:    "nothing configured",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sel, err := SelectDatabaseURL(&tt.cfg, tt.requireDirect)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %+v", sel)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if sel.URL != tt.wantURL || sel.Source != tt.wantSource {
				t.Fatalf("got url=%q source=%q", sel.URL, sel.Source)
			}
			if (sel.Warning != "") != tt.wantWarning {
				t.Fatalf("unexpected warning %q", sel.Warning)
			}
		})
	}
}

func TestEmbeddedMigrations(t *testing.T) {
	files, err := Files()
	if err != nil {
		t.Fatalf("Files: %v", err)
	}
	if len(files) < 2 {
		t.Fatalf("expected migrations to be embedded, got %v", files)
	}
	for _, name := range files {
		data, err := embedded.ReadFile(name)
		if err != nil {
			t.Fatalf("read %s: %v", name, err)
		}
		body := string(data)
		if !strings.Contains(body, "-- +goose Up") || !strings.Contains(body, "-- +goose Down") {
			t.Errorf("%s: missing goose annotations", name)
		}
	}
	if !strings.HasSuffix(files[0], "00001_monthly_menus.sql") {
		t.Errorf("unexpected first migration %s", files[0])
	}
	// файлы на диске и в бинаре совпадают
	onDisk, _ := os.ReadDir("migrations")
	if len(onDisk) != len(files) {
		t.Errorf("embedded %d files, directory has %d", len(files), len(onDisk))
	}
}

func TestRunRejectsUnknownCommand(t *testing.T) {
	if err := Run(t.Context(), "drop-everything", "postgres://x"); err == nil {
		t.Fatal("expected error")
	}
	if err := Run(t.Context(), "up", ""); err == nil {
		t.Fatal("expected error for empty url")
	}
}
