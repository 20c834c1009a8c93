package registry

import (
	"archive/zip"
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"go-feature-platform/internal/services/plugins"
	"go-feature-platform/internal/utils"
)

func buildZip(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for name, content := range files {
		f, err := w.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := f.Write([]byte(content)); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestRegisterUploadScript(t *testing.T) {
	h := newSyncHarness(t)
	h.declareMeta(filepath.Base(h.cfg.Plugin.UploadDir), "report.py", &plugins.Meta{
		Name:        "report",
		Description: "builds the report",
		Configs:     map[string]plugins.ConfigDecl{"interval": {Default: "30"}},
	})

	ok, msg := h.sync.RegisterUpload(context.Background(), &UploadRequest{
		Filename: "report.py",
		Content:  []byte("print()"),
	})
	if !ok {
		t.Fatalf("RegisterUpload() rejected: %s", msg)
	}

	if _, err := os.Stat(filepath.Join(h.cfg.Plugin.UploadDir, "report.py")); err != nil {
		t.Errorf("uploaded script missing on disk: %v", err)
	}
	feature := h.featureRepo.byName("report")
	if feature == nil {
		t.Fatal("uploaded feature was not registered")
	}
	if feature.ScriptPath != "report.py" {
		t.Errorf("script path = %q", feature.ScriptPath)
	}
	if rows := h.configRepo.forFeature(feature.ID); len(rows) != 1 {
		t.Errorf("config rows = %d, want 1", len(rows))
	}
}

func TestRegisterUploadExplicitFieldsWin(t *testing.T) {
	h := newSyncHarness(t)
	h.declareMeta(filepath.Base(h.cfg.Plugin.UploadDir), "report.py", &plugins.Meta{
		Name:        "meta-name",
		Description: "meta description",
	})

	ok, msg := h.sync.RegisterUpload(context.Background(), &UploadRequest{
		Filename:    "report.py",
		Content:     []byte("print()"),
		Name:        "explicit-name",
		Description: "explicit description",
		CustomerID:  utils.ToPointer(uint(3)),
	})
	if !ok {
		t.Fatalf("RegisterUpload() rejected: %s", msg)
	}

	feature := h.featureRepo.byName("explicit-name")
	if feature == nil {
		t.Fatal("feature registered under the wrong name")
	}
	if feature.Description != "explicit description" {
		t.Errorf("description = %q", feature.Description)
	}
	if feature.CustomerID != 3 {
		t.Errorf("customer id = %d, want 3", feature.CustomerID)
	}
}

func TestRegisterUploadDuplicateNameRollsBack(t *testing.T) {
	h := newSyncHarness(t)
	h.declareMeta(filepath.Base(h.cfg.Plugin.UploadDir), "report.py", &plugins.Meta{Name: "report"})

	ok, _ := h.sync.RegisterUpload(context.Background(), &UploadRequest{
		Filename: "report.py",
		Content:  []byte("print()"),
	})
	if !ok {
		t.Fatal("first upload rejected")
	}

	// The second copy collides on the feature name; its deduplicated file
	// must be rolled back.
	ok, msg := h.sync.RegisterUpload(context.Background(), &UploadRequest{
		Filename: "report.py",
		Content:  []byte("print()"),
		Name:     "report",
	})
	if ok {
		t.Fatal("duplicate upload accepted")
	}
	if msg == "" {
		t.Error("rejection carries no message")
	}

	entries, err := os.ReadDir(h.cfg.Plugin.UploadDir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("upload dir holds %d entries after rollback, want 1", len(entries))
	}
	if got := h.featureRepo.count(); got != 1 {
		t.Errorf("features = %d, want 1", got)
	}
}

func TestRegisterUploadRejectsBadInput(t *testing.T) {
	h := newSyncHarness(t)

	tests := []struct {
		name string
		req  *UploadRequest
	}{
		{
			name: "empty content",
			req:  &UploadRequest{Filename: "x.py"},
		},
		{
			name: "unsupported extension",
			req:  &UploadRequest{Filename: "x.exe", Content: []byte("MZ")},
		},
		{
			name: "no name anywhere",
			req:  &UploadRequest{Filename: "anon.py", Content: []byte("print()")},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if ok, _ := h.sync.RegisterUpload(context.Background(), tt.req); ok {
				t.Error("RegisterUpload() accepted, want rejection")
			}
		})
	}

	if entries, err := os.ReadDir(h.cfg.Plugin.UploadDir); err == nil && len(entries) != 0 {
		t.Errorf("upload dir holds %d entries after rejected uploads, want 0", len(entries))
	}
	if got := h.featureRepo.count(); got != 0 {
		t.Errorf("features = %d, want 0", got)
	}
}

func TestRegisterUploadArchive(t *testing.T) {
	h := newSyncHarness(t)
	h.declareMeta("bundle", "main.py", &plugins.Meta{
		Name:    "bundle-feature",
		Configs: map[string]plugins.ConfigDecl{"key": {Default: "v"}},
	})

	content := buildZip(t, map[string]string{
		"main.py":      "print()",
		"lib/helpers":  "helpers",
		"lib/extra.py": "print()",
	})
	ok, msg := h.sync.RegisterUpload(context.Background(), &UploadRequest{
		Filename: "bundle.zip",
		Content:  content,
	})
	if !ok {
		t.Fatalf("RegisterUpload() rejected: %s", msg)
	}

	if _, err := os.Stat(filepath.Join(h.cfg.Plugin.UploadDir, "bundle", "main.py")); err != nil {
		t.Errorf("extracted entry file missing: %v", err)
	}
	if _, err := os.Stat(filepath.Join(h.cfg.Plugin.UploadDir, "bundle", "lib", "extra.py")); err != nil {
		t.Errorf("nested archive file missing: %v", err)
	}
	feature := h.featureRepo.byName("bundle-feature")
	if feature == nil {
		t.Fatal("archive feature was not registered")
	}
	if feature.ScriptPath != "bundle" {
		t.Errorf("script path = %q, want %q", feature.ScriptPath, "bundle")
	}
}

func TestRegisterUploadArchiveWithoutEntryFile(t *testing.T) {
	h := newSyncHarness(t)
	content := buildZip(t, map[string]string{"other.py": "print()"})

	ok, _ := h.sync.RegisterUpload(context.Background(), &UploadRequest{
		Filename: "noentry.zip",
		Content:  content,
	})
	if ok {
		t.Fatal("archive without entry file accepted")
	}
	if _, err := os.Stat(filepath.Join(h.cfg.Plugin.UploadDir, "noentry")); !os.IsNotExist(err) {
		t.Error("rejected archive left its directory behind")
	}
}

func TestRegisterUploadArchiveTraversalRejected(t *testing.T) {
	h := newSyncHarness(t)
	content := buildZip(t, map[string]string{
		"main.py":      "print()",
		"../escape.py": "print()",
	})

	ok, msg := h.sync.RegisterUpload(context.Background(), &UploadRequest{
		Filename: "evil.zip",
		Content:  content,
	})
	if ok {
		t.Fatal("archive with path traversal accepted")
	}
	if msg == "" {
		t.Error("rejection carries no message")
	}
	if _, err := os.Stat(filepath.Join(filepath.Dir(h.cfg.Plugin.UploadDir), "escape.py")); !os.IsNotExist(err) {
		t.Error("traversal entry escaped the extraction root")
	}
}

func TestRegisterUploadNotAZip(t *testing.T) {
	h := newSyncHarness(t)
	ok, _ := h.sync.RegisterUpload(context.Background(), &UploadRequest{
		Filename: "broken.zip",
		Content:  []byte("this is not a zip archive"),
	})
	if ok {
		t.Fatal("malformed archive accepted")
	}
}
