package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/tbourn/go-study-assistant/internal/config"
	"github.com/tbourn/go-study-assistant/internal/extract"
)

func TestRootCommand_Subcommands(t *testing.T) {
	root := newRootCommand()
	want := map[string]bool{"serve": false, "migrate": false, "extract": false, "ask": false}
	for _, c := range root.Commands() {
		if _, ok := want[c.Name()]; ok {
			want[c.Name()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Fatalf("subcommand %q not registered", name)
		}
	}
}

func TestDetectType(t *testing.T) {
	if got := detectType([]byte("%PDF-1.4\n%%EOF\n"), "upload.bin"); got != extract.MimePDF {
		t.Fatalf("pdf sniff = %q", got)
	}
	if got := detectType([]byte("plain words"), "bai-giang.doc"); got != extract.MimeDOC {
		t.Fatalf("doc by extension = %q", got)
	}
	if got := detectType([]byte("plain words"), "BAI.DOCX"); got != extract.MimeDOCX {
		t.Fatalf("docx by extension = %q", got)
	}
	if got := detectType([]byte("plain words"), "notes.txt"); !strings.HasPrefix(got, "text/plain") {
		t.Fatalf("fallback = %q", got)
	}
}

func TestPreview(t *testing.T) {
	if got := preview("Hồ Chí Minh", 20); got != "Hồ Chí Minh" {
		t.Fatalf("short preview = %q", got)
	}
	if got := preview("Hồ Chí Minh", 2); got != "Hồ…" {
		t.Fatalf("rune preview = %q", got)
	}
}

func TestExtractCmd_RejectsUnsupported(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.txt")
	if err := os.WriteFile(path, []byte("ghi chú"), 0o644); err != nil {
		t.Fatal(err)
	}
	root := newRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs([]string{"extract", path})
	err := root.Execute()
	if err == nil || !strings.Contains(err.Error(), "unsupported type") {
		t.Fatalf("expected unsupported type error, got %v", err)
	}
}

func TestStorageOptions_Mapping(t *testing.T) {
	opts := storageOptions(config.StorageConfig{
		Driver:    "s3",
		UploadDir: "uploads",
		Minio:     config.MinioConfig{Endpoint: "minio:9000", Bucket: "documents", UseSSL: true},
		S3:        config.S3Config{Bucket: "b", Region: "ap-southeast-1", Prefix: "raw", PathStyle: true, SSE: "AES256"},
	})
	if opts.Driver != "s3" || opts.UploadDir != "uploads" {
		t.Fatalf("driver/dir = %q/%q", opts.Driver, opts.UploadDir)
	}
	if opts.Minio.Endpoint != "minio:9000" || opts.Minio.Bucket != "documents" || !opts.Minio.UseSSL {
		t.Fatalf("minio = %+v", opts.Minio)
	}
	if opts.S3.Bucket != "b" || opts.S3.Region != "ap-southeast-1" || opts.S3.Prefix != "raw" || !opts.S3.PathStyle || opts.S3.SSE != "AES256" {
		t.Fatalf("s3 = %+v", opts.S3)
	}
}

func TestNewBackend_FlagOverridesKey(t *testing.T) {
	c := config.LLMConfig{BaseURL: "http://localhost", Model: "gemini-2.0-flash", APIKey: "from-env"}
	client, err := newBackend(c, "  ")
	if err != nil {
		t.Fatalf("newBackend: %v", err)
	}
	if client.Model() != "gemini-2.0-flash" {
		t.Fatalf("model = %q", client.Model())
	}
	if firstKey("flag", "env") != "flag" || firstKey("", "env") != "env" || firstKey(" ", "") != "" {
		t.Fatalf("firstKey precedence broken")
	}
}
