package artifact

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestWriteAndRead(t *testing.T) {
	store := NewStore(t.TempDir())

	content := []byte("%PDF-1.4 fake document")
	path, err := store.Write("CZ:NSS:2024:1-AS-100", ".pdf", content)
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if !store.Exists("CZ:NSS:2024:1-AS-100", ".pdf") {
		t.Fatal("artifact should exist after write")
	}

	got, err := store.Read("CZ:NSS:2024:1-AS-100", ".pdf")
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if !bytes.Equal(got, content) {
		t.Fatalf("read back %q, want %q", got, content)
	}
	if path != store.Path("CZ:NSS:2024:1-AS-100", ".pdf") {
		t.Fatalf("Write returned %q, Path says %q", path, store.Path("CZ:NSS:2024:1-AS-100", ".pdf"))
	}
}

func TestWriteLeavesNoTempFiles(t *testing.T) {
	root := t.TempDir()
	store := NewStore(root)

	if _, err := store.Write("id", ".pdf", []byte("data")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".artifact-") {
			t.Fatalf("temp file %s left behind", e.Name())
		}
	}
}

func TestCopyFrom(t *testing.T) {
	store := NewStore(t.TempDir())

	src := filepath.Join(t.TempDir(), "source.pdf")
	if err := os.WriteFile(src, []byte("original bytes"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := store.CopyFrom("CZ:KSBR:10-A-5", ".pdf", src); err != nil {
		t.Fatalf("CopyFrom failed: %v", err)
	}
	got, err := store.Read("CZ:KSBR:10-A-5", ".pdf")
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if string(got) != "original bytes" {
		t.Fatalf("copied content %q", got)
	}
}

func TestReadMissingArtifact(t *testing.T) {
	store := NewStore(t.TempDir())
	if _, err := store.Read("nope", ".pdf"); err == nil {
		t.Fatal("expected error for missing artifact")
	}
	if store.Exists("nope", ".pdf") {
		t.Fatal("missing artifact must not exist")
	}
}

func TestSanitizeID(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"CZ:NSS:2024:1-AS-100", "CZ_NSS_2024_1-AS-100"},
		{"5 As 100/2024", "5_As_100_2024"},
		{`a\b`, "a_b"},
		{"plain", "plain"},
	}
	for _, c := range cases {
		if got := SanitizeID(c.in); got != c.want {
			t.Errorf("SanitizeID(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}
