package alerting

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/argus-video/argus/internal/logger"
)

func TestImageStoreSavesLocally(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "alerts")
	s, err := NewImageStore(dir, S3Options{}, logger.NewNop())
	if err != nil {
		t.Fatalf("new image store: %v", err)
	}

	payload := []byte{0xff, 0xd8, 0xff}
	name, err := s.Save(context.Background(), 7, "person", payload)
	if err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if !strings.HasPrefix(name, "task7_person_") || !strings.HasSuffix(name, ".jpg") {
		t.Errorf("unexpected image name %q", name)
	}

	data, err := os.ReadFile(s.Path(name))
	if err != nil {
		t.Fatalf("read saved image: %v", err)
	}
	if len(data) != len(payload) {
		t.Errorf("saved %d bytes, want %d", len(data), len(payload))
	}
}

func TestImageStorePathStripsDirectories(t *testing.T) {
	dir := t.TempDir()
	s, err := NewImageStore(dir, S3Options{}, logger.NewNop())
	if err != nil {
		t.Fatalf("new image store: %v", err)
	}
	got := s.Path("../../etc/passwd")
	if filepath.Dir(got) != dir {
		t.Errorf("path escaped the image dir: %s", got)
	}
}
