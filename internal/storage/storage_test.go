package storage

import (
	"context"
	"errors"
	"io"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/iliyamo/car-marketplace/internal/config"
)

func TestCanonicalImagePath(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", ""},
		{"car.png", "/static/uploads/car.png"},
		{"api/uploads/car.png", "/static/uploads/car.png"},
		{"https://cdn.example.com/a/b/car.jpg?x=1", "/static/uploads/car.jpg"},
		{"/static/uploads/car.png", "/static/uploads/car.png"},
		{`C:\temp\car.gif`, "/static/uploads/car.gif"},
	}
	for _, tt := range tests {
		if got := CanonicalImagePath(tt.in); got != tt.want {
			t.Errorf("CanonicalImagePath(%q) = %q want %q", tt.in, got, tt.want)
		}
	}
}

func TestUniqueName(t *testing.T) {
	now := time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)
	name := uniqueName("My Car!.JPG", now)
	if !regexp.MustCompile(`^my-car_20240506_070809_[0-9a-f]{8}\.jpg$`).MatchString(name) {
		t.Fatalf("unexpected name %q", name)
	}
}

func TestAllowed(t *testing.T) {
	for name, want := range map[string]bool{"a.png": true, "a.JFIF": true, "a.exe": false, "noext": false} {
		if Allowed(name) != want {
			t.Errorf("Allowed(%q) != %v", name, want)
		}
	}
}

func TestLocalStorageRoundTrip(t *testing.T) {
	s, err := New(context.Background(), config.StorageConfig{Type: "local", LocalDir: t.TempDir()})
	if err != nil {
		t.Fatal(err)
	}
	name, err := s.Save(context.Background(), []byte("png-bytes"), "front.png")
	if err != nil {
		t.Fatal(err)
	}
	rc, ct, err := s.Open(context.Background(), name)
	if err != nil {
		t.Fatal(err)
	}
	defer rc.Close()
	b, _ := io.ReadAll(rc)
	if string(b) != "png-bytes" || !strings.HasPrefix(ct, "image/png") {
		t.Fatalf("got %q %q", b, ct)
	}

	for _, bad := range []string{"../etc/passwd", "", ".hidden", "missing.png"} {
		if _, _, err := s.Open(context.Background(), bad); !errors.Is(err, ErrNotFound) {
			t.Errorf("Open(%q): expected ErrNotFound, got %v", bad, err)
		}
	}
	if _, err := s.Save(context.Background(), nil, "x.png"); err == nil {
		t.Fatal("expected error for empty payload")
	}
}

func TestNewS3RequiresSettings(t *testing.T) {
	_, err := New(context.Background(), config.StorageConfig{Type: "s3", S3Region: "us-east-1"})
	if err == nil || !strings.Contains(err.Error(), "bucket") {
		t.Fatalf("expected missing bucket error, got %v", err)
	}
	if _, err := New(context.Background(), config.StorageConfig{Type: "ftp"}); err == nil {
		t.Fatal("expected unsupported type error")
	}
}
