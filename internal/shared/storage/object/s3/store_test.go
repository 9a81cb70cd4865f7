package s3

import (
	"context"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
)

func TestApplyPrefix(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		prefix string
		key    string
		want   string
	}{
		{name: "no prefix", prefix: "", key: "user/file.pdf", want: "user/file.pdf"},
		{name: "simple prefix", prefix: "root", key: "user/file.pdf", want: "root/user/file.pdf"},
		{name: "prefix trailing slash", prefix: "root/", key: "user/file.pdf", want: "root/user/file.pdf"},
		{name: "prefix and key slashes", prefix: "/root/", key: "/user/file.pdf", want: "root/user/file.pdf"},
		{name: "nested prefix", prefix: "root/sub", key: "user/file.pdf", want: "root/sub/user/file.pdf"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := applyPrefix(tt.prefix, tt.key); got != tt.want {
				t.Fatalf("applyPrefix(%q, %q) = %q, want %q", tt.prefix, tt.key, got, tt.want)
			}
		})
	}
}

func testStore(t *testing.T) *Store {
	t.Helper()
	cfg := aws.Config{
		Region:      "us-east-1",
		Credentials: aws.NewCredentialsCache(credentials.NewStaticCredentialsProvider("AKID", "SECRET", "")),
	}
	store, err := NewFromConfig(cfg, "bucket", "uploads/", "")
	if err != nil {
		t.Fatalf("NewFromConfig: %v", err)
	}
	return store
}

func TestPresignUploadSignedHeadersExcludeContentLength(t *testing.T) {
	store := testStore(t)

	raw, err := store.PresignUpload(context.Background(), "owner/abc_file.pdf", "application/pdf", 15*time.Minute)
	if err != nil {
		t.Fatalf("presign: %v", err)
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse url: %v", err)
	}
	if !strings.Contains(parsed.Path, "uploads/owner/abc_file.pdf") {
		t.Fatalf("expected prefixed key in path, got %s", parsed.Path)
	}
	signed := parsed.Query().Get("X-Amz-SignedHeaders")
	if strings.Contains(signed, "content-length") {
		t.Fatalf("unexpected content-length in signed headers: %s", signed)
	}
	if !strings.Contains(signed, "host") {
		t.Fatalf("expected host in signed headers: %s", signed)
	}
	if got := parsed.Query().Get("X-Amz-Expires"); got != "900" {
		t.Fatalf("expected 900s expiry, got %q", got)
	}
}

func TestSourceURLIsPresignedGet(t *testing.T) {
	store := testStore(t)

	raw, err := store.SourceURL(context.Background(), "owner/abc_file.pdf")
	if err != nil {
		t.Fatalf("SourceURL: %v", err)
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse url: %v", err)
	}
	if parsed.Scheme != "https" {
		t.Fatalf("expected https url, got %s", raw)
	}
	if got := parsed.Query().Get("X-Amz-Expires"); got != "3600" {
		t.Fatalf("expected 3600s expiry, got %q", got)
	}
}

func TestNewFromConfigRequiresBucket(t *testing.T) {
	if _, err := NewFromConfig(aws.Config{Region: "us-east-1"}, " ", "", ""); err == nil {
		t.Fatalf("expected error for empty bucket")
	}
}
