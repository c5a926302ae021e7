package blob

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	gobreaker "github.com/sony/gobreaker/v2"
)

func TestLocalPutExistsDelete(t *testing.T) {
	dir := t.TempDir()
	l := NewLocal(dir)
	ctx := context.Background()

	p, err := l.Put(ctx, "logos", "Acme Logo.PNG", strings.NewReader("png-bytes"), "image/png")
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if !strings.HasPrefix(p, "logos/") || !strings.HasSuffix(p, ".png") {
		t.Fatalf("unexpected path %q", p)
	}
	data, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(p)))
	if err != nil || string(data) != "png-bytes" {
		t.Fatalf("unexpected file content %q %v", data, err)
	}

	ok, err := l.Exists(ctx, p)
	if err != nil || !ok {
		t.Fatalf("Exists = %v, %v", ok, err)
	}
	if err := l.Delete(ctx, p); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if ok, _ := l.Exists(ctx, p); ok {
		t.Fatalf("expected blob to be gone")
	}
	if err := l.Delete(ctx, p); err != nil {
		t.Fatalf("deleting a missing blob must succeed: %v", err)
	}
}

func TestLocalRejectsTraversal(t *testing.T) {
	l := NewLocal(t.TempDir())
	if _, err := l.Exists(context.Background(), "../etc/passwd"); err == nil {
		t.Fatalf("expected traversal to be rejected")
	}
	p, err := l.Put(context.Background(), "../../up", "x.txt", strings.NewReader("x"), "")
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if !strings.HasPrefix(p, "up/") {
		t.Fatalf("folder was not confined: %q", p)
	}
}

type fakeS3 struct {
	puts    []string
	deletes []string
	head    error
	put     error
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.put != nil {
		return nil, f.put
	}
	_, _ = io.ReadAll(in.Body)
	f.puts = append(f.puts, *in.Key)
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.deletes = append(f.deletes, *in.Key)
	return &s3.DeleteObjectOutput{}, nil
}

func (f *fakeS3) HeadObject(_ context.Context, _ *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	if f.head != nil {
		return nil, f.head
	}
	return &s3.HeadObjectOutput{}, nil
}

func TestS3PutAndExists(t *testing.T) {
	fake := &fakeS3{}
	s := newS3(fake, "bucket")
	ctx := context.Background()

	key, err := s.Put(ctx, "avatars", "me.jpg", strings.NewReader("x"), "image/jpeg")
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if len(fake.puts) != 1 || fake.puts[0] != key || !strings.HasPrefix(key, "avatars/") {
		t.Fatalf("unexpected puts %v (key %q)", fake.puts, key)
	}
	if ok, err := s.Exists(ctx, key); err != nil || !ok {
		t.Fatalf("Exists = %v, %v", ok, err)
	}

	fake.head = &types.NotFound{}
	if ok, err := s.Exists(ctx, key); err != nil || ok {
		t.Fatalf("expected missing object, got %v, %v", ok, err)
	}
	if err := s.Delete(ctx, key); err != nil || len(fake.deletes) != 1 {
		t.Fatalf("Delete: %v %v", err, fake.deletes)
	}
}

func TestS3BreakerOpensAfterFailures(t *testing.T) {
	fake := &fakeS3{put: errors.New("connection refused")}
	s := newS3(fake, "bucket")
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if _, err := s.Put(ctx, "logos", "a.png", strings.NewReader("x"), ""); err == nil {
			t.Fatalf("expected failure")
		}
	}
	_, err := s.Put(ctx, "logos", "a.png", strings.NewReader("x"), "")
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Fatalf("expected open breaker, got %v", err)
	}
}
