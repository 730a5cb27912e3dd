package transport

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type fakeS3 struct {
	objects map[string][]byte
	keys    []string
	bucket  string
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.bucket = *in.Bucket
	f.keys = append(f.keys, *in.Key)
	data, ok := f.objects[*in.Key]
	if !ok {
		return nil, errors.New("operation error S3: GetObject, api error NoSuchKey: The specified key does not exist.")
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func TestS3Fetcher_Fetch(t *testing.T) {
	api := &fakeS3{objects: map[string][]byte{"content/android/filesinfo.dat": []byte("{}")}}
	f := newS3FetcherWithClient(S3Config{Bucket: "assets", Prefix: "content/android/"}, api)

	data, err := f.Fetch(t.Context(), "filesinfo.dat")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if string(data) != "{}" {
		t.Errorf("data = %q", data)
	}
	if api.bucket != "assets" {
		t.Errorf("bucket = %q", api.bucket)
	}

	_, err = f.Fetch(t.Context(), "missing.unity3d")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
	if api.keys[1] != "content/android/missing.unity3d" {
		t.Errorf("key = %q", api.keys[1])
	}
}

func TestS3Config_Validate(t *testing.T) {
	if err := (&S3Config{}).Validate(); err == nil {
		t.Error("expected error without bucket")
	}
	if err := (&S3Config{Bucket: "b"}).Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}
