package s3

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// testClient creates a Client backed by a test HTTP server.
// The handler receives real S3 XML-protocol requests.
func testClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)

	client := s3.New(s3.Options{
		Region:       "eu-west-3",
		BaseEndpoint: aws.String(server.URL),
		UsePathStyle: true,
		Credentials:  credentials.NewStaticCredentialsProvider("test-key", "test-secret", ""),
		HTTPClient: &http.Client{
			Transport: &http.Transport{},
		},
	})

	return &Client{s3: client}, server
}

// xmlResponse is a helper to write S3-style XML responses.
func xmlResponse(w http.ResponseWriter, statusCode int, body string) {
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(statusCode)
	_, _ = w.Write([]byte(body))
}

func TestNewClient(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		opts []Option
	}{
		{name: "default chain"},
		{name: "custom endpoint", opts: []Option{WithEndpoint("http://127.0.0.1:9000")}},
		{name: "static credentials", opts: []Option{WithStaticCredentials("ak", "sk")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			client, err := NewClient(context.Background(), "eu-west-3", tt.opts...)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got := client.s3.Options().Region; got != "eu-west-3" {
				t.Errorf("expected region eu-west-3, got %s", got)
			}
		})
	}
}

func TestBucketExists_True(t *testing.T) {
	t.Parallel()

	var gotPath string
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == "HEAD" {
			gotPath = r.URL.Path
			w.WriteHeader(200)
			return
		}
		w.WriteHeader(404)
	})

	client, server := testClient(t, handler)
	defer server.Close()

	exists, err := client.BucketExists(context.Background(), "kap-bucket")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !exists {
		t.Fatal("expected bucket to exist")
	}
	if gotPath != "/kap-bucket" {
		t.Errorf("expected HEAD /kap-bucket, got %s", gotPath)
	}
}

func TestBucketExists_False(t *testing.T) {
	t.Parallel()

	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		xmlResponse(w, 404, `<?xml version="1.0" encoding="UTF-8"?>
<Error>
  <Code>NotFound</Code>
  <Message>Not Found</Message>
</Error>`)
	})

	client, server := testClient(t, handler)
	defer server.Close()

	exists, err := client.BucketExists(context.Background(), "nonexistent-bucket")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if exists {
		t.Fatal("expected bucket to not exist")
	}
}

func TestBucketExists_OtherError(t *testing.T) {
	t.Parallel()

	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		xmlResponse(w, 403, `<?xml version="1.0" encoding="UTF-8"?>
<Error>
  <Code>AccessDenied</Code>
  <Message>Access Denied</Message>
</Error>`)
	})

	client, server := testClient(t, handler)
	defer server.Close()

	_, err := client.BucketExists(context.Background(), "test-bucket")
	if err == nil {
		t.Fatal("expected error but got nil")
	}
	if !strings.Contains(err.Error(), "failed to check bucket test-bucket") {
		t.Errorf("unexpected error message: %v", err)
	}
}

func TestIsNotFoundError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil error", err: nil, want: false},
		{name: "wrapped NoSuchBucket", err: fmt.Errorf("outer: %w", &s3types.NoSuchBucket{}), want: true},
		{name: "wrapped NotFound", err: fmt.Errorf("outer: %w", &s3types.NotFound{}), want: true},
		{name: "wrapped generic error", err: fmt.Errorf("outer: %w", fmt.Errorf("inner error")), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := isNotFoundError(tt.err)
			if got != tt.want {
				t.Errorf("isNotFoundError() = %v, want %v", got, tt.want)
			}
		})
	}
}
