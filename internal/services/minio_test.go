package services

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/HairScan-Mara/Scan-Service/internal/models"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

func testMinioService(t *testing.T) *MinioService {
	t.Helper()
	client, err := minio.New("127.0.0.1:9000", &minio.Options{
		Creds:  credentials.NewStaticV4("testkey", "testsecret", ""),
		Secure: false,
		// A fixed region keeps presigning fully local: without it the
		// client issues a bucket-location lookup over the network.
		Region: "us-east-1",
	})
	if err != nil {
		t.Fatalf("minio client: %v", err)
	}
	return &MinioService{Client: client, BucketName: "scans"}
}

// Presigning is a local signature computation, so the credential contract
// can be verified without a running object store.
func TestIssueWriteCredential(t *testing.T) {
	m := testMinioService(t)

	before := time.Now()
	cred, err := m.IssueWriteCredential(context.Background(), "scalp-front.jpg", "image/jpeg")
	if err != nil {
		t.Fatalf("IssueWriteCredential: %v", err)
	}

	if cred.FileName != "scalp-front.jpg" || cred.ContentType != "image/jpeg" {
		t.Errorf("credential echo = %+v", cred)
	}
	if got := cred.ExpiresAt.Sub(before); got < CredentialTTL || got > CredentialTTL+time.Minute {
		t.Errorf("expiry %v not ~%v ahead", got, CredentialTTL)
	}

	u, err := url.Parse(cred.URL)
	if err != nil {
		t.Fatalf("parse presigned URL: %v", err)
	}
	if !strings.Contains(u.Path, "/scans/scalp-front.jpg") {
		t.Errorf("URL path %q does not address the object", u.Path)
	}

	q := u.Query()
	if got := q.Get("X-Amz-Expires"); got != "900" {
		t.Errorf("X-Amz-Expires = %q, want 900", got)
	}
	if q.Get("X-Amz-Signature") == "" || q.Get("X-Amz-Algorithm") == "" {
		t.Error("URL is not signed")
	}
	// The declared content type must be part of the signature so the store
	// rejects uploads declaring a different one.
	if signed := strings.ToLower(q.Get("X-Amz-SignedHeaders")); !strings.Contains(signed, "content-type") {
		t.Errorf("content-type not bound into signature, signed headers = %q", signed)
	}
}

func TestIssueWriteCredentialValidation(t *testing.T) {
	m := testMinioService(t)

	cases := []struct{ fileName, contentType string }{
		{"", "image/jpeg"},
		{"scalp.jpg", ""},
		{"  ", "image/jpeg"},
		{"", ""},
	}
	for _, tc := range cases {
		if _, err := m.IssueWriteCredential(context.Background(), tc.fileName, tc.contentType); !errors.Is(err, models.ErrValidation) {
			t.Errorf("(%q, %q): err = %v, want ErrValidation", tc.fileName, tc.contentType, err)
		}
	}

	var uninitialized *MinioService
	if _, err := uninitialized.IssueWriteCredential(context.Background(), "a.jpg", "image/jpeg"); !errors.Is(err, models.ErrBackend) {
		t.Errorf("uninitialized store: err = %v, want ErrBackend", err)
	}
}

func TestGetContentType(t *testing.T) {
	cases := map[string]string{
		".jpg":  "image/jpeg",
		".jpeg": "image/jpeg",
		".png":  "image/png",
		".webp": "image/webp",
		".exe":  "application/octet-stream",
		"":      "application/octet-stream",
	}
	for ext, want := range cases {
		if got := GetContentType(ext); got != want {
			t.Errorf("GetContentType(%q) = %q, want %q", ext, got, want)
		}
	}
}
