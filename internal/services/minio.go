package services

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/HairScan-Mara/Scan-Service/internal/models"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// CredentialTTL is how long an issued write credential stays valid.
const CredentialTTL = 15 * time.Minute

type MinioService struct {
	Client     *minio.Client
	BucketName string
}

var minioInstance *MinioService

func InitializeMinio(endpoint, accessKey, secretKey, bucket string, useSSL bool) error {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return fmt.Errorf("failed to create MinIO client: %v", err)
	}

	// Create bucket if it doesn't exist
	exists, err := client.BucketExists(context.Background(), bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket existence: %v", err)
	}

	if !exists {
		err = client.MakeBucket(context.Background(), bucket, minio.MakeBucketOptions{})
		if err != nil {
			return fmt.Errorf("failed to create bucket: %v", err)
		}
		log.Printf("Created bucket: %s", bucket)
	}

	minioInstance = &MinioService{
		Client:     client,
		BucketName: bucket,
	}

	log.Println("Connected to MinIO successfully")
	return nil
}

func GetMinioService() *MinioService {
	return minioInstance
}

// CheckConnection is used by the readiness endpoint.
func (m *MinioService) CheckConnection(ctx context.Context) error {
	if m == nil || m.Client == nil {
		return fmt.Errorf("minio service not initialized")
	}
	_, err := m.Client.BucketExists(ctx, m.BucketName)
	return err
}

// IssueWriteCredential mints a presigned PUT URL for one named object,
// valid for CredentialTTL and bound to the declared content type. The
// signature is computed locally; no object-store round trip happens here
// and no local state is mutated.
func (m *MinioService) IssueWriteCredential(ctx context.Context, fileName, contentType string) (models.WriteCredential, error) {
	if strings.TrimSpace(fileName) == "" || strings.TrimSpace(contentType) == "" {
		return models.WriteCredential{}, fmt.Errorf("%w: fileName and contentType are required", models.ErrValidation)
	}
	if m == nil || m.Client == nil {
		return models.WriteCredential{}, fmt.Errorf("%w: object store not initialized", models.ErrBackend)
	}

	issuedAt := time.Now()
	signed, err := m.Client.PresignHeader(ctx, http.MethodPut, m.BucketName, fileName,
		CredentialTTL, url.Values{}, http.Header{"Content-Type": []string{contentType}})
	if err != nil {
		return models.WriteCredential{}, fmt.Errorf("%w: presign failed: %v", models.ErrBackend, err)
	}

	return models.WriteCredential{
		URL:         signed.String(),
		FileName:    fileName,
		ContentType: contentType,
		ExpiresAt:   issuedAt.Add(CredentialTTL),
	}, nil
}

func (m *MinioService) UploadObject(ctx context.Context, reader io.Reader, size int64, objectName, contentType string) error {
	_, err := m.Client.PutObject(
		ctx,
		m.BucketName,
		objectName,
		reader,
		size,
		minio.PutObjectOptions{
			ContentType: contentType,
		},
	)
	return err
}

func (m *MinioService) DownloadObject(ctx context.Context, objectName, localFilePath string) error {
	return m.Client.FGetObject(ctx, m.BucketName, objectName, localFilePath, minio.GetObjectOptions{})
}

func (m *MinioService) DeleteObject(ctx context.Context, objectName string) error {
	return m.Client.RemoveObject(ctx, m.BucketName, objectName, minio.RemoveObjectOptions{})
}

// ObjectURL is the stable reference stored on the upload record.
func (m *MinioService) ObjectURL(objectName string) string {
	return fmt.Sprintf("%s/%s/%s", m.Client.EndpointURL().String(), m.BucketName, objectName)
}

// GetContentType maps a file extension to the MIME type declared on upload.
func GetContentType(extension string) string {
	switch extension {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".bmp":
		return "image/bmp"
	case ".webp":
		return "image/webp"
	default:
		return "application/octet-stream"
	}
}
