// Package storage — клиент объектного хранилища (S3-совместимого):
// валидация байтов, загрузка, подписанные ссылки, удаление.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const maxFileSize = 16 << 20 // 16MB

var (
	ErrEmptyFile      = errors.New("file is empty")
	ErrTooLarge       = errors.New("file too large")
	ErrBadFilename    = errors.New("invalid filename")
	ErrTypeNotAllowed = errors.New("file type not allowed")
)

var allowedMIMETypes = map[string]struct{}{
	"application/pdf": {},
	"image/png":       {},
	"image/jpeg":      {},
	"image/gif":       {},
	"text/plain":      {},
	"text/csv":        {},
	"application/msword": {},
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": {},
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":       {},
	"application/zip": {},
}

type Descriptor struct {
	Key          string `json:"key"`
	URL          string `json:"url"`
	OriginalName string `json:"original_name"`
	MIME         string `json:"mime"`
	Size         int64  `json:"size"`
}

type Manager struct {
	client  *minio.Client
	bucket  string
	signTTL time.Duration
}

func New(endpoint, accessKey, secretKey, bucket string, useSSL bool, signTTL time.Duration) (*Manager, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("storage client: %w", err)
	}
	if signTTL <= 0 {
		signTTL = time.Hour
	}
	return &Manager{client: client, bucket: bucket, signTTL: signTTL}, nil
}

var unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

func sanitizeFilename(name string) string {
	name = strings.ReplaceAll(name, " ", "_")
	name = unsafeChars.ReplaceAllString(name, "")
	name = strings.Trim(name, "._-")
	return name
}

// Validate проверяет байты до загрузки; возвращает определённый MIME.
// Тип определяется по содержимому, не по расширению.
func Validate(data []byte, filename string) (string, error) {
	safe := sanitizeFilename(filename)
	if safe == "" || !strings.Contains(safe, ".") {
		return "", ErrBadFilename
	}
	if len(data) == 0 {
		return "", ErrEmptyFile
	}
	if int64(len(data)) > maxFileSize {
		return "", ErrTooLarge
	}

	detected := mimetype.Detect(data)
	mime := detected.String()
	// mimetype может добавить параметры ("text/plain; charset=utf-8")
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = strings.TrimSpace(mime[:i])
	}
	if _, ok := allowedMIMETypes[mime]; !ok {
		return "", fmt.Errorf("%w: %s", ErrTypeNotAllowed, mime)
	}
	return mime, nil
}

// ValidateAndUpload кладёт объект под ключом user_{owner}/{ts}_{name}.
func (m *Manager) ValidateAndUpload(ctx context.Context, data []byte, filename, ownerID string) (*Descriptor, error) {
	mime, err := Validate(data, filename)
	if err != nil {
		return nil, err
	}

	safe := sanitizeFilename(filename)
	key := fmt.Sprintf("user_%s/%s_%s", ownerID, time.Now().Format("20060102_150405"), safe)

	_, err = m.client.PutObject(ctx, m.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType:        mime,
		ContentDisposition: "inline",
	})
	if err != nil {
		return nil, fmt.Errorf("upload: %w", err)
	}

	return &Descriptor{
		Key:          key,
		URL:          m.client.EndpointURL().String() + "/" + m.bucket + "/" + key,
		OriginalName: safe,
		MIME:         mime,
		Size:         int64(len(data)),
	}, nil
}

// SignURL — подписанная ссылка на скачивание с ограниченным сроком.
func (m *Manager) SignURL(ctx context.Context, key string) (string, error) {
	u, err := m.client.PresignedGetObject(ctx, m.bucket, key, m.signTTL, url.Values{})
	if err != nil {
		return "", fmt.Errorf("sign url: %w", err)
	}
	return u.String(), nil
}

func (m *Manager) Delete(ctx context.Context, key string) error {
	return m.client.RemoveObject(ctx, m.bucket, key, minio.RemoveObjectOptions{})
}
