package notes

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	gcsapi "google.golang.org/api/storage/v1"
)

const maxAppendConflicts = 3

// GCSStore keeps each note as one object. Objects are immutable, so Append
// rewrites the object guarded by a generation precondition and retries when
// a concurrent writer wins.
type GCSStore struct {
	bucketName string
	prefix     string
	service    *gcsapi.Service
}

func NewGCSStore(ctx context.Context, bucketName, prefix string, opts ...option.ClientOption) (*GCSStore, error) {
	trimmedBucket := strings.TrimSpace(bucketName)
	if trimmedBucket == "" {
		return nil, errors.New("gcs bucket is required")
	}

	service, err := gcsapi.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create gcs service: %w", err)
	}

	store := &GCSStore{bucketName: trimmedBucket, prefix: strings.Trim(strings.TrimSpace(prefix), "/"), service: service}
	if err := store.Probe(ctx); err != nil {
		return nil, err
	}
	return store, nil
}

func (s *GCSStore) Backend() string {
	return "gcs"
}

func (s *GCSStore) objectPath(name string) string {
	if s.prefix == "" {
		return name
	}
	return path.Join(s.prefix, name)
}

func (s *GCSStore) Append(ctx context.Context, name, text string) (string, error) {
	cleanName := strings.Trim(strings.TrimSpace(name), "/")
	if cleanName == "" || strings.Contains(cleanName, "/") {
		return "", fmt.Errorf("invalid note name %q", name)
	}
	objectPath := s.objectPath(cleanName)

	for attempt := 0; attempt < maxAppendConflicts; attempt++ {
		existing, generation, err := s.read(ctx, objectPath)
		if err != nil {
			return "", err
		}

		var payload bytes.Buffer
		payload.Write(existing)
		payload.WriteString(text)
		payload.WriteString(Separator)

		object := &gcsapi.Object{Name: objectPath, ContentType: "text/markdown; charset=utf-8"}
		_, err = s.service.Objects.Insert(s.bucketName, object).
			IfGenerationMatch(generation).
			Media(bytes.NewReader(payload.Bytes())).
			Context(ctx).
			Do()
		if err == nil {
			return fmt.Sprintf("gs://%s/%s", s.bucketName, objectPath), nil
		}
		if !isStatus(err, http.StatusPreconditionFailed) {
			return "", fmt.Errorf("write gcs object %q: %w", objectPath, err)
		}
	}
	return "", fmt.Errorf("write gcs object %q: too many concurrent writers", objectPath)
}

func (s *GCSStore) read(ctx context.Context, objectPath string) ([]byte, int64, error) {
	meta, err := s.service.Objects.Get(s.bucketName, objectPath).Context(ctx).Do()
	if isStatus(err, http.StatusNotFound) {
		return nil, 0, nil
	}
	if err != nil {
		return nil, 0, fmt.Errorf("read gcs object attrs %q: %w", objectPath, err)
	}

	resp, err := s.service.Objects.Get(s.bucketName, objectPath).Generation(meta.Generation).Context(ctx).Download()
	if err != nil {
		return nil, 0, fmt.Errorf("download gcs object %q: %w", objectPath, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("read gcs object %q: %w", objectPath, err)
	}
	return data, meta.Generation, nil
}

func (s *GCSStore) Probe(ctx context.Context) error {
	if _, err := s.service.Buckets.Get(s.bucketName).Context(ctx).Do(); err != nil {
		return fmt.Errorf("read gcs bucket attrs: %w", err)
	}
	return nil
}

func isStatus(err error, code int) bool {
	var apiErr *googleapi.Error
	return errors.As(err, &apiErr) && apiErr.Code == code
}
