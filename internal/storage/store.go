package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/minio/minio-go/v7"
)

// Namespaces артефактов.
const (
	// NamespaceDeps — артефакты, материализованные dependency resolver'ами.
	NamespaceDeps = "deps"

	// NamespaceInputs — входные артефакты, загруженные при создании snapshot.
	NamespaceInputs = "inputs"

	// NamespaceResults — результаты compute-функций.
	NamespaceResults = "results"
)

// Ref — ссылка на артефакт вида "s3://<bucket>/<key>".
type Ref string

// Key возвращает ключ объекта без bucket-префикса.
// Второй результат — false, если ссылка не в ожидаемом формате.
func (r Ref) Key() (string, bool) {
	rest, ok := strings.CutPrefix(string(r), "s3://")
	if !ok {
		return "", false
	}
	_, key, ok := strings.Cut(rest, "/")
	if !ok || key == "" {
		return "", false
	}
	return key, true
}

// ArtifactKey строит детерминированный ключ артефакта.
// Один и тот же (namespace, snapshotID, name) всегда даёт один ключ —
// это основа идемпотентности dependency resolver'ов.
func ArtifactKey(namespace, snapshotID, name string) string {
	return fmt.Sprintf("%s/%s/%s", namespace, snapshotID, name)
}

// ObjectStore — минимальный контракт хранилища артефактов.
// Выделен в интерфейс ради тестов с in-memory фейком.
type ObjectStore interface {
	// Put записывает объект по ключу (перезаписью) и возвращает ссылку.
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (Ref, error)

	// Get открывает объект на чтение.
	Get(ctx context.Context, key string) (io.ReadCloser, error)
}

// Store — ObjectStore поверх MinIO-клиента и одного bucket.
type Store struct {
	client *minio.Client
	bucket string
}

// NewStore создаёт Store.
func NewStore(client *minio.Client, bucket string) *Store {
	return &Store{client: client, bucket: bucket}
}

// Put записывает объект.
func (s *Store) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (Ref, error) {
	_, err := s.client.PutObject(ctx, s.bucket, key, r, size,
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return "", fmt.Errorf("put object %s: %w", key, err)
	}
	return Ref("s3://" + s.bucket + "/" + key), nil
}

// Get открывает объект на чтение.
func (s *Store) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get object %s: %w", key, err)
	}
	return obj, nil
}

// PutJSON сериализует значение в JSON и записывает его по ключу.
func PutJSON(ctx context.Context, store ObjectStore, key string, v any) (Ref, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("marshal %s: %w", key, err)
	}
	return store.Put(ctx, key, bytes.NewReader(data), int64(len(data)), "application/json")
}

// GetJSON читает объект и десериализует его из JSON.
func GetJSON(ctx context.Context, store ObjectStore, key string, v any) error {
	rc, err := store.Get(ctx, key)
	if err != nil {
		return err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return fmt.Errorf("read object %s: %w", key, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("unmarshal %s: %w", key, err)
	}
	return nil
}
