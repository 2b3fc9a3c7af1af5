package reading

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"fortuna/internal/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// fakePhotoSource serves photo bytes from memory
type fakePhotoSource struct {
	photos    map[string][]byte
	downloads int
}

func (f *fakePhotoSource) Download(ctx context.Context, path string) ([]byte, error) {
	f.downloads++
	data, ok := f.photos[path]
	if !ok {
		return nil, fmt.Errorf("photo %s not found", path)
	}
	return data, nil
}

// fakeGenerator records registrations and returns a canned response
type fakeGenerator struct {
	registerErrFor map[string]error // keyed by base name
	generateErr    error
	response       string

	registered []string
	released   []string
	lastParts  []AssetPart
	lastPrompt string
	generates  int
}

func (f *fakeGenerator) RegisterFile(ctx context.Context, localPath, mimeType string) (AssetPart, error) {
	base := filepath.Base(localPath)
	if err, ok := f.registerErrFor[base]; ok {
		return AssetPart{}, err
	}
	f.registered = append(f.registered, base)
	return AssetPart{
		Name:     "files/" + base,
		URI:      "https://generativelanguage.googleapis.com/v1/files/" + base,
		MIMEType: mimeType,
	}, nil
}

func (f *fakeGenerator) Generate(ctx context.Context, parts []AssetPart, prompt string) (string, error) {
	f.generates++
	f.lastParts = parts
	f.lastPrompt = prompt
	if f.generateErr != nil {
		return "", f.generateErr
	}
	if f.response == "" {
		return "a bright future awaits", nil
	}
	return f.response, nil
}

func (f *fakeGenerator) ReleaseFile(ctx context.Context, name string) error {
	f.released = append(f.released, name)
	return nil
}

// fakeStore records state transitions in memory
type fakeStore struct {
	markErr     error
	completeErr error
	failErr     error

	markCalls     int
	completeCalls int
	failCalls     int

	completedText string
	completedAI   models.AIMetadata
	failedResult  models.ReadingResult
}

func (f *fakeStore) MarkProcessing(ctx context.Context, id primitive.ObjectID) error {
	f.markCalls++
	return f.markErr
}

func (f *fakeStore) Complete(ctx context.Context, id primitive.ObjectID, text string, ai models.AIMetadata) error {
	f.completeCalls++
	f.completedText = text
	f.completedAI = ai
	return f.completeErr
}

func (f *fakeStore) Fail(ctx context.Context, id primitive.ObjectID, result models.ReadingResult) error {
	f.failCalls++
	f.failedResult = result
	return f.failErr
}

// fakeLocker simulates the distributed processing lock
type fakeLocker struct {
	mu       sync.Mutex
	denied   bool
	acquired []string
	released []string
}

func (f *fakeLocker) AcquireLock(ctx context.Context, key, value string, expiration time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.denied {
		return false, nil
	}
	f.acquired = append(f.acquired, key)
	return true, nil
}

func (f *fakeLocker) ReleaseLock(ctx context.Context, key, value string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.released = append(f.released, key)
	return true, nil
}
