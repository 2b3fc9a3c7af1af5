package reading

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"fortuna/internal/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

func newTestProcessor(t *testing.T, store Store, photos PhotoSource, generator Generator) *Processor {
	t.Helper()
	p := NewProcessor(store, photos, generator, "gemini-2.0-flash", "image/jpeg", t.TempDir())
	p.now = func() time.Time {
		return time.Date(2025, 8, 28, 12, 0, 0, 0, time.UTC)
	}
	return p
}

func pendingReading() *models.Reading {
	return &models.Reading{
		ID:                 primitive.NewObjectID(),
		Name:               "Mina",
		Birthdate:          "1990-05-15",
		RelationshipStatus: "single",
		EmploymentStatus:   "employed",
		Status:             models.ReadingStatusPending,
	}
}

// TestHandleSkipsReadingWithResult verifies the idempotency guard: a reading
// that already carries a result triggers no datastore mutation and no
// external calls.
func TestHandleSkipsReadingWithResult(t *testing.T) {
	store := &fakeStore{}
	photos := &fakePhotoSource{photos: map[string][]byte{"palm.jpg": {1, 2, 3}}}
	generator := &fakeGenerator{}

	r := pendingReading()
	r.PhotoPaths = []string{"palm.jpg"}
	r.Result = &models.ReadingResult{Text: "already done"}
	r.Status = models.ReadingStatusCompleted

	p := newTestProcessor(t, store, photos, generator)
	if err := p.Handle(context.Background(), r); err != nil {
		t.Fatalf("Handle should not error on a finalized reading: %v", err)
	}

	if store.markCalls != 0 || store.completeCalls != 0 || store.failCalls != 0 {
		t.Errorf("Expected no store calls, got mark=%d complete=%d fail=%d",
			store.markCalls, store.completeCalls, store.failCalls)
	}
	if photos.downloads != 0 {
		t.Errorf("Expected no photo downloads, got %d", photos.downloads)
	}
	if generator.generates != 0 {
		t.Errorf("Expected no generation calls, got %d", generator.generates)
	}
}

// TestHandleSuccess verifies the happy path: one atomic completion write
// carrying result text and AI metadata, photos staged then cleaned up.
func TestHandleSuccess(t *testing.T) {
	store := &fakeStore{}
	photos := &fakePhotoSource{photos: map[string][]byte{
		"left.jpg":  {0xFF, 0xD8, 0xFF},
		"right.jpg": {0xFF, 0xD8, 0xFF},
	}}
	generator := &fakeGenerator{response: "your career line is strong"}

	r := pendingReading()
	r.PhotoPaths = []string{"left.jpg", "right.jpg"}

	p := newTestProcessor(t, store, photos, generator)
	if err := p.Handle(context.Background(), r); err != nil {
		t.Fatalf("Handle failed: %v", err)
	}

	if store.markCalls != 1 {
		t.Errorf("Expected 1 MarkProcessing call, got %d", store.markCalls)
	}
	if store.completeCalls != 1 {
		t.Fatalf("Expected 1 Complete call, got %d", store.completeCalls)
	}
	if store.failCalls != 0 {
		t.Errorf("Expected no Fail calls, got %d", store.failCalls)
	}
	if store.completedText != "your career line is strong" {
		t.Errorf("Unexpected result text: %q", store.completedText)
	}

	ai := store.completedAI
	if ai.Source != "gemini-2.0-flash" {
		t.Errorf("Expected source 'gemini-2.0-flash', got %q", ai.Source)
	}
	if ai.PhotosSkipped != 0 {
		t.Errorf("Expected 0 skipped photos, got %d", ai.PhotosSkipped)
	}
	if ai.PromptText != generator.lastPrompt {
		t.Errorf("AI metadata prompt differs from the prompt sent to the model")
	}
	if !strings.Contains(ai.PromptText, "Mina") || !strings.Contains(ai.PromptText, "35 years old") {
		t.Errorf("Prompt missing expected attribute clauses: %q", ai.PromptText)
	}

	if len(generator.lastParts) != 2 {
		t.Errorf("Expected 2 photo parts, got %d", len(generator.lastParts))
	}
	if len(generator.released) != 2 {
		t.Errorf("Expected 2 remote file releases, got %d", len(generator.released))
	}

	// Staging dir and files must be gone
	entries, err := os.ReadDir(p.tempDir)
	if err != nil {
		t.Fatalf("Failed to read temp dir: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("Expected empty temp dir after cleanup, found %d entries", len(entries))
	}
}

// TestHandleGenerationFailure verifies that a failed model call lands in
// one atomic error write with the fixed category string.
func TestHandleGenerationFailure(t *testing.T) {
	store := &fakeStore{}
	photos := &fakePhotoSource{photos: map[string][]byte{"palm.jpg": {1}}}
	generator := &fakeGenerator{generateErr: errors.New("quota exceeded")}

	r := pendingReading()
	r.PhotoPaths = []string{"palm.jpg"}

	p := newTestProcessor(t, store, photos, generator)
	if err := p.Handle(context.Background(), r); err != nil {
		t.Fatalf("Handle should swallow generation failures: %v", err)
	}

	if store.completeCalls != 0 {
		t.Errorf("Expected no Complete call, got %d", store.completeCalls)
	}
	if store.failCalls != 1 {
		t.Fatalf("Expected 1 Fail call, got %d", store.failCalls)
	}

	result := store.failedResult
	if result.Error != ErrorCategory {
		t.Errorf("Expected error category %q, got %q", ErrorCategory, result.Error)
	}
	if !strings.Contains(result.ErrorDetails, "quota exceeded") {
		t.Errorf("Error details should carry the underlying message, got %q", result.ErrorDetails)
	}
	if result.ProcessedAt == nil {
		t.Error("Error payload should carry a processedAt timestamp")
	}
	if result.Source != "gemini-2.0-flash" {
		t.Errorf("Error payload should carry the model id, got %q", result.Source)
	}

	// Cleanup still runs on the failure path
	entries, err := os.ReadDir(p.tempDir)
	if err != nil {
		t.Fatalf("Failed to read temp dir: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("Expected empty temp dir after failed run, found %d entries", len(entries))
	}
}

// TestHandleMissingGenerator verifies the configuration-error path: with no
// Gemini client the reading fails fast before any external call.
func TestHandleMissingGenerator(t *testing.T) {
	store := &fakeStore{}
	photos := &fakePhotoSource{photos: map[string][]byte{"palm.jpg": {1}}}

	r := pendingReading()
	r.PhotoPaths = []string{"palm.jpg"}

	p := newTestProcessor(t, store, photos, nil)
	if err := p.Handle(context.Background(), r); err != nil {
		t.Fatalf("Handle should persist the config error, not return it: %v", err)
	}

	if store.failCalls != 1 {
		t.Fatalf("Expected 1 Fail call, got %d", store.failCalls)
	}
	if store.failedResult.Error != ErrorCategory {
		t.Errorf("Expected error category %q, got %q", ErrorCategory, store.failedResult.Error)
	}
	if !strings.Contains(store.failedResult.ErrorDetails, "GEMINI_API_KEY") {
		t.Errorf("Error details should name the missing key, got %q", store.failedResult.ErrorDetails)
	}
	if photos.downloads != 0 {
		t.Errorf("Expected no external calls before the config check, got %d downloads", photos.downloads)
	}
}

// TestHandleDegradedPhotos verifies per-photo failure isolation: an
// unresolvable reference is skipped and the reading still completes with
// the resolvable subset.
func TestHandleDegradedPhotos(t *testing.T) {
	store := &fakeStore{}
	photos := &fakePhotoSource{photos: map[string][]byte{"good.jpg": {1, 2}}}
	generator := &fakeGenerator{}

	r := pendingReading()
	r.PhotoPaths = []string{"good.jpg", "missing.jpg"}

	p := newTestProcessor(t, store, photos, generator)
	if err := p.Handle(context.Background(), r); err != nil {
		t.Fatalf("Handle failed: %v", err)
	}

	if store.completeCalls != 1 {
		t.Fatalf("Expected the reading to complete, got complete=%d fail=%d",
			store.completeCalls, store.failCalls)
	}
	if store.completedAI.PhotosSkipped != 1 {
		t.Errorf("Expected 1 skipped photo in AI metadata, got %d", store.completedAI.PhotosSkipped)
	}
	if len(generator.lastParts) != 1 {
		t.Errorf("Expected 1 photo part, got %d", len(generator.lastParts))
	}
}

// TestHandleAllPhotosFailed verifies that a fully failed photo list
// degrades to a text-only request rather than aborting the reading.
func TestHandleAllPhotosFailed(t *testing.T) {
	store := &fakeStore{}
	photos := &fakePhotoSource{photos: map[string][]byte{}}
	generator := &fakeGenerator{}

	r := pendingReading()
	r.PhotoPaths = []string{"a.jpg", "b.jpg"}

	p := newTestProcessor(t, store, photos, generator)
	if err := p.Handle(context.Background(), r); err != nil {
		t.Fatalf("Handle failed: %v", err)
	}

	if store.completeCalls != 1 {
		t.Fatalf("Expected completion despite failed photos, got complete=%d fail=%d",
			store.completeCalls, store.failCalls)
	}
	if len(generator.lastParts) != 0 {
		t.Errorf("Expected a text-only request, got %d parts", len(generator.lastParts))
	}
	if store.completedAI.PhotosSkipped != 2 {
		t.Errorf("Expected 2 skipped photos, got %d", store.completedAI.PhotosSkipped)
	}
}

// TestHandleConcurrentlyFinalized verifies that losing the terminal-write
// race is treated as a benign skip.
func TestHandleConcurrentlyFinalized(t *testing.T) {
	store := &fakeStore{markErr: ErrAlreadyFinalized}
	generator := &fakeGenerator{}

	p := newTestProcessor(t, store, &fakePhotoSource{}, generator)
	if err := p.Handle(context.Background(), pendingReading()); err != nil {
		t.Fatalf("A concurrently finalized reading should not error: %v", err)
	}

	if generator.generates != 0 {
		t.Errorf("Expected no generation after losing the race, got %d", generator.generates)
	}
}

// TestHandlePersistenceFailurePropagates verifies that a failed terminal
// write is the one error the handler surfaces to its caller.
func TestHandlePersistenceFailurePropagates(t *testing.T) {
	store := &fakeStore{completeErr: errors.New("connection reset")}
	generator := &fakeGenerator{}

	p := newTestProcessor(t, store, &fakePhotoSource{}, generator)
	err := p.Handle(context.Background(), pendingReading())
	if err == nil {
		t.Fatal("Expected a persistence error to propagate")
	}
	if !strings.Contains(err.Error(), "connection reset") {
		t.Errorf("Propagated error should wrap the cause, got %v", err)
	}
}

// TestHandleLockDenied verifies that a held processing lock skips the
// reading without touching the store.
func TestHandleLockDenied(t *testing.T) {
	store := &fakeStore{}
	locker := &fakeLocker{denied: true}

	p := newTestProcessor(t, store, &fakePhotoSource{}, &fakeGenerator{})
	p.SetLocker(locker)

	if err := p.Handle(context.Background(), pendingReading()); err != nil {
		t.Fatalf("A locked reading should be skipped, not errored: %v", err)
	}
	if store.markCalls != 0 {
		t.Errorf("Expected no store calls while locked, got %d", store.markCalls)
	}
}

// TestHandleLockAcquiredAndReleased verifies the lock lifecycle around a
// normal run.
func TestHandleLockAcquiredAndReleased(t *testing.T) {
	store := &fakeStore{}
	locker := &fakeLocker{}

	p := newTestProcessor(t, store, &fakePhotoSource{}, &fakeGenerator{})
	p.SetLocker(locker)

	r := pendingReading()
	if err := p.Handle(context.Background(), r); err != nil {
		t.Fatalf("Handle failed: %v", err)
	}

	wantKey := "fortuna:reading:" + r.ID.Hex()
	if len(locker.acquired) != 1 || locker.acquired[0] != wantKey {
		t.Errorf("Expected lock %q acquired once, got %v", wantKey, locker.acquired)
	}
	if len(locker.released) != 1 || locker.released[0] != wantKey {
		t.Errorf("Expected lock %q released once, got %v", wantKey, locker.released)
	}
}
