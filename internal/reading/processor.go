package reading

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"fortuna/internal/models"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ErrorCategory is the fixed error string written into a failed reading's
// result payload.
const ErrorCategory = "Failed to process with Gemini AI"

// ErrAlreadyFinalized is returned by Store implementations when a terminal
// write found that the reading already carried a result. The write is a
// no-op in that case; the first result wins.
var ErrAlreadyFinalized = errors.New("reading already carries a result")

// lockTTL bounds how long a processing lock may outlive a crashed holder
const lockTTL = 5 * time.Minute

// Store persists reading state transitions
type Store interface {
	// MarkProcessing sets status=processing unless a result already exists
	MarkProcessing(ctx context.Context, id primitive.ObjectID) error
	// Complete writes the success result, AI metadata and status=completed
	// in one update, conditional on the result still being absent
	Complete(ctx context.Context, id primitive.ObjectID, text string, ai models.AIMetadata) error
	// Fail writes the error payload and status=error in one update,
	// conditional on the result still being absent
	Fail(ctx context.Context, id primitive.ObjectID, result models.ReadingResult) error
}

// Generator is the AI service boundary: file staging plus one blocking
// generation call. No retries, no streaming.
type Generator interface {
	RegisterFile(ctx context.Context, localPath, mimeType string) (AssetPart, error)
	Generate(ctx context.Context, parts []AssetPart, prompt string) (string, error)
	ReleaseFile(ctx context.Context, name string) error
}

// Locker is an optional distributed lock narrowing the window in which two
// concurrent first-arrivals could both start work on one reading
type Locker interface {
	AcquireLock(ctx context.Context, key, value string, expiration time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, key, value string) (bool, error)
}

// MetricsRecorder receives processing outcome counts
type MetricsRecorder interface {
	ReadingCompleted(duration time.Duration)
	ReadingFailed()
	ReadingSkipped()
	PhotosSkipped(n int)
}

// Processor runs one reading through the pipeline:
// idempotency guard → normalize → materialize photos → compose prompt →
// generate → persist terminal state, with unconditional temp-file cleanup.
type Processor struct {
	store     Store
	photos    PhotoSource
	generator Generator // nil when no API key was configured

	model    string
	mimeType string
	tempDir  string

	locker  Locker
	metrics MetricsRecorder
	now     func() time.Time
}

// NewProcessor creates a processor with its required dependencies.
// generator may be nil; every reading then terminates in the error state
// before any external call is made.
func NewProcessor(store Store, photos PhotoSource, generator Generator, model, mimeType, tempDir string) *Processor {
	return &Processor{
		store:     store,
		photos:    photos,
		generator: generator,
		model:     model,
		mimeType:  mimeType,
		tempDir:   tempDir,
		now:       time.Now,
	}
}

// SetLocker wires an optional per-reading processing lock
func (p *Processor) SetLocker(l Locker) {
	p.locker = l
}

// SetMetrics wires outcome counters
func (p *Processor) SetMetrics(m MetricsRecorder) {
	p.metrics = m
}

// Handle processes one newly arrived reading to a terminal state. The
// returned error is non-nil only when persistence itself failed; every
// other failure is recorded on the reading as status=error.
func (p *Processor) Handle(ctx context.Context, r *models.Reading) error {
	if r.HasResult() {
		log.Printf("⏭️ [PROCESS] Reading %s already has a result, skipping", r.ID.Hex())
		if p.metrics != nil {
			p.metrics.ReadingSkipped()
		}
		return nil
	}

	invocationID := uuid.NewString()
	started := p.now()

	if p.locker != nil {
		key := "fortuna:reading:" + r.ID.Hex()
		acquired, err := p.locker.AcquireLock(ctx, key, invocationID, lockTTL)
		if err != nil {
			// Lock service trouble degrades to the best-effort guard
			log.Printf("⚠️ [PROCESS] Lock unavailable for reading %s: %v", r.ID.Hex(), err)
		} else if !acquired {
			log.Printf("⏭️ [PROCESS] Reading %s is locked by another invocation, skipping", r.ID.Hex())
			if p.metrics != nil {
				p.metrics.ReadingSkipped()
			}
			return nil
		} else {
			defer func() {
				if _, err := p.locker.ReleaseLock(context.Background(), key, invocationID); err != nil {
					log.Printf("⚠️ [PROCESS] Failed to release lock for reading %s: %v", r.ID.Hex(), err)
				}
			}()
		}
	}

	if err := p.store.MarkProcessing(ctx, r.ID); err != nil {
		if errors.Is(err, ErrAlreadyFinalized) {
			log.Printf("⏭️ [PROCESS] Reading %s was finalized concurrently, skipping", r.ID.Hex())
			return nil
		}
		return fmt.Errorf("failed to mark reading %s as processing: %w", r.ID.Hex(), err)
	}

	log.Printf("🔮 [PROCESS] Processing reading %s (invocation %s, %d photos)",
		r.ID.Hex(), invocationID, len(r.PhotoPaths))

	// Missing API key: terminal error before any external call
	if p.generator == nil {
		if p.metrics != nil {
			p.metrics.ReadingFailed()
		}
		return p.fail(ctx, r.ID, errors.New("GEMINI_API_KEY is not configured"))
	}

	attrs := NormalizeAttributes(r, p.now())

	assets := MaterializePhotos(ctx, p.photos, p.generator, p.tempDir, p.mimeType, invocationID, r.PhotoPaths)
	defer func() {
		n := RemoveTempFiles(assets.TempDir, assets.TempPaths)
		if n > 0 {
			log.Printf("🧹 [CLEANUP] Attempted %d temp file deletion(s) for reading %s", n, r.ID.Hex())
		}
	}()
	defer p.releaseRemote(assets.Parts)

	if assets.Skipped > 0 && p.metrics != nil {
		p.metrics.PhotosSkipped(assets.Skipped)
	}

	prompt := ComposePrompt(attrs)

	text, err := p.generator.Generate(ctx, assets.Parts, prompt)
	if err != nil {
		if p.metrics != nil {
			p.metrics.ReadingFailed()
		}
		return p.fail(ctx, r.ID, err)
	}

	ai := models.AIMetadata{
		PromptText:    prompt,
		ProcessedAt:   p.now().UTC(),
		Source:        p.model,
		PhotosSkipped: assets.Skipped,
	}
	if err := p.store.Complete(ctx, r.ID, text, ai); err != nil {
		if errors.Is(err, ErrAlreadyFinalized) {
			log.Printf("⏭️ [PROCESS] Reading %s was finalized concurrently, dropping result", r.ID.Hex())
			return nil
		}
		return fmt.Errorf("failed to persist result for reading %s: %w", r.ID.Hex(), err)
	}

	if p.metrics != nil {
		p.metrics.ReadingCompleted(p.now().Sub(started))
	}
	log.Printf("✅ [PROCESS] Reading %s completed (%d chars, %d photo(s), %d skipped)",
		r.ID.Hex(), len(text), len(assets.Parts), assets.Skipped)
	return nil
}

// fail records the terminal error state. Only a persistence failure is
// returned to the caller; the cause itself lives on the reading.
func (p *Processor) fail(ctx context.Context, id primitive.ObjectID, cause error) error {
	log.Printf("❌ [PROCESS] Reading %s failed: %v", id.Hex(), cause)

	processedAt := p.now().UTC()
	result := models.ReadingResult{
		Error:        ErrorCategory,
		ErrorDetails: cause.Error(),
		ProcessedAt:  &processedAt,
		Source:       p.model,
	}

	if err := p.store.Fail(ctx, id, result); err != nil {
		if errors.Is(err, ErrAlreadyFinalized) {
			return nil
		}
		return fmt.Errorf("failed to persist error for reading %s: %w", id.Hex(), err)
	}
	return nil
}

// releaseRemote deletes the staged remote copies registered with the AI
// service, to the extent the API allows. Best-effort.
func (p *Processor) releaseRemote(parts []AssetPart) {
	for _, part := range parts {
		if part.Name == "" {
			continue
		}
		if err := p.generator.ReleaseFile(context.Background(), part.Name); err != nil {
			log.Printf("⚠️ [CLEANUP] Failed to release remote file %s: %v", part.Name, err)
		}
	}
}
