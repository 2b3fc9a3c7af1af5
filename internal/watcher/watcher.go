package watcher

import (
	"context"
	"log"
	"sync"
	"time"

	"fortuna/internal/database"
	"fortuna/internal/models"
	"fortuna/internal/reading"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Watcher delivers newly inserted readings to the processor. It tails the
// readings collection change stream and runs each insert on its own
// goroutine, bounded by a concurrency semaphore. Delivery is at-least-once:
// the processor's idempotency guard handles duplicates.
type Watcher struct {
	collection *mongo.Collection
	processor  *reading.Processor
	sem        chan struct{}

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// streamRetryDelay is the pause before reopening a broken change stream
const streamRetryDelay = 5 * time.Second

// New creates a watcher over the readings collection
func New(mongodb *database.MongoDB, processor *reading.Processor, maxConcurrent int) *Watcher {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &Watcher{
		collection: mongodb.Collection(database.CollectionReadings),
		processor:  processor,
		sem:        make(chan struct{}, maxConcurrent),
	}
}

// Start begins tailing the change stream in the background
func (w *Watcher) Start(ctx context.Context) {
	ctx, w.cancel = context.WithCancel(ctx)

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.watchLoop(ctx)
	}()

	log.Printf("👀 [WATCHER] Watching %s for new readings (max %d concurrent)",
		database.CollectionReadings, cap(w.sem))
}

// Stop cancels the stream and waits for in-flight readings to finish
func (w *Watcher) Stop() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
	log.Println("✅ [WATCHER] Stopped")
}

// watchLoop reopens the change stream after transient failures until the
// context is cancelled
func (w *Watcher) watchLoop(ctx context.Context) {
	pipeline := mongo.Pipeline{
		bson.D{{Key: "$match", Value: bson.D{{Key: "operationType", Value: "insert"}}}},
	}

	for ctx.Err() == nil {
		stream, err := w.collection.Watch(ctx, pipeline,
			options.ChangeStream().SetFullDocument(options.UpdateLookup))
		if err != nil {
			log.Printf("⚠️ [WATCHER] Failed to open change stream: %v (retrying in %v)", err, streamRetryDelay)
			select {
			case <-time.After(streamRetryDelay):
			case <-ctx.Done():
			}
			continue
		}

		w.consume(ctx, stream)
		stream.Close(context.Background())
	}
}

// consume reads events until the stream breaks or the context ends
func (w *Watcher) consume(ctx context.Context, stream *mongo.ChangeStream) {
	for stream.Next(ctx) {
		var event struct {
			FullDocument models.Reading `bson:"fullDocument"`
		}
		if err := stream.Decode(&event); err != nil {
			log.Printf("⚠️ [WATCHER] Failed to decode change event: %v", err)
			continue
		}
		w.dispatch(ctx, event.FullDocument)
	}

	if err := stream.Err(); err != nil && ctx.Err() == nil {
		log.Printf("⚠️ [WATCHER] Change stream broke: %v", err)
	}
}

// dispatch runs one reading on its own goroutine, respecting the
// concurrency bound
func (w *Watcher) dispatch(ctx context.Context, r models.Reading) {
	select {
	case w.sem <- struct{}{}:
	case <-ctx.Done():
		return
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer func() { <-w.sem }()

		if err := w.processor.Handle(ctx, &r); err != nil {
			log.Printf("❌ [WATCHER] Reading %s handler failed: %v", r.ID.Hex(), err)
		}
	}()
}
