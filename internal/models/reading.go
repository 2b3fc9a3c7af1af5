package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ReadingStatus represents the processing state of a fortune reading
type ReadingStatus string

const (
	ReadingStatusPending    ReadingStatus = "pending"
	ReadingStatusProcessing ReadingStatus = "processing"
	ReadingStatusCompleted  ReadingStatus = "completed"
	ReadingStatusError      ReadingStatus = "error"
)

// Reading represents one fortune-telling request and its eventual result.
// All user-supplied fields are optional; the document is created externally
// (client app) and mutated exactly once by this service.
type Reading struct {
	ID primitive.ObjectID `bson:"_id,omitempty" json:"id"`

	// User-supplied attributes
	Name               string `bson:"name,omitempty" json:"name,omitempty"`
	Birthdate          string `bson:"birthdate,omitempty" json:"birthdate,omitempty"` // YYYY-MM-DD
	RelationshipStatus string `bson:"relationshipStatus,omitempty" json:"relationship_status,omitempty"`
	EmploymentStatus   string `bson:"employmentStatus,omitempty" json:"employment_status,omitempty"`

	// Palm photo references, resolvable in the photo bucket
	PhotoPaths []string `bson:"photoPaths,omitempty" json:"photo_paths,omitempty"`

	// Processing state
	Status ReadingStatus  `bson:"status,omitempty" json:"status"`
	Result *ReadingResult `bson:"result,omitempty" json:"result,omitempty"`
	AI     *AIMetadata    `bson:"ai,omitempty" json:"ai,omitempty"`

	CreatedAt time.Time `bson:"createdAt" json:"created_at"`
}

// ReadingResult is the terminal outcome of a reading. On success only Text
// is set; on failure Error carries the fixed category string and
// ErrorDetails the underlying message.
type ReadingResult struct {
	Text         string     `bson:"text,omitempty" json:"text,omitempty"`
	Error        string     `bson:"error,omitempty" json:"error,omitempty"`
	ErrorDetails string     `bson:"errorDetails,omitempty" json:"error_details,omitempty"`
	ProcessedAt  *time.Time `bson:"processedAt,omitempty" json:"processed_at,omitempty"`
	Source       string     `bson:"source,omitempty" json:"source,omitempty"`
}

// AIMetadata records how a successful result was produced, for auditability
type AIMetadata struct {
	PromptText    string    `bson:"promptText" json:"prompt_text"`
	ProcessedAt   time.Time `bson:"processedAt" json:"processed_at"`
	Source        string    `bson:"source" json:"source"` // model identifier
	PhotosSkipped int       `bson:"photosSkipped,omitempty" json:"photos_skipped,omitempty"`
}

// HasResult reports whether the reading already carries a terminal result.
// A reading with a result is never reprocessed.
func (r *Reading) HasResult() bool {
	return r.Result != nil
}
