package handlers

import (
	"context"
	"log"

	"fortuna/internal/models"
	"fortuna/internal/reading"
	"fortuna/internal/services"

	"github.com/gofiber/fiber/v2"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ReadingHandler exposes the operational HTTP surface over readings.
// Creation inserts the document; processing is then triggered by the
// change stream, exactly as for readings created by client apps.
type ReadingHandler struct {
	store     *services.ReadingStore
	processor *reading.Processor
}

// NewReadingHandler creates a new reading handler
func NewReadingHandler(store *services.ReadingStore, processor *reading.Processor) *ReadingHandler {
	return &ReadingHandler{store: store, processor: processor}
}

// CreateReadingRequest is the submission payload; every field is optional
type CreateReadingRequest struct {
	Name               string   `json:"name"`
	Birthdate          string   `json:"birthdate"`
	RelationshipStatus string   `json:"relationship_status"`
	EmploymentStatus   string   `json:"employment_status"`
	PhotoPaths         []string `json:"photo_paths"`
}

// Create inserts a new pending reading
func (h *ReadingHandler) Create(c *fiber.Ctx) error {
	var req CreateReadingRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}

	r := &models.Reading{
		Name:               req.Name,
		Birthdate:          req.Birthdate,
		RelationshipStatus: req.RelationshipStatus,
		EmploymentStatus:   req.EmploymentStatus,
		PhotoPaths:         req.PhotoPaths,
	}

	if err := h.store.Create(c.Context(), r); err != nil {
		log.Printf("❌ [API] Failed to create reading: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to create reading",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(r)
}

// Get returns one reading by id
func (h *ReadingHandler) Get(c *fiber.Ctx) error {
	id, err := primitive.ObjectIDFromHex(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid reading id",
		})
	}

	r, err := h.store.GetByID(c.Context(), id)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "reading not found",
		})
	}

	return c.JSON(r)
}

// Reprocess clears a reading's result and runs it through the pipeline
// again. The change stream only fires on inserts, so the handler invokes
// the processor directly.
func (h *ReadingHandler) Reprocess(c *fiber.Ctx) error {
	id, err := primitive.ObjectIDFromHex(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid reading id",
		})
	}

	if err := h.store.ClearResult(c.Context(), id); err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "reading not found",
		})
	}

	r, err := h.store.GetByID(c.Context(), id)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to reload reading",
		})
	}

	go func() {
		if err := h.processor.Handle(context.Background(), r); err != nil {
			log.Printf("❌ [API] Reprocess of reading %s failed: %v", r.ID.Hex(), err)
		}
	}()

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"status": "reprocessing",
		"id":     r.ID.Hex(),
	})
}
