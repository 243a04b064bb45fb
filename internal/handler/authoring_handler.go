package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/stemsi/courseware-backend/internal/middleware"
	"github.com/stemsi/courseware-backend/internal/model"
	"github.com/stemsi/courseware-backend/internal/response"
	"github.com/stemsi/courseware-backend/internal/service"
	"github.com/stemsi/courseware-backend/internal/validator"
)

// AuthoringHandler handles page and block editing for teachers and admins.
type AuthoringHandler struct {
	authoringService *service.AuthoringService
	log              zerolog.Logger
}

// NewAuthoringHandler creates a new AuthoringHandler.
func NewAuthoringHandler(authoringService *service.AuthoringService, log zerolog.Logger) *AuthoringHandler {
	return &AuthoringHandler{
		authoringService: authoringService,
		log:              log.With().Str("component", "authoring_handler").Logger(),
	}
}

// CreatePage godoc
// POST /api/v1/sections/:id/pages
// Appends a page at the end of the section.
func (h *AuthoringHandler) CreatePage(c *gin.Context) {
	actor, sectionID, ok := actorAndID(c)
	if !ok {
		return
	}

	var req model.CreatePageRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	page, err := h.authoringService.CreatePage(c.Request.Context(), actor, sectionID, req)
	if err != nil {
		failService(c, h.log, err)
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"page": page})
}

// ReorderPages godoc
// POST /api/v1/sections/:id/pages/reorder
// Moves one page within its section and renumbers the list.
func (h *AuthoringHandler) ReorderPages(c *gin.Context) {
	actor, sectionID, ok := actorAndID(c)
	if !ok {
		return
	}

	var req model.ReorderRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	pages, err := h.authoringService.ReorderPages(c.Request.Context(), actor, sectionID, *req.SourceIndex, *req.DestinationIndex)
	if err != nil {
		failService(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"pages": pages})
}

// AddBlock godoc
// POST /api/v1/pages/:id/blocks
// Appends a block of the requested type with that type's defaults.
func (h *AuthoringHandler) AddBlock(c *gin.Context) {
	actor, pageID, ok := actorAndID(c)
	if !ok {
		return
	}

	var req model.CreateBlockRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	b, err := h.authoringService.AddBlock(c.Request.Context(), actor, pageID, req.Type)
	if err != nil {
		failService(c, h.log, err)
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"block": b})
}

// ReorderBlocks godoc
// POST /api/v1/pages/:id/blocks/reorder
func (h *AuthoringHandler) ReorderBlocks(c *gin.Context) {
	actor, pageID, ok := actorAndID(c)
	if !ok {
		return
	}

	var req model.ReorderRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	blocks, err := h.authoringService.ReorderBlocks(c.Request.Context(), actor, pageID, *req.SourceIndex, *req.DestinationIndex)
	if err != nil {
		failService(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"blocks": blocks})
}

// UpdateBlock godoc
// PUT /api/v1/blocks/:id
// Replaces every editable field of the block in one write.
func (h *AuthoringHandler) UpdateBlock(c *gin.Context) {
	actor, blockID, ok := actorAndID(c)
	if !ok {
		return
	}

	var req model.UpdateBlockRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	b, err := h.authoringService.UpdateBlock(c.Request.Context(), actor, blockID, req)
	if err != nil {
		failService(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"block": b})
}

// actorAndID reads the caller and the :id path parameter, writing the
// error response when either is missing.
func actorAndID(c *gin.Context) (service.Actor, uuid.UUID, bool) {
	actor, ok := middleware.GetActor(c)
	if !ok {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return service.Actor{}, uuid.Nil, false
	}
	id, ok := validator.ParamUUID(c, "id")
	if !ok {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return service.Actor{}, uuid.Nil, false
	}
	return actor, id, true
}
