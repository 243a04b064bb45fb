package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/stemsi/courseware-backend/internal/model"
	"github.com/stemsi/courseware-backend/internal/response"
	"github.com/stemsi/courseware-backend/internal/service"
	"github.com/stemsi/courseware-backend/internal/validator"
)

// multipartSlack covers form boundaries and headers around the file part.
const multipartSlack = 1 << 20

// SubmissionHandler handles answer and video submissions.
type SubmissionHandler struct {
	submissionService *service.SubmissionService
	maxVideoBytes     int64
	log               zerolog.Logger
}

// NewSubmissionHandler creates a new SubmissionHandler.
func NewSubmissionHandler(submissionService *service.SubmissionService, maxVideoBytes int64, log zerolog.Logger) *SubmissionHandler {
	return &SubmissionHandler{
		submissionService: submissionService,
		maxVideoBytes:     maxVideoBytes,
		log:               log.With().Str("component", "submission_handler").Logger(),
	}
}

// Submit godoc
// POST /api/v1/blocks/:id/submission
// Grades the answer against the block's current key and upserts the
// caller's submission.
func (h *SubmissionHandler) Submit(c *gin.Context) {
	actor, blockID, ok := actorAndID(c)
	if !ok {
		return
	}

	var req model.SubmitAnswerRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	sub, err := h.submissionService.Submit(c.Request.Context(), actor, blockID, req.Answer)
	if err != nil {
		failService(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"submission": sub})
}

// SubmitVideo godoc
// POST /api/v1/blocks/:id/video
// Accepts a multipart "video" file, stores it and records its URL.
func (h *SubmissionHandler) SubmitVideo(c *gin.Context) {
	actor, blockID, ok := actorAndID(c)
	if !ok {
		return
	}

	if h.maxVideoBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxVideoBytes+multipartSlack)
	}
	file, header, err := c.Request.FormFile("video")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.Fail(c, http.StatusRequestEntityTooLarge, response.ErrFileTooLarge)
			return
		}
		response.Fail(c, http.StatusBadRequest, response.ErrFileRequired)
		return
	}
	defer file.Close()

	sub, err := h.submissionService.SubmitVideo(c.Request.Context(), actor, blockID, service.VideoUpload{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Body:        file,
	})
	if err != nil {
		failService(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"submission": sub})
}

// GetSubmission godoc
// GET /api/v1/blocks/:id/submission
// Returns the caller's own submission for the block.
func (h *SubmissionHandler) GetSubmission(c *gin.Context) {
	actor, blockID, ok := actorAndID(c)
	if !ok {
		return
	}

	sub, err := h.submissionService.Get(c.Request.Context(), actor, blockID)
	if err != nil {
		failService(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"submission": sub})
}
