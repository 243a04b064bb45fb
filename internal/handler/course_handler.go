package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/stemsi/courseware-backend/internal/middleware"
	"github.com/stemsi/courseware-backend/internal/response"
	"github.com/stemsi/courseware-backend/internal/service"
	"github.com/stemsi/courseware-backend/internal/validator"
)

// CourseHandler serves the catalogue and navigation reads.
type CourseHandler struct {
	courseService *service.CourseService
	log           zerolog.Logger
}

// NewCourseHandler creates a new CourseHandler.
func NewCourseHandler(courseService *service.CourseService, log zerolog.Logger) *CourseHandler {
	return &CourseHandler{
		courseService: courseService,
		log:           log.With().Str("component", "course_handler").Logger(),
	}
}

// ListCourses godoc
// GET /api/v1/courses
func (h *CourseHandler) ListCourses(c *gin.Context) {
	courses, err := h.courseService.ListCourses(c.Request.Context())
	if err != nil {
		failService(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"courses": courses})
}

// ListSections godoc
// GET /api/v1/courses/:id/sections
func (h *CourseHandler) ListSections(c *gin.Context) {
	courseID, ok := validator.ParamUUID(c, "id")
	if !ok {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	sections, err := h.courseService.ListSections(c.Request.Context(), courseID)
	if err != nil {
		failService(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"sections": sections})
}

// ListPages godoc
// GET /api/v1/sections/:id/pages
// Pages come back in display order.
func (h *CourseHandler) ListPages(c *gin.Context) {
	sectionID, ok := validator.ParamUUID(c, "id")
	if !ok {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	pages, err := h.courseService.ListPages(c.Request.Context(), sectionID)
	if err != nil {
		failService(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"pages": pages})
}

// PageBlocks godoc
// GET /api/v1/pages/:id/blocks
// Renders the page's blocks for the caller's role. Students see their
// own submissions and never the grading key.
func (h *CourseHandler) PageBlocks(c *gin.Context) {
	actor, ok := middleware.GetActor(c)
	if !ok {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}
	pageID, ok := validator.ParamUUID(c, "id")
	if !ok {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	views, err := h.courseService.PageBlocks(c.Request.Context(), actor, pageID)
	if err != nil {
		failService(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"blocks": views})
}

// Workspace godoc
// GET /api/v1/workspace
// Loads the full hierarchy and returns the initial selection.
func (h *CourseHandler) Workspace(c *gin.Context) {
	h.navigate(c, service.NavQuery{})
}

// Navigate godoc
// GET /api/v1/navigation?course_id=&section_id=&page_id=&offset=
// Resolves a selection server-side. Unknown ids and out-of-range steps
// leave the selection where it was.
func (h *CourseHandler) Navigate(c *gin.Context) {
	var q service.NavQuery
	var ok bool
	if q.CourseID, ok = validator.QueryUUID(c, "course_id"); !ok {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}
	if q.SectionID, ok = validator.QueryUUID(c, "section_id"); !ok {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}
	if q.PageID, ok = validator.QueryUUID(c, "page_id"); !ok {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}
	if raw := c.Query("offset"); raw != "" {
		offset, err := strconv.Atoi(raw)
		if err != nil {
			response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation,
				map[string]string{"offset": "offset must be an integer"})
			return
		}
		q.Offset = offset
	}
	h.navigate(c, q)
}

func (h *CourseHandler) navigate(c *gin.Context, q service.NavQuery) {
	actor, ok := middleware.GetActor(c)
	if !ok {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	ws, err := h.courseService.Workspace(c.Request.Context(), actor, q)
	if err != nil {
		failService(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, ws)
}
