package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/stemsi/courseware-backend/internal/response"
	"github.com/stemsi/courseware-backend/internal/service"
)

// failService maps a service error onto the response envelope. Unknown
// errors are logged and reported as 500.
func failService(c *gin.Context, log zerolog.Logger, err error) {
	switch {
	case errors.Is(err, service.ErrNotAuthorized):
		response.Fail(c, http.StatusForbidden, response.ErrRoleForbidden)
	case errors.Is(err, service.ErrNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
	case errors.Is(err, service.ErrInvalidIndex):
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidIndex)
	case errors.Is(err, service.ErrReorderInProgress):
		response.Fail(c, http.StatusConflict, response.ErrReorderInProgress)
	case errors.Is(err, service.ErrReorderFailed):
		log.Error().Err(err).Str("path", c.FullPath()).Msg("Reorder not saved")
		response.Fail(c, http.StatusInternalServerError, response.ErrReorderFailed)
	case errors.Is(err, service.ErrInvalidAnswer):
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidAnswer)
	case errors.Is(err, service.ErrInvalidBlockData):
		response.FailWithDetail(c, http.StatusBadRequest, response.ErrInvalidBlockData, err.Error())
	case errors.Is(err, service.ErrWrongBlockType):
		response.Fail(c, http.StatusBadRequest, response.ErrWrongBlockType)
	case errors.Is(err, service.ErrFileTooLarge):
		response.Fail(c, http.StatusRequestEntityTooLarge, response.ErrFileTooLarge)
	case errors.Is(err, service.ErrUnsupportedFile):
		response.Fail(c, http.StatusUnsupportedMediaType, response.ErrUnsupportedFile)
	case errors.Is(err, service.ErrStorage):
		log.Error().Err(err).Str("path", c.FullPath()).Msg("Blob upload failed")
		response.Fail(c, http.StatusBadGateway, response.ErrStorageFailed)
	default:
		log.Error().Err(err).Str("path", c.FullPath()).Msg("Unhandled service error")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}
