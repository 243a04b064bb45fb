package service

import (
	"errors"

	"github.com/google/uuid"

	"github.com/stemsi/courseware-backend/internal/model"
)

// Domain errors surfaced to handlers.
var (
	ErrNotFound          = errors.New("not found")
	ErrNotAuthorized     = errors.New("actor is not allowed to do this")
	ErrInvalidIndex      = errors.New("reorder index out of range")
	ErrReorderInProgress = errors.New("another reorder of this list is in progress")
	ErrReorderFailed     = errors.New("reorder could not be persisted")
	ErrInvalidAnswer     = errors.New("answer does not fit block")
	ErrInvalidBlockData  = errors.New("block data does not fit its type")
	ErrWrongBlockType    = errors.New("operation not supported for this block type")
	ErrStorage           = errors.New("object storage failed")
	ErrFileTooLarge      = errors.New("file too large")
	ErrUnsupportedFile   = errors.New("unsupported file type")
)

// Actor is the authenticated caller of a service operation.
type Actor struct {
	ID   uuid.UUID
	Role model.Role
}

func (a Actor) privileged() bool { return a.Role.Privileged() }
