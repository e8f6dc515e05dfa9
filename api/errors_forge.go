package api

import (
	"errors"

	"github.com/xraph/forge"

	"github.com/xraph/courier"
)

// mapError converts courier sentinel errors to Forge HTTP errors.
func mapError(err error) error {
	switch {
	case errors.Is(err, courier.ErrMessageNotFound):
		return forge.NotFound(err.Error())
	case errors.Is(err, courier.ErrEmptyPayload):
		return forge.BadRequest(err.Error())
	case errors.Is(err, courier.ErrStoreUnavailable):
		return forge.InternalError(err)
	case errors.Is(err, courier.ErrStoreClosed):
		return forge.InternalError(err)
	default:
		return forge.InternalError(err)
	}
}
