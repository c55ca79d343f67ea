package handler

import (
	"errors"

	"gradient/model"
	"gradient/repository"
	"gradient/services"
	"gradient/utils"

	"github.com/gin-gonic/gin"
)

var log = utils.Component("handler")

// respondError maps a service error onto an HTTP response. partialData is
// returned alongside a partial cascade so the client sees what was written.
func respondError(c *gin.Context, action string, err error, partialData interface{}) {
	var validationErr *model.ValidationError
	var uploadErr *services.UploadError

	switch {
	case errors.As(err, &validationErr):
		utils.BadRequest(c, validationErr.Error())
	case errors.Is(err, repository.ErrNotFound):
		utils.NotFound(c, "Resource not found")
	case errors.Is(err, repository.ErrPartialCascade):
		log.WithError(err).WithField("action", action).Warn("partial write")
		utils.InternalError(c, action+" was only partially applied", gin.H{
			"partial": true,
			"result":  partialData,
		})
	case errors.As(err, &uploadErr):
		log.WithError(err).WithField("action", action).Warn("media upload failed")
		utils.BadGateway(c, "Failed to upload "+string(uploadErr.Type))
	default:
		log.WithError(err).WithField("action", action).Error("request failed")
		utils.InternalError(c, "Failed to "+action)
	}
}
