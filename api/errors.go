package api

import (
	"errors"
	"net/http"

	"luckystake/auth"
	"luckystake/service"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// statusFor maps a domain error to its HTTP status. Unknown errors are 500.
func statusFor(err error) int {
	var (
		validation       *service.ValidationError
		notFound         *service.NotFoundError
		forbidden        *service.ForbiddenError
		alreadyWithdrawn *service.AlreadyWithdrawnError
		drawInProgress   *service.DrawInProgressError
		challenge        *auth.ChallengeError
		badKey           *auth.InvalidPublicKeyError
	)

	switch {
	case errors.As(err, &validation), errors.As(err, &alreadyWithdrawn), errors.As(err, &badKey):
		return http.StatusBadRequest
	case errors.As(err, &notFound):
		return http.StatusNotFound
	case errors.As(err, &forbidden):
		return http.StatusForbidden
	case service.IsDrawPreconditionError(err), errors.As(err, &drawInProgress):
		return http.StatusConflict
	case errors.As(err, &challenge), errors.Is(err, auth.ErrSignatureRejected):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes {"error": message} with the mapped status
func respondError(c *gin.Context, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		log.WithFields(log.Fields{
			"method": c.Request.Method,
			"path":   c.Request.URL.Path,
		}).WithError(err).Error("Request failed")
		c.JSON(status, gin.H{"error": "Internal server error"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg})
}
