package controller

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"prestadash/internal/service"
	"prestadash/pkg/presta"
)

// parseID reads a positive int64 path param; it answers 400 itself and
// returns 0 when the param is invalid.
func parseID(ctx *gin.Context, key string) int64 {
	id, err := strconv.ParseInt(ctx.Param(key), 10, 64)
	if err != nil || id <= 0 {
		ctx.JSON(http.StatusBadRequest, gin.H{"code": 400, "message": "invalid " + key})
		return 0
	}
	return id
}

func ok(ctx *gin.Context, data interface{}) {
	ctx.JSON(http.StatusOK, gin.H{"code": 200, "message": "ok", "data": data})
}

func badRequest(ctx *gin.Context, err error) {
	ctx.JSON(http.StatusBadRequest, gin.H{"code": 400, "message": "invalid parameters: " + err.Error()})
}

// fail maps service and remote errors onto HTTP statuses.
func fail(ctx *gin.Context, err error) {
	status := errorStatus(err)
	_ = ctx.Error(err)
	ctx.JSON(status, gin.H{"code": status, "message": err.Error()})
}

func errorStatus(err error) int {
	var (
		httpErr      *presta.HTTPStatusError
		netErr       *presta.NetworkError
		malformedErr *presta.MalformedResponseError
		apiErr       *presta.APIError
	)
	switch {
	case errors.Is(err, service.ErrSiteNotFound),
		errors.Is(err, service.ErrProductNotFound),
		errors.Is(err, service.ErrAlertNotFound),
		errors.Is(err, service.ErrNoProducts):
		return http.StatusNotFound
	case errors.Is(err, service.ErrSyncInProgress),
		errors.Is(err, service.ErrAmbiguousAPIKey):
		return http.StatusConflict
	case errors.Is(err, service.ErrUnknownAPIKey):
		return http.StatusUnauthorized
	case errors.Is(err, service.ErrInvalidRecord),
		errors.Is(err, service.ErrNoRemoteID):
		return http.StatusBadRequest
	case errors.As(err, &httpErr),
		errors.As(err, &netErr),
		errors.As(err, &malformedErr),
		errors.As(err, &apiErr):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}
