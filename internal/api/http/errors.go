package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vladislavdragonenkov/orderdesk/internal/domain"
)

var badRequestErrors = []error{
	domain.ErrItemsRequired,
	domain.ErrItemQtyInvalid,
	domain.ErrOrderIDRequired,
	domain.ErrCustomerIDRequired,
	domain.ErrInvalidField,
	domain.ErrInvalidFilter,
	domain.ErrInvalidSort,
	domain.ErrRecordRejected,
	domain.ErrRecordConflict,
}

// statusFor переводит ошибку репозитория в HTTP-статус.
// Частичная запись важнее причины: клиенту нужен список уже применённых изменений.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrPartialFailure):
		return http.StatusBadGateway
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case isBadRequest(err):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrCircuitOpen):
		return http.StatusServiceUnavailable
	case domain.IsStoreUnavailable(err):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func isBadRequest(err error) bool {
	for _, target := range badRequestErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func respondError(c *gin.Context, err error) {
	_ = c.Error(err)

	body := errorBody{Success: false, Error: err.Error()}
	if we, ok := domain.AsWriteError(err); ok {
		body.Step = string(we.Step)
		if we.Index >= 0 {
			index := we.Index
			body.Index = &index
		}
		body.Created = we.Created
		body.Updated = we.Updated
		body.Deleted = we.Deleted
	}
	c.AbortWithStatusJSON(statusFor(err), body)
}

func badRequest(c *gin.Context, err error) {
	_ = c.Error(err)
	c.AbortWithStatusJSON(http.StatusBadRequest, errorBody{Success: false, Error: err.Error()})
}
