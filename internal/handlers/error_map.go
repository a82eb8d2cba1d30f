package handlers

import (
	"net/http"

	"bookstore-cart/internal/apperror"
	"bookstore-cart/internal/logger"
)

func writeServiceError(w http.ResponseWriter, log *logger.Logger, err error, internalMessage string) {
	code := string(apperror.ReasonOf(err))
	switch {
	case apperror.Is(err, apperror.KindNotFound):
		writeCodedErrorResponse(w, http.StatusNotFound, code, err.Error())
	case apperror.Is(err, apperror.KindValidation):
		writeCodedErrorResponse(w, http.StatusBadRequest, code, err.Error())
	case apperror.Is(err, apperror.KindCouponRejected):
		writeCodedErrorResponse(w, http.StatusUnprocessableEntity, code, err.Error())
	case apperror.Is(err, apperror.KindConflict):
		writeCodedErrorResponse(w, http.StatusConflict, code, err.Error())
	case apperror.Is(err, apperror.KindUnauthorized):
		writeCodedErrorResponse(w, http.StatusUnauthorized, code, err.Error())
	case apperror.Is(err, apperror.KindForbidden):
		writeCodedErrorResponse(w, http.StatusForbidden, code, err.Error())
	default:
		// сюда же попадает duplicate: наружу уходит только общий текст
		if log != nil {
			log.WithError(err).Error(internalMessage)
		}
		writeErrorResponse(w, http.StatusInternalServerError, internalMessage)
	}
}
