package api

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"audio-transcriber/pkg/apperr"
)

type success struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

type errs struct {
	Code    apperr.ErrorCode  `json:"code"`
	Message string            `json:"message"`
	Info    string            `json:"info,omitempty"`
	Details map[string]string `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// HandleSuccess writes the standard success envelope.
func HandleSuccess(w http.ResponseWriter, status int, data interface{}) {
	writeJSON(w, status, success{
		Code:    status,
		Message: "success",
		Data:    data,
	})
}

// HandleError writes err as {code, message, info}; anything that is not an
// AppError becomes a 500.
func HandleError(logger *zap.Logger, w http.ResponseWriter, r *http.Request, err error) {
	appErr := apperr.From(err)
	if logger != nil {
		logger.Error("http.response.error",
			zap.String("request_id", requestID(r)),
			zap.String("path", r.URL.Path),
			zap.String("app_code", string(appErr.Code)),
			zap.Error(err),
		)
	}

	info := ""
	if appErr.Raw != nil {
		info = appErr.Raw.Error()
	}
	writeJSON(w, appErr.HTTPCode, errs{
		Code:    appErr.Code,
		Message: appErr.Message,
		Info:    info,
		Details: appErr.Details,
	})
}
