// Пакет errors — конструкторы стандартных ошибок API Audio Memory.
// Единый формат: {"error": {"code": "...", "message": "..."}}.
// Все HTTP-ответы с ошибками должны использовать WriteError.
package errors

import (
	"encoding/json"
	"net/http"
)

// Машиночитаемые коды ошибок API.
const (
	CodeValidationError    = "VALIDATION_ERROR"
	CodeNotFound           = "NOT_FOUND"
	CodeUnauthorized       = "UNAUTHORIZED"
	CodeForbidden          = "FORBIDDEN"
	CodeUnsupportedType    = "UNSUPPORTED_TYPE"
	CodeTooLarge           = "TOO_LARGE"
	CodeStorageWriteFailed = "STORAGE_WRITE_FAILED"
	CodeRecordCreateFailed = "RECORD_CREATE_FAILED"
	CodeAuthRequestFailed  = "AUTH_REQUEST_FAILED"
	CodeInvalidState       = "INVALID_STATE"
	CodeCaptureDenied      = "CAPTURE_DENIED"
	CodeInternalError      = "INTERNAL_ERROR"
)

// errorBody — структура тела ответа ошибки.
type errorBody struct {
	Error errorDetail `json:"error"`
}

// errorDetail — детали ошибки.
type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// WriteError записывает ответ ошибки в стандартном формате.
// statusCode — HTTP статус-код, code — машиночитаемый код, message — описание.
func WriteError(w http.ResponseWriter, statusCode int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(errorBody{
		Error: errorDetail{
			Code:    code,
			Message: message,
		},
	})
}

// --- Конструкторы для типичных ошибок ---

// ValidationError — 400 некорректные входные данные.
func ValidationError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, CodeValidationError, message)
}

// NotFound — 404 ресурс не найден.
func NotFound(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusNotFound, CodeNotFound, message)
}

// Unauthorized — 401 требуется аутентификация.
func Unauthorized(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusUnauthorized, CodeUnauthorized, message)
}

// Forbidden — 403 недостаточно прав.
func Forbidden(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusForbidden, CodeForbidden, message)
}

// UnsupportedType — 415 недопустимый тип аудиофайла.
func UnsupportedType(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusUnsupportedMediaType, CodeUnsupportedType, message)
}

// TooLarge — 413 файл превышает лимит размера.
func TooLarge(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusRequestEntityTooLarge, CodeTooLarge, message)
}

// StorageWriteFailed — 502 ошибка записи в object storage.
func StorageWriteFailed(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadGateway, CodeStorageWriteFailed, message)
}

// RecordCreateFailed — 500 файл записан, но запись в базе не создана.
func RecordCreateFailed(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, CodeRecordCreateFailed, message)
}

// AuthRequestFailed — 502 письмо со ссылкой входа не отправлено.
func AuthRequestFailed(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadGateway, CodeAuthRequestFailed, message)
}

// InvalidState — 409 операция недопустима в текущем состоянии сессии записи.
func InvalidState(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusConflict, CodeInvalidState, message)
}

// CaptureDenied — 403 запись запрещена (нет доступа к микрофону).
func CaptureDenied(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusForbidden, CodeCaptureDenied, message)
}

// InternalError — 500 внутренняя ошибка.
func InternalError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, CodeInternalError, message)
}
