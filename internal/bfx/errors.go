package bfx

import "fmt"

// APIError is a non-200 response from the exchange. The v2 API reports
// errors as ["error", CODE, "message"].
type APIError struct {
	HTTPStatus int
	Code       int64
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("bitfinex api error %d (http %d): %s", e.Code, e.HTTPStatus, e.Message)
	}
	return fmt.Sprintf("bitfinex api error (http %d)", e.HTTPStatus)
}

func parseAPIError(status int, payload []byte) error {
	apiErr := &APIError{HTTPStatus: status}
	raw, err := decodeArray(payload)
	if err != nil || len(raw) < 3 {
		apiErr.Message = string(payload)
		return apiErr
	}
	apiErr.Code, _ = fieldInt(raw, 1)
	apiErr.Message = fieldStringOrEmpty(raw, 2)
	return apiErr
}
