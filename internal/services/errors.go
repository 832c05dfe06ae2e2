// Package services provides the business logic layer between handlers and
// the estimator, grid and extraction machinery.
package services

// Error codes returned to API clients.
const (
	CodeInvalidRequest    = "INVALID_REQUEST"
	CodeModelUnavailable  = "MODEL_UNAVAILABLE"
	CodeGridUnavailable   = "GRID_UNAVAILABLE"
	CodeNoData            = "NO_DATA"
	CodeExtractionFailed  = "EXTRACTION_FAILED"
	CodeRefreshFailed     = "REFRESH_FAILED"
	CodeRefreshInProgress = "REFRESH_IN_PROGRESS"
	CodeInternal          = "INTERNAL_ERROR"
)

// ServiceError represents a service layer error
type ServiceError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func (e *ServiceError) Error() string {
	return e.Message
}

// NewServiceError creates a new ServiceError
func NewServiceError(code, message string) *ServiceError {
	return &ServiceError{
		Code:    code,
		Message: message,
	}
}

// NewServiceErrorWithDetails creates a new ServiceError with details
func NewServiceErrorWithDetails(code, message string, details map[string]interface{}) *ServiceError {
	return &ServiceError{
		Code:    code,
		Message: message,
		Details: details,
	}
}
