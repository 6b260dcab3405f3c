// Package dto provides Data Transfer Objects for API requests/responses.
package dto

import (
	"strings"

	"storeflow/internal/core/apperror"
	"storeflow/internal/core/id"
)

// --- Pagination ---

// PaginationRequest contains pagination parameters.
type PaginationRequest struct {
	Limit  int `form:"limit" binding:"omitempty,min=1,max=200"`
	Offset int `form:"offset" binding:"omitempty,min=0"`
}

// Defaults sets default pagination values.
func (p *PaginationRequest) Defaults() {
	if p.Limit == 0 {
		p.Limit = 50
	}
}

// PaginationResponse contains pagination metadata.
type PaginationResponse struct {
	Limit      int   `json:"limit"`
	Offset     int   `json:"offset"`
	TotalCount int64 `json:"totalCount"`
}

// --- Error Response ---

// ErrorResponse for error details.
type ErrorResponse struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// FromAppError builds the response body of err.
func FromAppError(err *apperror.AppError) ErrorResponse {
	return ErrorResponse{Code: err.Code, Message: err.Message, Details: err.Details}
}

// parseOptionalID parses a nullable id field. Empty means unset.
func parseOptionalID(field string, s *string) (*id.ID, error) {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil, nil
	}
	v, err := id.Parse(strings.TrimSpace(*s))
	if err != nil {
		return nil, apperror.NewFieldValidation(field, "invalid id format")
	}
	return &v, nil
}

func parseID(field, s string) (id.ID, error) {
	v, err := id.Parse(strings.TrimSpace(s))
	if err != nil {
		return id.Nil(), apperror.NewFieldValidation(field, "invalid id format")
	}
	return v, nil
}

// splitList splits comma separated query values, accepting repeated keys too.
func splitList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
