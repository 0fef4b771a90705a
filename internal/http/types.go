package http

import "github.com/fyrsmithlabs/docmanager/internal/documents"

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

// ListingStats summarizes the chunks returned by GET /documents/api/documents.
type ListingStats struct {
	TotalDocuments  int     `json:"total_documents"`
	TotalChunks     int     `json:"total_chunks"`
	TotalCharacters int     `json:"total_characters"`
	LastUpdate      *string `json:"last_update"`
}

// DocumentsResponse is the response body for GET /documents/api/documents.
type DocumentsResponse struct {
	Success       bool               `json:"success"`
	Documents     []documents.Record `json:"documents"`
	Stats         ListingStats       `json:"stats"`
	FilterApplied *string            `json:"filter_applied"`
}

// ListResponse is the response body for GET /documents/api/list.
type ListResponse struct {
	Success   bool                 `json:"success"`
	Documents []documents.Document `json:"documents"`
	Count     int                  `json:"count"`
}

// StatsResponse is the response body for GET /documents/api/stats.
type StatsResponse struct {
	Success bool `json:"success"`
	documents.Stats
}

// ErrorResponse reports a failed read.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// RemoveRequest is the request body for POST /documents/api/remove.
type RemoveRequest struct {
	Source string `json:"source"`
}

// MessageResponse is the response body of the destructive endpoints.
type MessageResponse struct {
	Success       bool   `json:"success"`
	Message       string `json:"message"`
	DeletedChunks *int   `json:"deleted_chunks,omitempty"`
}
