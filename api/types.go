package api

import (
	"gallery-gateway/mediastore"
	"gallery-gateway/middleware/ratelimit/infra"
	"gallery-gateway/session"
)

type ErrorResponse struct {
	Error string `json:"error"`
}

type LoginRequest struct {
	Password string `json:"password"`
	Action   string `json:"action,omitempty"`
}

type LoginResponse struct {
	Success    bool               `json:"success"`
	Permission session.Permission `json:"permission,omitempty"`
	Message    string             `json:"message"`
}

type AuthStatusResponse struct {
	Authenticated bool               `json:"authenticated"`
	Permission    session.Permission `json:"permission,omitempty"`
}

type SuccessResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type PhotosResponse struct {
	Photos     []mediastore.Photo `json:"photos"`
	NextCursor string             `json:"next_cursor,omitempty"`
	TotalCount int                `json:"total_count"`
	Page       int                `json:"page"`
	Limit      int                `json:"limit"`
}

type UploadResponse struct {
	Success bool             `json:"success"`
	Photo   mediastore.Photo `json:"photo"`
	Message string           `json:"message"`
}

type AdmissionResponse struct {
	Stats           infra.Snapshot       `json:"stats"`
	UploadSlotsUsed int                  `json:"upload_slots_used"`
	Client          string               `json:"client"`
	Quota           map[string]QuotaView `json:"quota"`
}

// QuotaView é a cota do cliente numa classe; resetTime em ms, como no 429.
type QuotaView struct {
	Limit     int   `json:"limit"`
	Remaining int   `json:"remaining"`
	ResetTime int64 `json:"resetTime"`
}
