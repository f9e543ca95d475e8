package dto

import (
	"time"

	"github.com/noah-isme/complaint-intake-api/internal/models"
)

// ComplaintCreateRequest is the payload used to persist a classified complaint.
type ComplaintCreateRequest struct {
	UserID     string `json:"userId" validate:"required,max=255"`
	Complaint  *bool  `json:"complaint" validate:"required"`
	Summary    string `json:"summary" validate:"required"`
	Product    string `json:"product" validate:"required,max=255"`
	SubProduct string `json:"subProduct" validate:"required,max=255"`
}

// ComplaintListQuery filters complaint listings.
type ComplaintListQuery struct {
	UserID string `query:"userId" validate:"omitempty,max=255"`
}

// ComplaintResponse is the serialized representation of a complaint row.
type ComplaintResponse struct {
	ID         uint      `json:"id"`
	UserID     string    `json:"userId"`
	Complaint  bool      `json:"complaint"`
	Summary    string    `json:"summary"`
	Product    string    `json:"product"`
	SubProduct string    `json:"subProduct"`
	DateSent   time.Time `json:"dateSent"`
}

// NewComplaintResponse converts a model into a DTO.
func NewComplaintResponse(complaint models.Complaint) ComplaintResponse {
	return ComplaintResponse{
		ID:         complaint.ID,
		UserID:     complaint.UserID,
		Complaint:  complaint.Complaint,
		Summary:    complaint.Summary,
		Product:    complaint.Product,
		SubProduct: complaint.SubProduct,
		DateSent:   complaint.DateSent,
	}
}

// NewComplaintResponseSlice converts a slice of models into DTOs.
func NewComplaintResponseSlice(complaints []models.Complaint) []ComplaintResponse {
	out := make([]ComplaintResponse, 0, len(complaints))
	for _, complaint := range complaints {
		out = append(out, NewComplaintResponse(complaint))
	}
	return out
}

// ComplaintPurgeResponse lists the rows removed by a purge.
type ComplaintPurgeResponse struct {
	DeletedRows []ComplaintResponse `json:"deletedRows"`
}

// SchemaResponse reports the outcome of a schema check.
type SchemaResponse struct {
	Table string `json:"table"`
	Ready bool   `json:"ready"`
}

// DatabasePingResponse carries the database clock.
type DatabasePingResponse struct {
	Time time.Time `json:"time"`
}
