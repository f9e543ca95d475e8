package dto

// MessageAnalysisRequest is the payload for text complaint analysis.
type MessageAnalysisRequest struct {
	Text   string `json:"text" validate:"required"`
	UserID string `json:"userId" validate:"omitempty,max=255"`
}

// AnalysisResult is the canonical output of the text, audio and image+text pipelines.
// Product fields are null when the input is not a complaint or no category line was returned.
type AnalysisResult struct {
	Complaint  bool               `json:"complaint"`
	Summary    string             `json:"summary"`
	Product    *string            `json:"product"`
	SubProduct *string            `json:"subProduct"`
	Record     *ComplaintResponse `json:"record,omitempty"`
}

// VideoAnalysisResult is the structured output of the video pipeline. Keys stay
// snake_case because clients already map is_complaint onto complaint themselves.
type VideoAnalysisResult struct {
	IsComplaint bool               `json:"is_complaint"`
	Summary     string             `json:"summary"`
	Product     string             `json:"product"`
	SubProduct  string             `json:"sub_product"`
	Record      *ComplaintResponse `json:"record,omitempty"`
}

// ImageDescriptionResponse carries the vision model's description of an image.
type ImageDescriptionResponse struct {
	Description string `json:"description"`
	URL         string `json:"url"`
}
