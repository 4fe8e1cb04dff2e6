package dto

import "github.com/pixelift/backend/internal/domain"

type ErrorResponse struct {
	Error   string   `json:"error"`
	Details []string `json:"details,omitempty"`
}

type ImageSize struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

type UploadResponse struct {
	Success  bool      `json:"success"`
	Message  string    `json:"message"`
	Filename string    `json:"filename"`
	Size     ImageSize `json:"size"`
}

func ArtifactToUploadResponse(a *domain.Artifact) UploadResponse {
	return UploadResponse{
		Success:  true,
		Message:  "Upload successful",
		Filename: a.Key,
		Size:     ImageSize{Width: a.Width, Height: a.Height},
	}
}

type EnhanceResponse struct {
	Success  bool   `json:"success"`
	Message  string `json:"message"`
	TaskID   string `json:"task_id"`
	Original string `json:"original"`
	Result   string `json:"result"`
}

func DispatchToResponse(original string, r domain.DispatchResult) EnhanceResponse {
	return EnhanceResponse{
		Success:  true,
		Message:  r.Description,
		TaskID:   r.TaskID,
		Original: original,
		Result:   r.ResultKey,
	}
}
