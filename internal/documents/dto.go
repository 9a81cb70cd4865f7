package documents

import "time"

// DocumentResponse is the outward-facing representation of a document.
type DocumentResponse struct {
	DocumentID    string       `json:"documentId"`
	Name          string       `json:"name"`
	UploadStatus  UploadStatus `json:"uploadStatus"`
	PageCount     int          `json:"pageCount"`
	FailureReason string       `json:"failureReason,omitempty"`
	CreatedAt     time.Time    `json:"createdAt"`
	UpdatedAt     time.Time    `json:"updatedAt"`
}

// StatusResponse is returned by the polling endpoint.
type StatusResponse struct {
	Status UploadStatus `json:"status"`
}

func toResponse(doc Document) DocumentResponse {
	return DocumentResponse{
		DocumentID:    doc.ID,
		Name:          doc.Name,
		UploadStatus:  doc.UploadStatus,
		PageCount:     doc.PageCount,
		FailureReason: doc.FailureReason,
		CreatedAt:     doc.CreatedAt,
		UpdatedAt:     doc.UpdatedAt,
	}
}
