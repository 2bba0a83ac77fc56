package models

import "github.com/google/uuid"

// ReceiptEvent is published once a submission has been fully persisted.
type ReceiptEvent struct {
	ID             uuid.UUID `json:"id"`
	Type           string    `json:"type"`
	ReceiptID      string    `json:"receipt_id"`
	Filename       string    `json:"filename"`
	ImageURL       string    `json:"s3_url"`
	UploadedAt     string    `json:"upload_timestamp"`
	DetectionCount int       `json:"detection_count"`
	LineCount      int       `json:"line_count"`
}

const EventReceiptProcessed = "receipt.processed"
