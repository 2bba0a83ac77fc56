package dto

import "github.com/your-org/receiptscan/internal/models"

type MessageResponse struct {
	Message string `json:"message"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Detail string `json:"detail"`
}

// ExtractTextResponse returns detections exactly as the recognition service
// produced them.
type ExtractTextResponse struct {
	TextDetections []models.TextDetection `json:"text_detections"`
}

// WSMessage is pushed to WebSocket clients when a receipt has been stored.
type WSMessage struct {
	Type    string              `json:"type"`
	Receipt models.ReceiptEvent `json:"receipt"`
}

type ReadinessResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}
