package models

// DetectionRecord is one processed upload as returned by the history
// endpoints. JSON names match what the web client already reads.
type DetectionRecord struct {
	ReceiptID  string          `json:"receipt_id"`
	ImageURL   string          `json:"s3_url"`
	Filename   string          `json:"filename"`
	UploadedAt string          `json:"upload_timestamp"`
	Detections []TextDetection `json:"detected_text"`
}

// RecordItem is the storage form of a DetectionRecord. Detections is the
// normalized document tree: every float has been replaced by an exact
// decimal, so it must not be handed back to API callers.
type RecordItem struct {
	ReceiptID  string
	ImageURL   string
	Filename   string
	UploadedAt string
	Detections []any
}
