package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/your-org/receiptscan/internal/receipts"
	"github.com/your-org/receiptscan/pkg/dto"
)

const welcomeMessage = "Welcome to the receipt scanner API."

type ReceiptHandler struct {
	svc *receipts.Service
}

func NewReceiptHandler(svc *receipts.Service) *ReceiptHandler {
	return &ReceiptHandler{svc: svc}
}

func (h *ReceiptHandler) Root(c *gin.Context) {
	c.JSON(http.StatusOK, dto.MessageResponse{Message: welcomeMessage})
}

// ExtractText handles POST /extract-text with a multipart "image" field.
func (h *ReceiptHandler) ExtractText(c *gin.Context) {
	fh, err := c.FormFile("image")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, dto.ErrorResponse{
				Detail: fmt.Sprintf("image exceeds %d bytes", tooLarge.Limit),
			})
			return
		}
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Detail: "image file required"})
		return
	}

	f, err := fh.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Detail: "image file required"})
		return
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Detail: "read image: " + err.Error()})
		return
	}

	res, err := h.svc.Submit(c.Request.Context(), receipts.Upload{
		Data:        data,
		Filename:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Detail: submitDetail(err)})
		return
	}

	c.JSON(http.StatusOK, dto.ExtractTextResponse{TextDetections: res.Detections})
}

// History handles GET /history. The stored records are returned unfiltered.
func (h *ReceiptHandler) History(c *gin.Context) {
	recs, err := h.svc.History(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Detail: historyDetail(err)})
		return
	}
	c.JSON(http.StatusOK, recs)
}

func (h *ReceiptHandler) Get(c *gin.Context) {
	rec, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if errors.Is(err, receipts.ErrNotFound) {
		c.JSON(http.StatusNotFound, dto.ErrorResponse{Detail: "Receipt not found."})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Detail: historyDetail(err)})
		return
	}
	c.JSON(http.StatusOK, rec)
}

func submitDetail(err error) string {
	switch receipts.KindOf(err) {
	case receipts.KindUnavailable:
		return "AWS services are not configured."
	case receipts.KindStorage:
		return "An AWS error occurred: " + codeOr(err, "ObjectStoreError")
	case receipts.KindRecognition:
		return "An AWS error occurred: " + codeOr(err, "RecognitionError")
	case receipts.KindPersistence:
		return "Failed to save detection results."
	default:
		return "An unexpected error occurred: " + causeOf(err)
	}
}

func historyDetail(err error) string {
	switch receipts.KindOf(err) {
	case receipts.KindUnavailable:
		return "Record store is not configured."
	case receipts.KindPersistence:
		return "Failed to fetch history: " + causeOf(err)
	default:
		return "An unexpected error occurred: " + causeOf(err)
	}
}

func codeOr(err error, fallback string) string {
	var e *receipts.Error
	if errors.As(err, &e) && e.Code != "" {
		return e.Code
	}
	return fallback
}

// causeOf returns the message of the error wrapped by a *receipts.Error, or
// err's own message for anything else.
func causeOf(err error) string {
	var e *receipts.Error
	if errors.As(err, &e) && e.Err != nil {
		return e.Err.Error()
	}
	return err.Error()
}
