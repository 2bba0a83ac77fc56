package handlers

import (
	"errors"
	"fmt"
	"testing"

	"github.com/your-org/receiptscan/internal/receipts"
)

func TestSubmitDetail(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "unavailable",
			err:  &receipts.Error{Kind: receipts.KindUnavailable, Err: receipts.ErrNotConfigured},
			want: "AWS services are not configured.",
		},
		{
			name: "storage with code",
			err:  &receipts.Error{Kind: receipts.KindStorage, Code: "NoSuchBucket", Err: errors.New("x")},
			want: "An AWS error occurred: NoSuchBucket",
		},
		{
			name: "storage without code",
			err:  &receipts.Error{Kind: receipts.KindStorage, Err: errors.New("dial tcp")},
			want: "An AWS error occurred: ObjectStoreError",
		},
		{
			name: "recognition",
			err:  &receipts.Error{Kind: receipts.KindRecognition, Code: "InvalidImageFormatException"},
			want: "An AWS error occurred: InvalidImageFormatException",
		},
		{
			name: "recognition without code",
			err:  &receipts.Error{Kind: receipts.KindRecognition, Err: errors.New("bad JSON")},
			want: "An AWS error occurred: RecognitionError",
		},
		{
			name: "persistence",
			err:  &receipts.Error{Kind: receipts.KindPersistence, Err: errors.New("conn refused")},
			want: "Failed to save detection results.",
		},
		{
			name: "unexpected kind",
			err:  &receipts.Error{Kind: receipts.KindUnexpected, Err: errors.New("entropy")},
			want: "An unexpected error occurred: entropy",
		},
		{
			name: "wrapped storage",
			err:  fmt.Errorf("submit: %w", &receipts.Error{Kind: receipts.KindStorage, Code: "AccessDenied"}),
			want: "An AWS error occurred: AccessDenied",
		},
		{
			name: "foreign error",
			err:  errors.New("boom"),
			want: "An unexpected error occurred: boom",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := submitDetail(tt.err); got != tt.want {
				t.Errorf("submitDetail = %q, expected %q", got, tt.want)
			}
		})
	}
}

func TestHistoryDetail(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{&receipts.Error{Kind: receipts.KindUnavailable}, "Record store is not configured."},
		{&receipts.Error{Kind: receipts.KindPersistence, Err: errors.New("timeout")}, "Failed to fetch history: timeout"},
		{fmt.Errorf("scan: %w", &receipts.Error{Kind: receipts.KindUnavailable}), "Record store is not configured."},
		{errors.New("boom"), "An unexpected error occurred: boom"},
	}
	for _, tt := range tests {
		if got := historyDetail(tt.err); got != tt.want {
			t.Errorf("historyDetail(%v) = %q, expected %q", tt.err, got, tt.want)
		}
	}
}
