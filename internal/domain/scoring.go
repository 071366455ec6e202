package domain

import (
	"net/http"
	"path/filepath"
	"strings"
)

// ImageFile is a user-selected image on its way to the scoring endpoint.
type ImageFile struct {
	Name        string
	ContentType string
	Data        []byte
}

// Size reports the payload length in bytes.
func (f ImageFile) Size() int64 {
	return int64(len(f.Data))
}

// MediaType returns the declared content type or one sniffed from the bytes.
func (f ImageFile) MediaType() string {
	ct := strings.TrimSpace(f.ContentType)
	if ct == "" && len(f.Data) > 0 {
		ct = http.DetectContentType(f.Data)
	}
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = ct[:i]
	}
	return strings.ToLower(strings.TrimSpace(ct))
}

// Extension returns the lower-cased file extension including the dot.
func (f ImageFile) Extension() string {
	return strings.ToLower(filepath.Ext(f.Name))
}

// TrendAnalysis is the market-facing part of a scoring result.
type TrendAnalysis struct {
	TrendScore     float64 `json:"trend_score"`
	ViralPotential float64 `json:"viral_potential"`
	MarketAppeal   float64 `json:"market_appeal"`
}

// ImageMetadata is echoed back by the service when it could decode the image.
type ImageMetadata struct {
	ImageSize []int  `json:"image_size,omitempty"`
	Format    string `json:"format,omitempty"`
}

// ScoringResult is the terminal success value of one scoring request.
type ScoringResult struct {
	AestheticScore float64        `json:"aesthetic_score"`
	Confidence     float64        `json:"confidence"`
	TrendAnalysis  TrendAnalysis  `json:"trend_analysis"`
	Metadata       *ImageMetadata `json:"metadata,omitempty"`
}

// Batch item statuses reported by the batch endpoint.
const (
	BatchStatusSuccess = "success"
	BatchStatusError   = "error"
)

// BatchItem is one entry of a batch scoring response.
type BatchItem struct {
	Filename string `json:"filename,omitempty"`
	Status   string `json:"status,omitempty"`
	Error    string `json:"error,omitempty"`
	ScoringResult
}

// Succeeded reports whether the service scored this item.
func (b BatchItem) Succeeded() bool {
	return b.Status != BatchStatusError && b.Error == ""
}
