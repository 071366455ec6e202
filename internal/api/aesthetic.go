package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"

	"TasteClient/internal/domain"
	"TasteClient/internal/infrastructure/transport"
	"TasteClient/internal/ports"
)

// AestheticAPI submits images to the scoring endpoints.
type AestheticAPI struct {
	doer   Doer
	logger *slog.Logger
}

var _ ports.Scorer = (*AestheticAPI)(nil)

// ScoreImage uploads one image under the multipart field "file".
func (a *AestheticAPI) ScoreImage(ctx context.Context, file domain.ImageFile) (domain.ScoringResult, error) {
	if err := checkFile("file", file); err != nil {
		return domain.ScoringResult{}, err
	}

	body, contentType, err := encodeFiles("file", []domain.ImageFile{file})
	if err != nil {
		return domain.ScoringResult{}, err
	}

	var out domain.ScoringResult
	err = getJSON(ctx, a.doer, transport.Request{
		Method:      http.MethodPost,
		Path:        PathScore,
		Body:        body,
		ContentType: contentType,
	}, &out)
	if err != nil {
		return domain.ScoringResult{}, err
	}
	a.logger.Debug("image scored", "file", file.Name, "score", out.AestheticScore)
	return out, nil
}

// BatchScore uploads every image in one body under the repeated field "files".
// Items the service could not score come back with Status "error".
func (a *AestheticAPI) BatchScore(ctx context.Context, files []domain.ImageFile) ([]domain.BatchItem, error) {
	if len(files) == 0 {
		return nil, &domain.ValidationError{Field: "files", Reason: "no files selected"}
	}
	for _, f := range files {
		if err := checkFile("files", f); err != nil {
			return nil, err
		}
	}

	body, contentType, err := encodeFiles("files", files)
	if err != nil {
		return nil, err
	}

	resp, err := a.doer.Do(ctx, transport.Request{
		Method:      http.MethodPost,
		Path:        PathBatchScore,
		Body:        body,
		ContentType: contentType,
	})
	if err != nil {
		return nil, err
	}

	items, err := decodeBatch(resp.Body)
	if err != nil {
		return nil, err
	}
	a.logger.Debug("batch scored", "files", len(files), "items", len(items))
	return items, nil
}

func checkFile(field string, f domain.ImageFile) error {
	if len(f.Data) == 0 {
		name := f.Name
		if name == "" {
			name = "file"
		}
		return &domain.ValidationError{Field: field, Reason: name + " is empty"}
	}
	return nil
}

// decodeBatch accepts both a bare array and the {"results": [...]} envelope.
func decodeBatch(body []byte) ([]domain.BatchItem, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var items []domain.BatchItem
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, fmt.Errorf("decode batch: %w", err)
		}
		return items, nil
	}

	var envelope struct {
		Results []domain.BatchItem `json:"results"`
	}
	if err := json.Unmarshal(trimmed, &envelope); err != nil {
		return nil, fmt.Errorf("decode batch: %w", err)
	}
	return envelope.Results, nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

// encodeFiles writes a multipart body. Each part carries the image's own
// media type rather than the octet-stream default of CreateFormFile.
func encodeFiles(field string, files []domain.ImageFile) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	for _, f := range files {
		name := f.Name
		if name == "" {
			name = "upload" + f.Extension()
		}
		ct := f.MediaType()
		if ct == "" {
			ct = "application/octet-stream"
		}

		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
			quoteEscaper.Replace(field), quoteEscaper.Replace(name)))
		h.Set("Content-Type", ct)

		part, err := w.CreatePart(h)
		if err != nil {
			return nil, "", fmt.Errorf("create part %s: %w", name, err)
		}
		if _, err := part.Write(f.Data); err != nil {
			return nil, "", fmt.Errorf("write part %s: %w", name, err)
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart: %w", err)
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}
