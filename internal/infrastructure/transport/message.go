package transport

import (
	"bytes"
	"encoding/json"
	"mime"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
)

const maxMessageLen = 1024

// describeBody turns an error response body into one displayable line.
// FastAPI answers {"detail": ...}; proxies in front of it answer HTML pages.
func describeBody(contentType string, body []byte) string {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return ""
	}

	mediaType, _, _ := mime.ParseMediaType(contentType)
	switch {
	case mediaType == "application/json" || (trimmed[0] == '{' && json.Valid(trimmed)):
		if msg := messageFromJSON(trimmed); msg != "" {
			return truncate(msg)
		}
	case mediaType == "text/html" || looksLikeHTML(trimmed):
		if msg := messageFromHTML(trimmed); msg != "" {
			return truncate(msg)
		}
	}

	return truncate(collapse(string(trimmed)))
}

func messageFromJSON(body []byte) string {
	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}

	for _, key := range []string{"detail", "message", "error"} {
		switch v := payload[key].(type) {
		case string:
			if v != "" {
				return v
			}
		case []any:
			// FastAPI validation errors: [{"loc": [...], "msg": "...", "type": "..."}]
			parts := make([]string, 0, len(v))
			for _, item := range v {
				entry, ok := item.(map[string]any)
				if !ok {
					continue
				}
				if msg, ok := entry["msg"].(string); ok && msg != "" {
					parts = append(parts, msg)
				}
			}
			if len(parts) > 0 {
				return strings.Join(parts, "; ")
			}
		case map[string]any:
			if msg, ok := v["message"].(string); ok && msg != "" {
				return msg
			}
		}
	}
	return ""
}

func messageFromHTML(body []byte) string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return ""
	}

	if title := collapse(doc.Find("title").First().Text()); title != "" {
		return title
	}
	if heading := collapse(doc.Find("h1").First().Text()); heading != "" {
		return heading
	}
	return collapse(doc.Find("body").Text())
}

func looksLikeHTML(body []byte) bool {
	head := strings.ToLower(string(body[:min(len(body), 64)]))
	return strings.HasPrefix(head, "<!doctype html") || strings.HasPrefix(head, "<html")
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncate(s string) string {
	if len(s) <= maxMessageLen {
		return s
	}
	n := maxMessageLen
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "…"
}
