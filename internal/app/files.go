package app

import (
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"TasteClient/internal/domain"
)

// loadImage reads path into an ImageFile, typing it by extension first.
func loadImage(path string) (domain.ImageFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.ImageFile{}, fmt.Errorf("read image: %w", err)
	}

	ct := mime.TypeByExtension(strings.ToLower(filepath.Ext(path)))
	if !strings.HasPrefix(ct, "image/") {
		ct = ""
	}
	return domain.ImageFile{Name: filepath.Base(path), ContentType: ct, Data: data}, nil
}

func loadImages(paths []string) ([]domain.ImageFile, error) {
	files := make([]domain.ImageFile, 0, len(paths))
	for _, p := range paths {
		f, err := loadImage(p)
		if err != nil {
			return nil, err
		}
		files = append(files, f)
	}
	return files, nil
}
