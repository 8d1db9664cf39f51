package sources

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/aluiziolira/go-catalogue-sync/models"
)

// LoadImageMap reads a JSON object of reference -> image URL. A missing file
// yields an empty map.
func LoadImageMap(path string) (models.ImageReferenceMap, error) {
	images := models.ImageReferenceMap{}
	if path == "" {
		return images, nil
	}

	raw, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return images, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read image map: %w", err)
	}
	if err := json.Unmarshal(raw, &images); err != nil {
		return nil, fmt.Errorf("decode image map: %w", err)
	}
	return images, nil
}
