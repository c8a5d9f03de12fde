package dedup

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"civicpulse/internal/oracle"
)

// DirLoader resolves image references as files under a base directory.
type DirLoader struct {
	Base string
}

func (l DirLoader) Load(ref string) (oracle.Image, error) {
	path := filepath.Join(l.Base, filepath.Clean("/"+ref))
	data, err := os.ReadFile(path)
	if err != nil {
		return oracle.Image{}, fmt.Errorf("loading image %s: %w", ref, err)
	}
	return oracle.Image{Bytes: data, MIME: mimeForExt(filepath.Ext(ref))}, nil
}

func mimeForExt(ext string) string {
	switch strings.ToLower(ext) {
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	default:
		return "image/jpeg"
	}
}
