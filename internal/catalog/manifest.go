package catalog

import (
	"fmt"
	"net/url"
	"os"
	"path"
	"strings"

	"gopkg.in/yaml.v3"
)

// Sheet is one downloadable spec sheet. File overrides the name derived from
// the URL.
type Sheet struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
	File string `yaml:"file,omitempty"`
}

type Manifest struct {
	Sheets []Sheet `yaml:"sheets"`
}

func LoadManifest(p string) (Manifest, error) {
	blob, err := os.ReadFile(p)
	if err != nil {
		return Manifest{}, err
	}
	return ParseManifest(blob)
}

func ParseManifest(blob []byte) (Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(blob, &m); err != nil {
		return Manifest{}, fmt.Errorf("parse manifest: %w", err)
	}
	seen := map[string]struct{}{}
	for i, s := range m.Sheets {
		if strings.TrimSpace(s.Name) == "" {
			return Manifest{}, fmt.Errorf("manifest sheet %d: missing name", i)
		}
		if _, ok := seen[s.Name]; ok {
			return Manifest{}, fmt.Errorf("manifest sheet %q: duplicate name", s.Name)
		}
		seen[s.Name] = struct{}{}
		u, err := url.Parse(s.URL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return Manifest{}, fmt.Errorf("manifest sheet %q: invalid url %q", s.Name, s.URL)
		}
	}
	return m, nil
}

func extForContentType(contentType string) string {
	mediaType, _, _ := strings.Cut(contentType, ";")
	switch strings.ToLower(strings.TrimSpace(mediaType)) {
	case "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":
		return ".xlsx"
	case "text/csv":
		return ".csv"
	case "text/html":
		return ".html"
	case "text/plain":
		return ".txt"
	case "image/png":
		return ".png"
	case "image/jpeg":
		return ".jpg"
	case "image/tiff":
		return ".tif"
	default:
		return ".pdf"
	}
}

// fileName picks the local name for a downloaded sheet: the manifest's file,
// else the URL's base name, else the sheet name with an extension from the
// response content type.
func (s Sheet) fileName(contentType string) string {
	if s.File != "" {
		return path.Base(s.File)
	}
	if u, err := url.Parse(s.URL); err == nil {
		if base := path.Base(u.Path); base != "." && base != "/" && path.Ext(base) != "" {
			return base
		}
	}
	return sanitizeName(s.Name) + extForContentType(contentType)
}

func sanitizeName(input string) string {
	repl := strings.NewReplacer("<", "_", ">", "_", ":", "_", "/", "_", "\\", "_", "|", "_", "?", "_", "*", "_", " ", "_")
	out := repl.Replace(strings.TrimSpace(input))
	if len(out) > 120 {
		out = out[:120]
	}
	return out
}
