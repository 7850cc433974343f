package guidelines

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/JaimeStill/steward/pkg/formatting"
)

// Format is a guideline file encoding.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// Document is the keyed form of a guideline file.
type Document struct {
	Guidelines []string `json:"guidelines" yaml:"guidelines"`
}

// FormatOf picks a format from a file extension.
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownFormat, path)
	}
}

// Decode reads guidelines from r. Both a bare list and a document with a
// guidelines key are accepted, optionally wrapped in a markdown code fence.
func Decode(r io.Reader, format Format) ([]string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read guidelines: %w", err)
	}

	switch format {
	case FormatYAML:
		return decodeYAML(data)
	case FormatJSON:
		return decodeJSON(string(data))
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

func decodeYAML(data []byte) ([]string, error) {
	if content := strings.TrimSpace(string(data)); strings.HasPrefix(content, "```") {
		data = []byte(formatting.Unfence(content))
	}

	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecodeFailed, err)
	}
	if len(node.Content) == 0 {
		return []string{}, nil
	}

	root := node.Content[0]
	switch root.Kind {
	case yaml.SequenceNode:
		var list []string
		if err := root.Decode(&list); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrDecodeFailed, err)
		}
		return list, nil
	case yaml.MappingNode:
		var doc Document
		if err := root.Decode(&doc); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrDecodeFailed, err)
		}
		return doc.Guidelines, nil
	default:
		return nil, fmt.Errorf("%w: expected a list or a guidelines key", ErrDecodeFailed)
	}
}

func decodeJSON(content string) ([]string, error) {
	if strings.TrimSpace(content) == "" {
		return []string{}, nil
	}
	if list, err := formatting.Parse[[]string](content); err == nil {
		return list, nil
	}
	doc, err := formatting.Parse[Document](content)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecodeFailed, err)
	}
	return doc.Guidelines, nil
}

// Encode writes guidelines to w as a keyed document.
func Encode(w io.Writer, format Format, guidelines []string) error {
	doc := Document{Guidelines: guidelines}
	if doc.Guidelines == nil {
		doc.Guidelines = []string{}
	}

	switch format {
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return fmt.Errorf("encode guidelines: %w", err)
		}
		return enc.Close()
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(doc); err != nil {
			return fmt.Errorf("encode guidelines: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

// Import decodes a guideline file and applies it with ReplaceAll
// semantics, so an empty file leaves the list alone. It returns the
// number of guidelines read.
func (e *Editor) Import(ctx context.Context, r io.Reader, format Format) (int, error) {
	items, err := Decode(r, format)
	if err != nil {
		return 0, err
	}
	if err := e.ReplaceAll(ctx, items); err != nil {
		return len(items), err
	}
	return len(items), nil
}

// Export writes the current guidelines to w.
func (e *Editor) Export(w io.Writer, format Format) error {
	return Encode(w, format, e.List())
}
