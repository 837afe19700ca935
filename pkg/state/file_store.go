package state

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// FileFormat selects the encoding of documents written by a FileStore.
type FileFormat string

const (
	FormatJSON FileFormat = "json"
	FormatYAML FileFormat = "yaml"
	FormatTOML FileFormat = "toml"
)

// ParseFileFormat accepts a format name or file extension, e.g. ".yml".
func ParseFileFormat(value string) (FileFormat, error) {
	switch strings.ToLower(strings.TrimPrefix(strings.TrimSpace(value), ".")) {
	case "", "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	case "toml":
		return FormatTOML, nil
	default:
		return "", fmt.Errorf("state: unsupported file format %q", value)
	}
}

// fileEnvelope is the on-disk layout: storage metadata next to the raw layer
// document.
type fileEnvelope struct {
	Meta     Meta     `json:"meta" yaml:"meta" toml:"meta"`
	Document Document `json:"document" yaml:"document" toml:"document"`
}

// FileStore keeps one file per layer under a root directory, named after the
// layer identifier: <root>/studio/system_settings.yaml.
type FileStore struct {
	root   string
	format FileFormat
	mu     sync.RWMutex
}

func NewFileStore(root string, format FileFormat) (*FileStore, error) {
	if strings.TrimSpace(root) == "" {
		return nil, fmt.Errorf("state: file store root is required")
	}
	if _, err := ParseFileFormat(string(format)); err != nil {
		return nil, err
	}
	if format == "" {
		format = FormatJSON
	}
	return &FileStore{root: root, format: format}, nil
}

// Path returns the file backing ref.
func (s *FileStore) Path(ref Ref) (string, error) {
	id, err := ref.Identifier()
	if err != nil {
		return "", err
	}
	return filepath.Join(s.root, filepath.FromSlash(id)+"."+string(s.format)), nil
}

func (s *FileStore) Load(_ context.Context, ref Ref) (Document, Meta, bool, error) {
	path, err := s.Path(ref)
	if err != nil {
		return nil, Meta{}, false, err
	}

	s.mu.RLock()
	raw, err := os.ReadFile(path)
	s.mu.RUnlock()
	if errors.Is(err, fs.ErrNotExist) {
		return nil, Meta{}, false, nil
	}
	if err != nil {
		return nil, Meta{}, false, err
	}

	var envelope fileEnvelope
	if err := s.decode(raw, &envelope); err != nil {
		return nil, Meta{}, false, fmt.Errorf("state: decode %s: %w", path, err)
	}
	if envelope.Document == nil {
		envelope.Document = Document{}
	}
	return envelope.Document, envelope.Meta, true, nil
}

func (s *FileStore) Save(_ context.Context, ref Ref, doc Document, meta Meta) (Meta, error) {
	path, err := s.Path(ref)
	if err != nil {
		return Meta{}, err
	}
	if doc == nil {
		doc = Document{}
	}
	raw, err := s.encode(fileEnvelope{Meta: meta, Document: doc})
	if err != nil {
		return Meta{}, fmt.Errorf("state: encode %s: %w", path, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := writeFileAtomic(path, raw); err != nil {
		return Meta{}, err
	}
	return cloneMeta(meta), nil
}

func (s *FileStore) encode(envelope fileEnvelope) ([]byte, error) {
	switch s.format {
	case FormatYAML:
		return yaml.Marshal(envelope)
	case FormatTOML:
		var buf bytes.Buffer
		if err := toml.NewEncoder(&buf).Encode(envelope); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	default:
		return json.MarshalIndent(envelope, "", "  ")
	}
}

func (s *FileStore) decode(raw []byte, envelope *fileEnvelope) error {
	switch s.format {
	case FormatYAML:
		return yaml.Unmarshal(raw, envelope)
	case FormatTOML:
		_, err := toml.Decode(string(raw), envelope)
		return err
	default:
		return json.Unmarshal(raw, envelope)
	}
}

func writeFileAtomic(path string, raw []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("state: create %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("state: write %s: %w", path, err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("state: write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("state: write %s: %w", path, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("state: rename %s: %w", path, err)
	}
	return nil
}
