// SPDX-License-Identifier: MPL-2.0

package credentials

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

type (
	// FileStore reads records from a YAML credentials file:
	//
	//	credentials:
	//	  - id: levo-prod
	//	    type: levo-cli
	//	    organizationId: "..."
	//	    authorizationKey: "..."
	//	  - id: staging-env
	//	    type: secret-file
	//	    file: secrets/environment.yaml
	//
	// Files with a .toml extension use the same layout as [[credentials]]
	// tables. Secret file paths are relative to the credentials file.
	FileStore struct {
		fs   afero.Fs
		path string
	}

	fileDocument struct {
		Credentials []fileRecord `yaml:"credentials" toml:"credentials"`
	}

	fileRecord struct {
		ID               string     `yaml:"id" toml:"id"`
		Type             RecordType `yaml:"type" toml:"type"`
		Description      string     `yaml:"description" toml:"description"`
		OrganizationID   string     `yaml:"organizationId" toml:"organizationId"`
		AuthorizationKey Secret     `yaml:"authorizationKey" toml:"authorizationKey"`
		BaseURL          string     `yaml:"baseUrl" toml:"baseUrl"`
		Secret           Secret     `yaml:"secret" toml:"secret"`
		File             string     `yaml:"file" toml:"file"`
	}
)

// NewFileStore creates a store reading path from fs.
func NewFileStore(fs afero.Fs, path string) *FileStore {
	return &FileStore{fs: fs, path: path}
}

// Lookup implements Store. The file is re-read on every call so rotated
// secrets are picked up between runs.
func (s *FileStore) Lookup(ctx context.Context, id string) (*Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	records, err := s.load()
	if err != nil {
		return nil, err
	}

	for _, fr := range records {
		if fr.ID != id {
			continue
		}
		rec := &Record{
			ID:               fr.ID,
			Type:             fr.Type,
			Description:      fr.Description,
			OrganizationID:   fr.OrganizationID,
			AuthorizationKey: fr.AuthorizationKey,
			BaseURL:          fr.BaseURL,
			Secret:           fr.Secret,
		}
		if fr.Type == RecordSecretFile {
			content, err := s.readSecretFile(fr.File)
			if err != nil {
				return nil, fmt.Errorf("%s: record %q: %w", s.path, id, err)
			}
			rec.Secret = content
		}
		return rec, nil
	}
	return nil, fmt.Errorf("%s: %w", s.path, ErrRecordNotFound)
}

func (s *FileStore) load() ([]fileRecord, error) {
	data, err := afero.ReadFile(s.fs, s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read credentials file: %w", err)
	}

	var doc fileDocument
	if strings.EqualFold(filepath.Ext(s.path), ".toml") {
		if err := toml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("%s: invalid TOML: %w", s.path, err)
		}
	} else if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%s: invalid YAML: %w", s.path, err)
	}

	seen := make(map[string]bool, len(doc.Credentials))
	for i, fr := range doc.Credentials {
		if strings.TrimSpace(fr.ID) == "" {
			return nil, fmt.Errorf("%s: credentials[%d]: id is required", s.path, i)
		}
		if seen[fr.ID] {
			return nil, fmt.Errorf("%s: credentials[%d]: duplicate id %q", s.path, i, fr.ID)
		}
		seen[fr.ID] = true
		if err := fr.Type.Validate(); err != nil {
			return nil, fmt.Errorf("%s: credentials[%d]: %w", s.path, i, err)
		}
	}
	return doc.Credentials, nil
}

// readSecretFile returns the file's UTF-8 lines joined with "\n".
func (s *FileStore) readSecretFile(name string) (Secret, error) {
	if strings.TrimSpace(name) == "" {
		return "", errors.New("secret-file record has no file")
	}
	if !filepath.IsAbs(name) {
		name = filepath.Join(filepath.Dir(s.path), name)
	}

	data, err := afero.ReadFile(s.fs, name)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(data) {
		return "", fmt.Errorf("%s: not valid UTF-8", name)
	}
	return Secret(joinLines(data)), nil
}

func joinLines(data []byte) string {
	var lines []string
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), len(data)+1)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	return strings.Join(lines, "\n")
}
