package store

import (
	"encoding/json"
	"fmt"
	"hash/crc32"

	"github.com/Adithya-Monish-Kumar-K/vsm-retrieval/internal/indexer/index"
	apperrors "github.com/Adithya-Monish-Kumar-K/vsm-retrieval/pkg/errors"
)

// FormatVersion identifies the artifact layout written by Encode.
const FormatVersion = 1

// Artifact names shared by every backend.
const (
	ArtifactPostings = "index"
	ArtifactDF       = "df"
	ArtifactIDF      = "idf"
	ArtifactDocLen   = "doclen"
	ArtifactMeta     = "meta"
)

// dataArtifacts are published before the meta artifact, which is always
// written last.
var dataArtifacts = []string{ArtifactPostings, ArtifactDF, ArtifactIDF, ArtifactDocLen}

// Artifacts maps an artifact name to its encoded bytes.
type Artifacts map[string][]byte

// Meta is the manifest artifact. Checksums tie it to the exact data
// artifacts written in the same save.
type Meta struct {
	N         *int              `json:"N"`
	Version   int               `json:"version"`
	Checksums map[string]uint32 `json:"checksums"`
}

// Encode serializes a snapshot into its five artifacts. encoding/json emits
// the shortest decimal form that parses back to the same float64, so idf and
// norm values survive a round trip bit for bit.
func Encode(snap *index.Snapshot) (Artifacts, error) {
	parts := snap.Parts()
	values := map[string]any{
		ArtifactPostings: parts.Postings,
		ArtifactDF:       parts.DF,
		ArtifactIDF:      parts.IDF,
		ArtifactDocLen:   parts.DocNorms,
	}
	out := make(Artifacts, len(dataArtifacts)+1)
	n := parts.N
	meta := Meta{N: &n, Version: FormatVersion, Checksums: make(map[string]uint32, len(dataArtifacts))}
	for _, name := range dataArtifacts {
		data, err := json.Marshal(values[name])
		if err != nil {
			return nil, fmt.Errorf("marshaling %s artifact: %w", name, err)
		}
		out[name] = data
		meta.Checksums[name] = crc32.ChecksumIEEE(data)
	}
	metaData, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("marshaling meta artifact: %w", err)
	}
	out[ArtifactMeta] = metaData
	return out, nil
}

// Decode rebuilds a snapshot. Any absent artifact fails with ErrNotFound;
// undecodable, mismatched or inconsistent artifacts fail with ErrParse.
func Decode(a Artifacts) (*index.Snapshot, error) {
	for _, name := range append([]string{ArtifactMeta}, dataArtifacts...) {
		if _, ok := a[name]; !ok {
			return nil, fmt.Errorf("artifact %q: %w", name, apperrors.ErrNotFound)
		}
	}

	var meta Meta
	if err := json.Unmarshal(a[ArtifactMeta], &meta); err != nil {
		return nil, fmt.Errorf("decoding meta artifact: %v: %w", err, apperrors.ErrParse)
	}
	if meta.N == nil {
		return nil, fmt.Errorf("meta artifact has no N: %w", apperrors.ErrParse)
	}
	if meta.Version != FormatVersion {
		return nil, fmt.Errorf("meta artifact version %d, want %d: %w", meta.Version, FormatVersion, apperrors.ErrParse)
	}
	for _, name := range dataArtifacts {
		want, ok := meta.Checksums[name]
		if !ok {
			return nil, fmt.Errorf("meta artifact has no checksum for %q: %w", name, apperrors.ErrParse)
		}
		if got := crc32.ChecksumIEEE(a[name]); got != want {
			return nil, fmt.Errorf("artifact %q checksum %08x, meta records %08x: %w", name, got, want, apperrors.ErrParse)
		}
	}

	parts := index.Parts{N: *meta.N}
	targets := map[string]any{
		ArtifactPostings: &parts.Postings,
		ArtifactDF:       &parts.DF,
		ArtifactIDF:      &parts.IDF,
		ArtifactDocLen:   &parts.DocNorms,
	}
	for _, name := range dataArtifacts {
		if err := json.Unmarshal(a[name], targets[name]); err != nil {
			return nil, fmt.Errorf("decoding %s artifact: %v: %w", name, err, apperrors.ErrParse)
		}
	}
	snap, err := index.FromParts(parts)
	if err != nil {
		return nil, fmt.Errorf("validating artifacts: %w", err)
	}
	return snap, nil
}
