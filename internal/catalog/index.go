package catalog

import (
	"path"
	"sort"
	"strings"

	"github.com/lexiqai/session-recorder/internal/backend"
)

var (
	audioExtensions = map[string]bool{
		".wav":  true,
		".mp3":  true,
		".webm": true,
		".flac": true,
		".m4a":  true,
		".ogg":  true,
	}

	// stripped repeatedly from the end of a base name, so that
	// "<id>_recording_final_transcription" reduces to "<id>"
	artifactSuffixes = []string{
		"_final",
		"_recording",
		"_transcription",
		"_transcript",
		"_summary",
		"_resumen",
	}

	summarySuffixes = []string{"_summary", "_resumen"}
)

// ArtifactID derives the identity shared by an audio file and its transcript
// and summary from a storage key
func ArtifactID(key string) string {
	base := path.Base(key)
	id := strings.TrimSuffix(base, path.Ext(base))

	for {
		trimmed := id
		for _, suffix := range artifactSuffixes {
			if hasSuffixFold(trimmed, suffix) {
				trimmed = trimmed[:len(trimmed)-len(suffix)]
			}
		}
		if trimmed == id || trimmed == "" {
			break
		}
		id = trimmed
	}
	return id
}

func hasSuffixFold(s, suffix string) bool {
	return len(s) > len(suffix) && strings.EqualFold(s[len(s)-len(suffix):], suffix)
}

// Kind classifies a catalog file
type Kind string

const (
	KindAudio      Kind = "audio"
	KindTranscript Kind = "transcript"
	KindSummary    Kind = "summary"
	KindOther      Kind = "other"
)

// Classify decides what a catalog file is from its key and content type
func Classify(f backend.File) Kind {
	ext := strings.ToLower(path.Ext(f.Key))
	if audioExtensions[ext] || strings.HasPrefix(strings.ToLower(f.ContentType), "audio/") {
		return KindAudio
	}
	if ext != ".txt" {
		return KindOther
	}
	stem := strings.TrimSuffix(path.Base(f.Key), path.Ext(f.Key))
	for _, suffix := range summarySuffixes {
		if hasSuffixFold(stem, suffix) {
			return KindSummary
		}
	}
	return KindTranscript
}

// Group is every known artifact of one recording
type Group struct {
	ID         string        `json:"id"`
	Audio      *backend.File `json:"audio,omitempty"`
	Transcript *backend.File `json:"transcript,omitempty"`
	Summary    *backend.File `json:"summary,omitempty"`
}

// Index groups a catalog snapshot by artifact id. The first file of each kind
// seen for an id wins.
type Index struct {
	groups map[string]*Group
}

// NewIndex builds an index from a /files listing
func NewIndex(files []backend.File) *Index {
	idx := &Index{groups: make(map[string]*Group)}
	for i := range files {
		f := files[i]
		kind := Classify(f)
		if kind == KindOther {
			continue
		}

		id := ArtifactID(f.Key)
		g, ok := idx.groups[id]
		if !ok {
			g = &Group{ID: id}
			idx.groups[id] = g
		}

		switch kind {
		case KindAudio:
			if g.Audio == nil {
				g.Audio = &f
			}
		case KindTranscript:
			if g.Transcript == nil {
				g.Transcript = &f
			}
		case KindSummary:
			if g.Summary == nil {
				g.Summary = &f
			}
		}
	}
	return idx
}

// Lookup returns the group an artifact key belongs to
func (idx *Index) Lookup(key string) (Group, bool) {
	g, ok := idx.groups[ArtifactID(key)]
	if !ok {
		return Group{}, false
	}
	return *g, true
}

// TranscriptFor returns the existing transcript of an audio key, if any
func (idx *Index) TranscriptFor(audioKey string) (*backend.File, bool) {
	g, ok := idx.groups[ArtifactID(audioKey)]
	if !ok || g.Transcript == nil {
		return nil, false
	}
	return g.Transcript, true
}

// Groups returns every group ordered by id
func (idx *Index) Groups() []Group {
	out := make([]Group, 0, len(idx.groups))
	for _, g := range idx.groups {
		out = append(out, *g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Len is the number of groups
func (idx *Index) Len() int {
	return len(idx.groups)
}
