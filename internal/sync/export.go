package sync

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/alfredjeanlab/grapio/internal/idgen"
	"github.com/alfredjeanlab/grapio/internal/model"
)

// FormatVersion is written in every snapshot header.
const FormatVersion = "1"

// Source supplies the flags to snapshot. *flags.Admin implements it.
type Source interface {
	Export(ctx context.Context) ([]*model.FeatureFlag, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context) ([]*model.FeatureFlag, error)

func (f SourceFunc) Export(ctx context.Context) ([]*model.FeatureFlag, error) { return f(ctx) }

// Header is the first JSONL record of a snapshot.
type Header struct {
	Version   string    `json:"version"`
	Type      string    `json:"type"`
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	FlagCount int       `json:"flag_count"`
}

// record wraps a single JSONL line with a type discriminator.
type record struct {
	Type string             `json:"type"`
	Data *model.FeatureFlag `json:"data"`
}

// Snapshot is an encoded export ready for a Destination.
type Snapshot struct {
	ID    string
	Flags int
	Data  []byte
}

// ExportJSONL writes every flag from src as JSONL to w: a header line, then
// one record per flag sorted by key and consumer. It returns the header.
func ExportJSONL(ctx context.Context, src Source, w io.Writer) (Header, error) {
	flags, err := src.Export(ctx)
	if err != nil {
		return Header{}, fmt.Errorf("list flags: %w", err)
	}
	sort.Slice(flags, func(i, j int) bool {
		if flags[i].Key != flags[j].Key {
			return flags[i].Key < flags[j].Key
		}
		return flags[i].Consumer < flags[j].Consumer
	})

	id, err := idgen.WithPrefix("snap-")
	if err != nil {
		return Header{}, err
	}
	h := Header{
		Version:   FormatVersion,
		Type:      "header",
		ID:        id,
		Timestamp: time.Now().UTC(),
		FlagCount: len(flags),
	}

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(h); err != nil {
		return Header{}, fmt.Errorf("encode header: %w", err)
	}
	for _, f := range flags {
		if err := enc.Encode(record{Type: "flag", Data: f}); err != nil {
			return Header{}, fmt.Errorf("encode flag %s: %w", f.Identity(), err)
		}
	}
	return h, nil
}

// ReadJSONL parses a snapshot written by ExportJSONL. Records of unknown type
// are skipped; a flag count that disagrees with the header is an error.
func ReadJSONL(r io.Reader) (Header, []*model.FeatureFlag, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	var (
		h     Header
		flags []*model.FeatureFlag
		line  int
	)
	for sc.Scan() {
		line++
		raw := sc.Bytes()
		if len(raw) == 0 {
			continue
		}
		if h.Type == "" {
			if err := json.Unmarshal(raw, &h); err != nil || h.Type != "header" {
				return Header{}, nil, fmt.Errorf("line %d: missing snapshot header", line)
			}
			if h.Version != FormatVersion {
				return Header{}, nil, fmt.Errorf("unsupported snapshot version %q", h.Version)
			}
			continue
		}
		var rec record
		if err := json.Unmarshal(raw, &rec); err != nil {
			return Header{}, nil, fmt.Errorf("line %d: %w", line, err)
		}
		if rec.Type != "flag" || rec.Data == nil {
			continue
		}
		flags = append(flags, rec.Data)
	}
	if err := sc.Err(); err != nil {
		return Header{}, nil, err
	}
	if h.Type == "" {
		return Header{}, nil, errors.New("empty snapshot")
	}
	if len(flags) != h.FlagCount {
		return Header{}, nil, fmt.Errorf("snapshot declares %d flags, found %d", h.FlagCount, len(flags))
	}
	return h, flags, nil
}
