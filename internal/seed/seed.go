// Package seed loads flags from YAML seed files and applies them through the
// administrative service.
//
// A seed file lists flags under a top-level "flags" key:
//
//	flags:
//	  - key: dark-mode
//	    value: true
//	  - key: limits
//	    consumer: billing
//	    value: {max: 10, burst: 20}
//
// Scalar values are stored as written. Mappings and sequences are stored as
// JSON text with their key order preserved. A missing consumer means the
// universal consumer.
package seed

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/alfredjeanlab/grapio/internal/flags"
	"github.com/alfredjeanlab/grapio/internal/model"
	"github.com/alfredjeanlab/grapio/internal/sync"
)

// Entry is one flag of a seed file.
type Entry struct {
	Key      string `json:"key"`
	Consumer string `json:"consumer,omitempty"`
	Value    string `json:"value"`
	Line     int    `json:"line,omitempty"`
}

func (e Entry) String() string {
	return fmt.Sprintf("%s (line %d)", model.FlagIdentity{Key: e.Key, Consumer: model.NormalizeConsumer(e.Consumer)}, e.Line)
}

// File is a parsed seed file.
type File struct {
	Flags []Entry `yaml:"flags"`
}

// UnmarshalYAML decodes an entry, rendering non-scalar values as JSON.
func (e *Entry) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind == yaml.MappingNode {
		for i := 0; i < len(n.Content); i += 2 {
			switch k := n.Content[i].Value; k {
			case "key", "consumer", "value":
			default:
				return fmt.Errorf("line %d: unknown field %q", n.Content[i].Line, k)
			}
		}
	}
	var raw struct {
		Key      string    `yaml:"key"`
		Consumer string    `yaml:"consumer"`
		Value    yaml.Node `yaml:"value"`
	}
	if err := n.Decode(&raw); err != nil {
		return err
	}
	e.Key, e.Consumer, e.Line = raw.Key, raw.Consumer, n.Line

	if raw.Value.Kind == 0 || (raw.Value.Kind == yaml.ScalarNode && raw.Value.Tag == "!!null") {
		return fmt.Errorf("line %d: value is required", n.Line)
	}
	if raw.Value.Kind == yaml.ScalarNode {
		e.Value = raw.Value.Value
		return nil
	}
	var buf bytes.Buffer
	if err := writeJSON(&buf, &raw.Value); err != nil {
		return fmt.Errorf("line %d: %w", raw.Value.Line, err)
	}
	e.Value = buf.String()
	return nil
}

// writeJSON renders a YAML node as compact JSON, keeping mapping order.
func writeJSON(buf *bytes.Buffer, n *yaml.Node) error {
	switch n.Kind {
	case yaml.AliasNode:
		return writeJSON(buf, n.Alias)
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			buf.WriteString("null")
			return nil
		}
		return writeJSON(buf, n.Content[0])
	case yaml.MappingNode:
		buf.WriteByte('{')
		for i := 0; i+1 < len(n.Content); i += 2 {
			if i > 0 {
				buf.WriteByte(',')
			}
			k := n.Content[i]
			if k.Kind != yaml.ScalarNode {
				return errors.New("mapping keys must be scalars")
			}
			key, _ := json.Marshal(k.Value)
			buf.Write(key)
			buf.WriteByte(':')
			if err := writeJSON(buf, n.Content[i+1]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
		return nil
	case yaml.SequenceNode:
		buf.WriteByte('[')
		for i, c := range n.Content {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeJSON(buf, c); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
		return nil
	case yaml.ScalarNode:
		var v any
		if err := n.Decode(&v); err != nil {
			return err
		}
		out, err := json.Marshal(v)
		if err != nil {
			// Values JSON cannot carry, such as .inf, keep their text.
			out, _ = json.Marshal(n.Value)
		}
		buf.Write(out)
		return nil
	default:
		return fmt.Errorf("unsupported YAML node kind %d", n.Kind)
	}
}

// Parse reads a seed file from r and validates every entry.
func Parse(r io.Reader) (*File, error) {
	var f File
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse seed file: %w", err)
	}
	for _, e := range f.Flags {
		if err := model.ValidateIdentity(e.Key, model.NormalizeConsumer(e.Consumer)); err != nil {
			return nil, fmt.Errorf("seed entry at line %d: %w", e.Line, err)
		}
	}
	return &f, nil
}

// Load reads the seed file at path. Files ending in .jsonl are read as
// snapshots written by sync.ExportJSONL; anything else is YAML.
func Load(path string) (*File, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fh.Close()
	if strings.EqualFold(filepath.Ext(path), ".jsonl") {
		_, list, err := sync.ReadJSONL(fh)
		if err != nil {
			return nil, fmt.Errorf("read snapshot %s: %w", path, err)
		}
		return FromFlags(list), nil
	}
	return Parse(fh)
}

// FromFlags builds a seed file from stored flags. Line numbers follow the
// snapshot layout, where the header occupies the first line.
func FromFlags(list []*model.FeatureFlag) *File {
	f := &File{Flags: make([]Entry, len(list))}
	for i, fl := range list {
		f.Flags[i] = Entry{Key: fl.Key, Consumer: fl.Consumer, Value: fl.Value, Line: i + 2}
	}
	return f
}

// SetFunc writes one entry. ok is false when the write was rejected by the
// scoping policy, with message explaining why.
type SetFunc func(ctx context.Context, e Entry) (ok bool, message string, err error)

// AdminSetter writes entries through a.
func AdminSetter(a *flags.Admin) SetFunc {
	return func(ctx context.Context, e Entry) (bool, string, error) {
		v := e.Value
		res, err := a.Set(ctx, flags.SetRequest{Key: e.Key, Value: &v, Consumer: e.Consumer})
		if err != nil {
			return false, "", err
		}
		return res.Success, res.Message, nil
	}
}

// Conflict is an entry the scoping policy rejected.
type Conflict struct {
	Entry   Entry  `json:"entry"`
	Message string `json:"message"`
}

// Report is the outcome of applying a seed file.
type Report struct {
	Applied   []Entry    `json:"applied"`
	Conflicts []Conflict `json:"conflicts"`
}

// Apply writes every entry of f in order. Conflicts are collected in the
// report; any other error stops the run.
func Apply(ctx context.Context, f *File, set SetFunc) (*Report, error) {
	rep := &Report{}
	for _, e := range f.Flags {
		ok, msg, err := set(ctx, e)
		if err != nil {
			return rep, fmt.Errorf("apply %s: %w", e, err)
		}
		if !ok {
			rep.Conflicts = append(rep.Conflicts, Conflict{Entry: e, Message: msg})
			continue
		}
		rep.Applied = append(rep.Applied, e)
	}
	return rep, nil
}

// ApplyFile loads path and applies it.
func ApplyFile(ctx context.Context, path string, set SetFunc) (*Report, error) {
	f, err := Load(path)
	if err != nil {
		return nil, err
	}
	return Apply(ctx, f, set)
}
