package server

import (
	"encoding/json"
	"log/slog"
	"net/http"

	grapiov1 "github.com/alfredjeanlab/grapio/gen/grapio/v1"
	"github.com/alfredjeanlab/grapio/internal/detect"
	"github.com/alfredjeanlab/grapio/internal/flags"
	"github.com/alfredjeanlab/grapio/internal/model"
	"github.com/alfredjeanlab/grapio/internal/presence"
)

// setFlagBody is the body of PUT /v1/flags/{key}.
type setFlagBody struct {
	Value    *string `json:"value"`
	Consumer string  `json:"consumer"`
}

// flagRecord is a flag lookup result. Populated is false on a miss.
type flagRecord struct {
	Key       string `json:"key,omitempty"`
	Consumer  string `json:"consumer,omitempty"`
	Value     string `json:"value,omitempty"`
	Populated bool   `json:"populated"`
}

// ResolvedLine is one line of the GET /v1/resolve/{consumer} NDJSON stream.
// Value holds a bool, integer, number or string according to Type; structured
// values are sent as their text. A line with Error set ends the stream.
type ResolvedLine struct {
	Key      string          `json:"key,omitempty"`
	Consumer string          `json:"consumer,omitempty"`
	Type     string          `json:"type,omitempty"`
	Value    json.RawMessage `json:"value,omitempty"`
	Error    string          `json:"error,omitempty"`
}

// handleSetFlag handles PUT /v1/flags/{key}.
func (s *Server) handleSetFlag(w http.ResponseWriter, r *http.Request) {
	var body setFlagBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	res, err := s.Control.admin.Set(r.Context(), flags.SetRequest{
		Key:      r.PathValue("key"),
		Value:    body.Value,
		Consumer: body.Consumer,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handleUnsetFlag handles DELETE /v1/flags/{key}?consumer=.
func (s *Server) handleUnsetFlag(w http.ResponseWriter, r *http.Request) {
	res, err := s.Control.admin.Unset(r.Context(), r.PathValue("key"), r.URL.Query().Get("consumer"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handleListFlags handles GET /v1/flags. Without filters it lists every
// identity; ?key= or ?consumer= return full records.
func (s *Server) handleListFlags(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	key, consumer := q.Get("key"), q.Get("consumer")
	admin := s.Control.admin

	switch {
	case key != "" && consumer != "":
		writeError(w, http.StatusBadRequest, "specify at most one of key or consumer")
	case key != "":
		list, err := admin.FetchByKey(r.Context(), key)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"flags": nonNil(list)})
	case q.Has("consumer"):
		list, err := admin.FetchByConsumer(r.Context(), consumer)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"flags": nonNil(list)})
	default:
		ids := []model.FlagIdentity{}
		for id, err := range admin.FetchAll(r.Context()) {
			if err != nil {
				writeDomainError(w, err)
				return
			}
			ids = append(ids, id)
		}
		writeJSON(w, http.StatusOK, map[string]any{"flags": ids})
	}
}

// handleGetFlag handles GET /v1/flags/{key}/consumers/{consumer}.
func (s *Server) handleGetFlag(w http.ResponseWriter, r *http.Request) {
	flag, found, err := s.Control.admin.FetchByKeyAndConsumer(r.Context(), r.PathValue("key"), r.PathValue("consumer"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if !found {
		writeJSON(w, http.StatusOK, flagRecord{Populated: false})
		return
	}
	writeJSON(w, http.StatusOK, flagRecord{
		Key:       flag.Key,
		Consumer:  flag.Consumer,
		Value:     flag.Value,
		Populated: true,
	})
}

// handleResolve handles GET /v1/resolve/{consumer}, streaming one NDJSON
// line per visible flag. An error before the first line is a regular error
// response; after it, an error line ends the stream.
func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	flusher, _ := w.(http.Flusher)
	enc := json.NewEncoder(w)
	started := false

	start := func() {
		if started {
			return
		}
		started = true
		w.Header().Set("Content-Type", "application/x-ndjson")
		w.Header().Set("Cache-Control", "no-cache")
		w.WriteHeader(http.StatusOK)
	}

	n := 0
	err := s.Provider.provider.Resolve(r.Context(), r.PathValue("consumer"), func(f flags.ResolvedFlag) error {
		n++
		line, err := resolvedToLine(f)
		if err != nil {
			return err
		}
		start()
		if err := enc.Encode(line); err != nil {
			return err
		}
		if flusher != nil {
			flusher.Flush()
		}
		return nil
	})
	if err == nil {
		start()
		s.Presence.Record(presence.Fetch{Consumer: r.PathValue("consumer"), Transport: "http", Flags: n})
		return
	}
	if !started {
		writeDomainError(w, err)
		return
	}
	slog.Warn("resolve stream aborted", "consumer", r.PathValue("consumer"), "error", err)
	_ = enc.Encode(ResolvedLine{Error: err.Error()})
}

func resolvedToLine(f flags.ResolvedFlag) (ResolvedLine, error) {
	var v any
	switch f.Value.Type {
	case detect.TypeBoolean:
		v = f.Value.Boolean
	case detect.TypeInteger:
		v = f.Value.Integer
	case detect.TypeDouble:
		v = grapiov1.Double(f.Value.Double)
	case detect.TypeString:
		v = f.Value.String
	case detect.TypeStructured:
		v = string(f.Value.Structure)
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return ResolvedLine{}, err
	}
	return ResolvedLine{
		Key:      f.Key,
		Consumer: f.Consumer,
		Type:     f.Value.Type.String(),
		Value:    raw,
	}, nil
}

func nonNil(list []*model.FeatureFlag) []*model.FeatureFlag {
	if list == nil {
		return []*model.FeatureFlag{}
	}
	return list
}
