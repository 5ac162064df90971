package integrity

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// RecordV1 is the persisted form of a Tracker. Materials and statuses are
// stored by name so records survive palette renumbering.
type RecordV1 struct {
	Cursor    int           `json:"cursor"`
	Reference []ReferenceV1 `json:"reference,omitempty"`
	Observed  []ObservedV1  `json:"observed,omitempty"`
}

type ReferenceV1 struct {
	Pos      [3]int `json:"pos"`
	Material string `json:"material"`
}

type ObservedV1 struct {
	Pos    [3]int `json:"pos"`
	Status string `json:"status"`
}

const recordSchemaV1 = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "properties": {
    "cursor": {"type": "integer"},
    "reference": {
      "type": ["array", "null"],
      "items": {
        "type": "object",
        "required": ["pos", "material"],
        "properties": {
          "pos": {"$ref": "#/$defs/pos"},
          "material": {"type": "string", "minLength": 1}
        }
      }
    },
    "observed": {
      "type": ["array", "null"],
      "items": {
        "type": "object",
        "required": ["pos", "status"],
        "properties": {
          "pos": {"$ref": "#/$defs/pos"},
          "status": {"enum": ["PRESERVED", "DESTROYED"]}
        }
      }
    }
  },
  "$defs": {
    "pos": {
      "type": "array",
      "items": {"type": "integer"},
      "minItems": 3,
      "maxItems": 3
    }
  }
}`

var recordSchema = jsonschema.MustCompileString("integrity_record_v1.schema.json", recordSchemaV1)

// Record exports the tracker state. Observed entries follow blueprint order.
func (t *Tracker) Record(res Resolver) (RecordV1, error) {
	rec := RecordV1{Cursor: t.cursor}
	if n := t.blueprint.Len(); n > 0 {
		rec.Reference = make([]ReferenceV1, 0, n)
	}
	for _, e := range t.blueprint.entries {
		name, ok := res.MaterialName(e.Expected)
		if !ok {
			return RecordV1{}, fmt.Errorf("integrity: material %d at %v has no name", e.Expected, e.Pos)
		}
		rec.Reference = append(rec.Reference, ReferenceV1{Pos: e.Pos.ToArray(), Material: name})
	}
	for _, e := range t.blueprint.entries {
		s, ok := t.observed[e.Pos]
		if !ok {
			continue
		}
		rec.Observed = append(rec.Observed, ObservedV1{Pos: e.Pos.ToArray(), Status: s.String()})
	}
	return rec, nil
}

// FromRecord rebuilds a tracker for a structure in worldID. Missing sections
// load as empty. Unknown names, empty reference cells, duplicates and observed
// positions outside the blueprint are reported as ErrCorrupt.
func FromRecord(worldID string, rec RecordV1, res Resolver) (*Tracker, error) {
	entries := make([]Entry, 0, len(rec.Reference))
	known := make(map[Pos]struct{}, len(rec.Reference))
	for i, r := range rec.Reference {
		m, ok := res.MaterialByName(r.Material)
		if !ok {
			return nil, fmt.Errorf("%w: reference[%d]: unknown material %q", ErrCorrupt, i, r.Material)
		}
		if m == Empty {
			return nil, fmt.Errorf("%w: reference[%d]: empty material", ErrCorrupt, i)
		}
		p := PosFromArray(r.Pos)
		if _, dup := known[p]; dup {
			return nil, fmt.Errorf("%w: reference[%d]: duplicate position %v", ErrCorrupt, i, r.Pos)
		}
		known[p] = struct{}{}
		entries = append(entries, Entry{Pos: p, Expected: m})
	}

	observed := make(map[Pos]Status, len(rec.Observed))
	for i, o := range rec.Observed {
		s, ok := ParseStatus(o.Status)
		if !ok {
			return nil, fmt.Errorf("%w: observed[%d]: unknown status %q", ErrCorrupt, i, o.Status)
		}
		p := PosFromArray(o.Pos)
		if _, ok := known[p]; !ok {
			return nil, fmt.Errorf("%w: observed[%d]: position %v not in reference", ErrCorrupt, i, o.Pos)
		}
		observed[p] = s
	}

	return &Tracker{
		worldID:   worldID,
		blueprint: Blueprint{entries: entries},
		observed:  observed,
		cursor:    rec.Cursor,
	}, nil
}

// SerializeTo writes the tracker as one JSON document.
func (t *Tracker) SerializeTo(w io.Writer, res Resolver) error {
	rec, err := t.Record(res)
	if err != nil {
		return err
	}
	return json.NewEncoder(w).Encode(rec)
}

// DeserializeFrom reads a document written by SerializeTo. The document is
// checked against the record schema before it is decoded.
func DeserializeFrom(r io.Reader, worldID string, res Resolver) (*Tracker, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if err := recordSchema.Validate(doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}

	var rec RecordV1
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return FromRecord(worldID, rec, res)
}
