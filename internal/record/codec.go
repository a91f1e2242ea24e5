package record

import (
	"encoding/json"
	"fmt"
)

const envelopeVersion = 1

// envelope is the persisted body: the variant's type name travels with its
// fields so a body can always be decoded into the right variant.
type envelope struct {
	Type    string          `json:"type"`
	Version int             `json:"version"`
	Record  json.RawMessage `json:"record"`
}

// Marshal serializes r's body. Tags are stored separately by the wallet.
func Marshal(r Record) ([]byte, error) {
	fields, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("marshal %s: %w", r.TypeName(), err)
	}
	return json.Marshal(envelope{Type: r.TypeName(), Version: envelopeVersion, Record: fields})
}

// Decode rebuilds a record stored under typeName from its body and tags.
func (r *Registry) Decode(typeName string, body []byte, tags map[string]string) (Record, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("unmarshal %s envelope: %w", typeName, err)
	}
	if env.Type != typeName {
		return nil, fmt.Errorf("%w: stored %q, requested %q", ErrTypeMismatch, env.Type, typeName)
	}
	if env.Version != envelopeVersion {
		return nil, fmt.Errorf("unsupported %s envelope version %d", typeName, env.Version)
	}

	rec, err := r.New(env.Type)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(env.Record, rec); err != nil {
		return nil, fmt.Errorf("unmarshal %s: %w", typeName, err)
	}
	restoreTags(rec, tags)
	return rec, nil
}
