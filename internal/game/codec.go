package game

import (
	"bytes"
	_ "embed"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed save.schema.json
var saveSchemaJSON string

var saveSchema = jsonschema.MustCompileString("save.schema.json", saveSchemaJSON)

// Encode serializes a snapshot to the persisted JSON form.
func Encode(s *GameState) ([]byte, error) {
	raw, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encode state: %w", err)
	}
	return raw, nil
}

// ValidateSave checks raw JSON against the save document schema.
func ValidateSave(raw []byte) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidImport, err)
	}
	if err := saveSchema.Validate(doc); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidImport, err)
	}
	return nil
}

// Export packs a snapshot into a single copy-pasteable string.
func Export(s *GameState) (string, error) {
	raw, err := Encode(s)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// Import unpacks an export code and reconciles it against canonical. The
// imported save replaces the game as-is: no offline income is credited.
// Any failure returns ErrInvalidImport and no state.
func Import(code string, canonical *GameState, now time.Time) (*GameState, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, fmt.Errorf("%w: empty code", ErrInvalidImport)
	}
	raw, err := base64.StdEncoding.DecodeString(code)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImport, err)
	}
	if err := ValidateSave(raw); err != nil {
		return nil, err
	}
	loaded, err := reconcile(raw, canonical, now, false)
	if err != nil {
		return nil, err
	}
	return loaded.State, nil
}
