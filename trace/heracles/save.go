package heracles

import (
	"encoding"
	"encoding/json"
	"fmt"
	"os"
)

// SaveBinary writes the HERACLES binary documents of b next to base:
// the trace to base.bin, the context to base_context.bin, the test vector
// to base_testvector.bin and the combined data trace to base_data.bin.
func (b *Backend) SaveBinary(base string) (err error) {

	dt, err := b.DataTrace()
	if err != nil {
		return
	}

	for suffix, doc := range map[string]encoding.BinaryMarshaler{
		".bin":            b.Trace(),
		"_context.bin":    dt.Context,
		"_testvector.bin": dt.TestVector,
		"_data.bin":       dt,
	} {
		if err = save(base+suffix, doc.MarshalBinary); err != nil {
			return
		}
	}

	return
}

// SaveJSON writes the HERACLES JSON documents of b next to base:
// the trace to base.json, the context to base_context.json and the test
// vector to base_testvector.json.
func (b *Backend) SaveJSON(base string) (err error) {

	tv, err := b.TestVector()
	if err != nil {
		return
	}

	for suffix, doc := range map[string]json.Marshaler{
		".json":            b.Trace(),
		"_context.json":    b.Context(),
		"_testvector.json": tv,
	} {
		if err = save(base+suffix, doc.MarshalJSON); err != nil {
			return
		}
	}

	return
}

func save(path string, marshal func() ([]byte, error)) (err error) {

	var p []byte
	if p, err = marshal(); err != nil {
		return fmt.Errorf("heracles: %s: %w", path, err)
	}

	if err = os.WriteFile(path, p, 0o644); err != nil {
		return fmt.Errorf("heracles: %w", err)
	}

	return
}
