package main

import (
	"encoding/json"
	"io"
)

// outputJSON writes v as pretty-printed JSON.
func outputJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
