package cli

import (
	"encoding/json"
	"fmt"
	"io"
)

func validateOutputFormat(output string) error {
	if output != "plain" && output != "json" {
		return fmt.Errorf("unsupported output format %q: use 'plain' or 'json'", output)
	}
	return nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
