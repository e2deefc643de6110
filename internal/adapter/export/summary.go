package export

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/couchcryptid/hydro-lag-etl/internal/domain"
)

// WriteSummary writes the report, without its dataset rows, as indented JSON.
func WriteSummary(w io.Writer, rep domain.Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(rep); err != nil {
		return fmt.Errorf("encode summary: %w", err)
	}
	return nil
}
