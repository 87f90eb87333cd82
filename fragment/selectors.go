package fragment

import (
	"strings"

	"trpc.group/trpc-go/grape-engine/grapeerr"
)

// parseAddColumnSelectors resolves the selectors string AddColumn
// receives into the subset of available column names to materialize:
// "*" or an empty string selects every available column; otherwise a
// comma-separated list names them explicitly. An unknown name is
// InvalidValue — the dispatcher never silently drops a requested
// column.
func parseAddColumnSelectors(selectors string, available []string) ([]string, error) {
	trimmed := strings.TrimSpace(selectors)
	if trimmed == "" || trimmed == "*" {
		return available, nil
	}
	known := make(map[string]bool, len(available))
	for _, name := range available {
		known[name] = true
	}
	var out []string
	for _, part := range strings.Split(trimmed, ",") {
		name := strings.TrimSpace(part)
		if name == "" {
			continue
		}
		if !known[name] {
			return nil, grapeerr.New(grapeerr.InvalidValue, "add_column: unknown selector column %q", name)
		}
		out = append(out, name)
	}
	if len(out) == 0 {
		return nil, grapeerr.New(grapeerr.InvalidValue, "add_column: selectors %q named no columns", selectors)
	}
	return out, nil
}
