package turnnode

import (
	"fmt"

	contractx "github.com/finsight-labs/finsight/agent/contract"
	gatex "github.com/finsight-labs/finsight/agent/gate"
)

// ScopeCapabilities narrows the catalog down to what this identity may see.
// The manifest computed here is the only capability list the reasoning
// engine is ever shown.
func ScopeCapabilities(in *GraphState, gate *gatex.Gate) (*GraphState, error) {
	if in == nil {
		return nil, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}
	in.Manifest = gate.Allowed(in.Identity)
	return in, nil
}
