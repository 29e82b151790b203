package client

import (
	"context"
	"fmt"
	"time"
)

// Status summarizes backend reachability and model availability
type Status struct {
	Running    bool            `json:"running"`
	ModelCount int             `json:"model_count"`
	Models     map[string]bool `json:"models,omitempty"` // requested model -> installed
	Message    string          `json:"message"`
}

// CheckStatus pings the backend and reports which of the wanted models are installed
func CheckStatus(ctx context.Context, vc VisionClient, wanted ...string) Status {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	installed, err := vc.Models(ctx)
	if err != nil {
		return Status{Message: fmt.Sprintf("service unavailable: %v", err)}
	}

	st := Status{
		Running:    true,
		ModelCount: len(installed),
		Models:     make(map[string]bool, len(wanted)),
	}
	have := make(map[string]bool, len(installed))
	for _, m := range installed {
		have[m] = true
	}

	missing := 0
	for _, w := range wanted {
		if w == "" {
			continue
		}
		st.Models[w] = have[w]
		if !have[w] {
			missing++
		}
	}
	if missing > 0 {
		st.Message = fmt.Sprintf("service running with %d models, %d requested models missing", len(installed), missing)
	} else {
		st.Message = fmt.Sprintf("service running with %d models", len(installed))
	}
	return st
}
