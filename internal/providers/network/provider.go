package network

import (
	"context"
	"fmt"

	"github.com/agentkube/desktop/backend/internal/shared/types"
)

// Provider exposes connectivity operations through the service registry
type Provider struct {
	monitor *Monitor
}

// NewProvider creates a new network provider
func NewProvider(monitor *Monitor) *Provider {
	return &Provider{monitor: monitor}
}

// Definition returns service metadata
func (p *Provider) Definition() types.Service {
	return types.Service{
		ID:           "network",
		Name:         "Network Service",
		Description:  "Connectivity probing with online/offline transition events",
		Category:     types.CategoryNetwork,
		Capabilities: []string{"connectivity", "events"},
		Tools: []types.Tool{
			{
				ID:          "network.status",
				Name:        "Network Status",
				Description: "Get the last observed connectivity state",
				Parameters:  []types.Parameter{},
				Returns:     "status",
			},
			{
				ID:          "network.start_monitoring",
				Name:        "Start Network Monitoring",
				Description: "Start the background reachability poller (idempotent)",
				Parameters:  []types.Parameter{},
				Returns:     "success",
			},
		},
	}
}

// Execute routes to the appropriate operation
func (p *Provider) Execute(ctx context.Context, toolID string, params map[string]interface{}, appCtx *types.Context) (*types.Result, error) {
	switch toolID {
	case "network.status":
		return &types.Result{
			Success: true,
			Data:    map[string]interface{}{"online": p.monitor.Status().Online},
		}, nil
	case "network.start_monitoring":
		// detach from the request context; the poller outlives the call
		p.monitor.Start(context.Background())
		return &types.Result{
			Success: true,
			Data:    map[string]interface{}{"success": true},
		}, nil
	default:
		return nil, fmt.Errorf("unknown tool: %s", toolID)
	}
}
