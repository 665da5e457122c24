package terminal

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/agentkube/desktop/backend/internal/shared/types"
)

// Provider exposes terminal session operations through the service registry
type Provider struct {
	manager *Manager
}

// NewProvider creates a new terminal provider
func NewProvider(manager *Manager) *Provider {
	return &Provider{manager: manager}
}

// Definition returns service metadata
func (p *Provider) Definition() types.Service {
	return types.Service{
		ID:          "terminal",
		Name:        "Terminal Service",
		Description: "Interactive shell sessions with PTY support",
		Category:    types.CategorySystem,
		Capabilities: []string{
			"pty",
			"shell",
			"interactive",
			"sessions",
			"resize",
			"rename",
		},
		Tools: p.getTools(),
	}
}

// Execute routes to the appropriate operation
func (p *Provider) Execute(ctx context.Context, toolID string, params map[string]interface{}, appCtx *types.Context) (*types.Result, error) {
	switch toolID {
	case "terminal.create_session":
		return p.createSession(params)
	case "terminal.write":
		return p.write(params)
	case "terminal.read":
		return p.read(params)
	case "terminal.resize":
		return p.resize(params)
	case "terminal.rename":
		return p.rename(params)
	case "terminal.close":
		return p.close(params)
	case "terminal.close_all":
		return p.closeAll()
	case "terminal.list_sessions":
		return p.listSessions()
	case "terminal.get_session":
		return p.getSession(params)
	default:
		return nil, fmt.Errorf("unknown tool: %s", toolID)
	}
}

func (p *Provider) getTools() []types.Tool {
	sessionID := types.Parameter{
		Name:        "session_id",
		Type:        "string",
		Description: "Terminal session ID",
		Required:    true,
	}

	return []types.Tool{
		{
			ID:          "terminal.create_session",
			Name:        "Create Terminal Session",
			Description: "Create a new interactive shell session with PTY",
			Parameters: []types.Parameter{
				{Name: "name", Type: "string", Description: "Display name. Defaults to a generated name", Required: false},
				{Name: "cols", Type: "number", Description: "Terminal width in columns. Defaults to 80", Required: false},
				{Name: "rows", Type: "number", Description: "Terminal height in rows. Defaults to 24", Required: false},
				{Name: "initial_command", Type: "string", Description: "Command written to the shell once it has initialized", Required: false},
			},
			Returns: "session_info",
		},
		{
			ID:          "terminal.write",
			Name:        "Write to Terminal",
			Description: "Send input to a terminal session",
			Parameters: []types.Parameter{
				sessionID,
				{Name: "data", Type: "string", Description: "Input to send to the terminal", Required: true},
			},
			Returns: "success",
		},
		{
			ID:          "terminal.read",
			Name:        "Read from Terminal",
			Description: "Drain buffered output from a terminal session without blocking",
			Parameters:  []types.Parameter{sessionID},
			Returns:     "output_data",
		},
		{
			ID:          "terminal.resize",
			Name:        "Resize Terminal",
			Description: "Change terminal dimensions",
			Parameters: []types.Parameter{
				sessionID,
				{Name: "cols", Type: "number", Description: "New width in columns", Required: true},
				{Name: "rows", Type: "number", Description: "New height in rows", Required: true},
			},
			Returns: "success",
		},
		{
			ID:          "terminal.rename",
			Name:        "Rename Session",
			Description: "Update a session's display name",
			Parameters: []types.Parameter{
				sessionID,
				{Name: "name", Type: "string", Description: "New display name", Required: true},
			},
			Returns: "success",
		},
		{
			ID:          "terminal.close",
			Name:        "Close Session",
			Description: "Remove a session; the shell process is signalled by stream closure",
			Parameters:  []types.Parameter{sessionID},
			Returns:     "success",
		},
		{
			ID:          "terminal.close_all",
			Name:        "Close All Sessions",
			Description: "Remove every session",
			Parameters:  []types.Parameter{},
			Returns:     "count",
		},
		{
			ID:          "terminal.list_sessions",
			Name:        "List Terminal Sessions",
			Description: "List all registered terminal sessions",
			Parameters:  []types.Parameter{},
			Returns:     "sessions_list",
		},
		{
			ID:          "terminal.get_session",
			Name:        "Get Session Info",
			Description: "Get metadata for a terminal session",
			Parameters:  []types.Parameter{sessionID},
			Returns:     "session_info",
		},
	}
}

func (p *Provider) createSession(params map[string]interface{}) (*types.Result, error) {
	opts := CreateOptions{}
	if name, ok := params["name"].(string); ok {
		opts.Name = name
	}
	if c, ok := params["cols"].(float64); ok {
		opts.Cols = int(c)
	}
	if r, ok := params["rows"].(float64); ok {
		opts.Rows = int(r)
	}
	if cmd, ok := params["initial_command"].(string); ok {
		opts.InitialCommand = cmd
	}

	info, err := p.manager.Create(opts)
	if err != nil {
		return nil, err
	}

	return success(sessionData(info)), nil
}

func (p *Provider) write(params map[string]interface{}) (*types.Result, error) {
	sessionID, ok := params["session_id"].(string)
	if !ok {
		return nil, fmt.Errorf("session_id is required")
	}
	data, ok := params["data"].(string)
	if !ok {
		return nil, fmt.Errorf("data is required")
	}

	if err := p.manager.Write(sessionID, []byte(data)); err != nil {
		return nil, err
	}
	return success(map[string]interface{}{"success": true}), nil
}

func (p *Provider) read(params map[string]interface{}) (*types.Result, error) {
	sessionID, ok := params["session_id"].(string)
	if !ok {
		return nil, fmt.Errorf("session_id is required")
	}

	output, err := p.manager.Read(sessionID)
	if err != nil {
		return nil, err
	}

	return success(map[string]interface{}{
		"output":        LossyText(output),
		"output_base64": base64.StdEncoding.EncodeToString(output),
		"length":        len(output),
	}), nil
}

func (p *Provider) resize(params map[string]interface{}) (*types.Result, error) {
	sessionID, ok := params["session_id"].(string)
	if !ok {
		return nil, fmt.Errorf("session_id is required")
	}
	cols, ok := params["cols"].(float64)
	if !ok {
		return nil, fmt.Errorf("cols is required")
	}
	rows, ok := params["rows"].(float64)
	if !ok {
		return nil, fmt.Errorf("rows is required")
	}

	if err := p.manager.Resize(sessionID, int(cols), int(rows)); err != nil {
		return nil, err
	}
	return success(map[string]interface{}{"success": true}), nil
}

func (p *Provider) rename(params map[string]interface{}) (*types.Result, error) {
	sessionID, ok := params["session_id"].(string)
	if !ok {
		return nil, fmt.Errorf("session_id is required")
	}
	name, ok := params["name"].(string)
	if !ok {
		return nil, fmt.Errorf("name is required")
	}

	if err := p.manager.Rename(sessionID, name); err != nil {
		return nil, err
	}
	return success(map[string]interface{}{"success": true}), nil
}

func (p *Provider) close(params map[string]interface{}) (*types.Result, error) {
	sessionID, ok := params["session_id"].(string)
	if !ok {
		return nil, fmt.Errorf("session_id is required")
	}

	if err := p.manager.Close(sessionID); err != nil {
		return nil, err
	}
	return success(map[string]interface{}{"success": true}), nil
}

func (p *Provider) closeAll() (*types.Result, error) {
	count := p.manager.CloseAll()
	return success(map[string]interface{}{"count": count}), nil
}

func (p *Provider) listSessions() (*types.Result, error) {
	sessions := p.manager.List()

	list := make([]interface{}, 0, len(sessions))
	for _, info := range sessions {
		list = append(list, sessionData(info))
	}

	return success(map[string]interface{}{
		"sessions": list,
		"count":    len(sessions),
	}), nil
}

func (p *Provider) getSession(params map[string]interface{}) (*types.Result, error) {
	sessionID, ok := params["session_id"].(string)
	if !ok {
		return nil, fmt.Errorf("session_id is required")
	}

	info, err := p.manager.Get(sessionID)
	if err != nil {
		return nil, err
	}
	return success(sessionData(info)), nil
}

func sessionData(info SessionInfo) map[string]interface{} {
	return map[string]interface{}{
		"id":         info.ID,
		"name":       info.Name,
		"kind":       info.Kind,
		"created_at": info.CreatedAt,
		"cols":       info.Cols,
		"rows":       info.Rows,
		"active":     info.Active,
	}
}

func success(data map[string]interface{}) *types.Result {
	return &types.Result{Success: true, Data: data}
}
