package types

// CreateSessionRequest creates a new terminal session
type CreateSessionRequest struct {
	Name           *string `json:"name,omitempty"`
	Cols           *int    `json:"cols,omitempty"`
	Rows           *int    `json:"rows,omitempty"`
	InitialCommand *string `json:"initial_command,omitempty"`
}

// WriteRequest sends input to a terminal session
type WriteRequest struct {
	Data string `json:"data" binding:"required"`
}

// ResizeRequest changes terminal dimensions
type ResizeRequest struct {
	Cols int `json:"cols" binding:"required"`
	Rows int `json:"rows" binding:"required"`
}

// RenameRequest updates a session's display name
type RenameRequest struct {
	Name string `json:"name" binding:"required"`
}

// ExecuteRequest represents a service execution request
type ExecuteRequest struct {
	ToolID string                 `json:"tool_id" binding:"required"`
	Params map[string]interface{} `json:"params"`
}

// WSMessage represents a WebSocket message from the UI
type WSMessage struct {
	Type string `json:"type"`
}
