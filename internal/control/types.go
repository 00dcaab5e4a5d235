package control

import "encoding/json"

// Status is the control channel's connection lifecycle.
type Status string

const (
	StatusConnected    Status = "connected"
	StatusDisconnected Status = "disconnected"
	StatusReconnecting Status = "reconnecting"
)

// ConnState is the value exposed through Client.State — a Watch[ConnState].
type ConnState struct {
	Status  Status
	Attempt int
}

// IncomingKind discriminates the frames the backend pushes over the
// control channel.
type IncomingKind string

const (
	IncomingPermissionRequest IncomingKind = "permission_request"
	IncomingCommandResponse   IncomingKind = "command_response"
)

// Incoming is a decoded control-channel frame, ready for the projector.
type Incoming struct {
	Kind             IncomingKind
	PermissionRequest *PermissionRequestFrame
	CommandResponse   *CommandResponseFrame
}

// PermissionRequestFrame mirrors the wire shape
// {type, request_id, thread_id?, tool_name, tool_input, description, timestamp}.
type PermissionRequestFrame struct {
	RequestID   string          `json:"request_id"`
	ThreadID    string          `json:"thread_id"`
	ToolName    string          `json:"tool_name"`
	ToolInput   json.RawMessage `json:"tool_input"`
	Description string          `json:"description"`
	Timestamp   string          `json:"timestamp"`
}

// CommandResponseFrame correlates a previously sent outgoing command to its
// backend result via RequestID.
type CommandResponseFrame struct {
	RequestID string              `json:"request_id"`
	Result    CommandResponseBody `json:"result"`
}

// CommandResponseBody is the {status, data} shape carried by command responses.
type CommandResponseBody struct {
	Status string          `json:"status"`
	Data   json.RawMessage `json:"data"`
}

// PermissionReplyData is the {allowed, message?} payload a command response
// for a permission reply decodes to.
type PermissionReplyData struct {
	Allowed bool   `json:"allowed"`
	Message string `json:"message,omitempty"`
}

// OutgoingKind discriminates frames spoq sends to the backend.
type OutgoingKind string

const (
	OutgoingPermissionReply OutgoingKind = "permission_reply"
	OutgoingCancel          OutgoingKind = "cancel"
	OutgoingSteer           OutgoingKind = "steer"
	OutgoingModeChange      OutgoingKind = "mode_change"
)

// Outgoing is a frame to be marshaled and written to the socket.
type Outgoing struct {
	Type      OutgoingKind `json:"type"`
	RequestID string       `json:"request_id"`

	ThreadID string `json:"thread_id,omitempty"`

	// Permission reply fields.
	PermissionID string `json:"permission_id,omitempty"`
	Allowed      bool   `json:"allowed,omitempty"`

	// Steering fields.
	Instruction string `json:"instruction,omitempty"`

	// Mode-change fields.
	Mode string `json:"mode,omitempty"`
}

// wireFrame is the minimal shape needed to discriminate an inbound frame
// before decoding its kind-specific fields.
type wireFrame struct {
	Type string `json:"type"`
}

// decodeIncoming parses one control-channel text frame into an Incoming
// value. Unknown frame types are ignored (returns nil, nil) rather than
// treated as a parse error: the control channel is additive and spoq only
// needs to react to the kinds it understands.
func decodeIncoming(raw []byte) (*Incoming, error) {
	var head wireFrame
	if err := json.Unmarshal(raw, &head); err != nil {
		return nil, err
	}
	switch IncomingKind(head.Type) {
	case IncomingPermissionRequest:
		var frame PermissionRequestFrame
		if err := json.Unmarshal(raw, &frame); err != nil {
			return nil, err
		}
		return &Incoming{Kind: IncomingPermissionRequest, PermissionRequest: &frame}, nil
	case IncomingCommandResponse:
		var frame CommandResponseFrame
		if err := json.Unmarshal(raw, &frame); err != nil {
			return nil, err
		}
		return &Incoming{Kind: IncomingCommandResponse, CommandResponse: &frame}, nil
	default:
		return nil, nil
	}
}
