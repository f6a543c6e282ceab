package mcp

import "encoding/json"

// ClientCapabilities records what the client announced during initialize.
type ClientCapabilities struct {
	Sampling    bool
	Roots       bool
	Elicitation bool
	// Raw keeps the original capability map for forward compatibility.
	Raw map[string]any
}

// initializeParams is the expected shape of initialize params.
type initializeParams struct {
	ProtocolVersion string         `json:"protocolVersion"`
	ClientInfo      clientInfo     `json:"clientInfo"`
	Capabilities    map[string]any `json:"capabilities"`
}

type clientInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// parseClientCapabilities decodes the capability map from initialize params.
func parseClientCapabilities(raw json.RawMessage) (initializeParams, ClientCapabilities) {
	var params initializeParams
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &params)
	}
	caps := ClientCapabilities{Raw: params.Capabilities}
	if params.Capabilities != nil {
		_, caps.Sampling = params.Capabilities["sampling"]
		_, caps.Roots = params.Capabilities["roots"]
		_, caps.Elicitation = params.Capabilities["elicitation"]
	}
	return params, caps
}
