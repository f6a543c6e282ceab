package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/datazoode/flapi/pkg/auth"
	"github.com/datazoode/flapi/pkg/config"
	"github.com/datazoode/flapi/pkg/logger"
	"github.com/datazoode/flapi/pkg/validation"
)

// handleInitialize negotiates the session. The server always answers with
// its own protocol version; the client's requested version is recorded on
// the session.
func (d *Dispatcher) handleInitialize(r *http.Request, req *Request) (*Response, string) {
	params, caps := parseClientCapabilities(req.Params)

	var ac *auth.AuthContext
	if d.auth != nil && d.authCfg != nil && d.authCfg.Enabled {
		ac = d.auth.Authenticate(r, d.authCfg)
	}

	session := d.sessions.CreateSession(params.ClientInfo.Name, params.ClientInfo.Version,
		params.ProtocolVersion, caps, ac)

	result := map[string]any{
		"protocolVersion": ProtocolVersion,
		"serverInfo":      ServerInfo{Name: ServerName, Version: ServerVersion},
		"capabilities": Capabilities{
			Tools:     &ToolsCapability{},
			Resources: &ResourcesCapability{},
			Prompts:   &PromptsCapability{},
			Logging:   &struct{}{},
		},
	}
	return resultResponse(req.ID, result), session.ID
}

type toolCallParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// handleToolsCall executes the named endpoint with the call arguments as
// request parameters and wraps the rows in a single text content block.
func (d *Dispatcher) handleToolsCall(ctx context.Context, req *Request) *Response {
	var params toolCallParams
	if err := json.Unmarshal(orEmptyObject(req.Params), &params); err != nil {
		return invalidParams(req.ID, err.Error())
	}

	ep, ok := d.repo().GetByMCP(params.Name)
	if !ok || ep.MCPTool == nil {
		return errorResponse(req.ID, CodeInvalidParams, "Invalid params",
			fmt.Sprintf("unknown tool %q", params.Name))
	}

	args := stringifyArguments(params.Arguments)
	if errs := validation.ValidateRequestParameters(ep.Request, args); len(errs) > 0 {
		return errorResponse(req.ID, CodeInvalidParams, "Invalid params", errs)
	}

	rows, err := d.executeEndpoint(ctx, ep, args)
	if err != nil {
		return errorResponse(req.ID, CodeInternalError, "Internal error", err.Error())
	}

	payload, err := marshalUnescaped(map[string]any{"data": rows})
	if err != nil {
		return errorResponse(req.ID, CodeInternalError, "Internal error", err.Error())
	}
	return resultResponse(req.ID, map[string]any{
		"content": []ContentBlock{TextContent(string(payload))},
	})
}

type resourceReadParams struct {
	URI string `json:"uri"`
}

// handleResourcesRead serves flapi://<name> by running the endpoint's
// read-only query.
func (d *Dispatcher) handleResourcesRead(ctx context.Context, req *Request) *Response {
	var params resourceReadParams
	if err := json.Unmarshal(orEmptyObject(req.Params), &params); err != nil {
		return invalidParams(req.ID, err.Error())
	}

	name := strings.TrimPrefix(params.URI, ResourceScheme)
	if name == params.URI {
		return errorResponse(req.ID, CodeInvalidParams, "Invalid params",
			fmt.Sprintf("resource URIs use the %s scheme", ResourceScheme))
	}

	ep, ok := d.repo().GetByMCP(name)
	if !ok || ep.MCPResource == nil {
		return errorResponse(req.ID, CodeInvalidParams, "Invalid params",
			fmt.Sprintf("unknown resource %q", name))
	}

	rows, err := d.executeEndpoint(ctx, ep, map[string]string{})
	if err != nil {
		return errorResponse(req.ID, CodeInternalError, "Internal error", err.Error())
	}

	mimeType := ep.MCPResource.MimeType
	if mimeType == "" {
		mimeType = "application/json"
	}
	payload, err := marshalUnescaped(map[string]any{"data": rows})
	if err != nil {
		return errorResponse(req.ID, CodeInternalError, "Internal error", err.Error())
	}
	return resultResponse(req.ID, map[string]any{
		"contents": []ResourceContents{{
			URI:      params.URI,
			MimeType: mimeType,
			Text:     string(payload),
		}},
	})
}

type promptGetParams struct {
	Name      string            `json:"name"`
	Arguments map[string]string `json:"arguments"`
}

// handlePromptsGet substitutes {{arg}} occurrences in the prompt template
// and returns a single user message.
func (d *Dispatcher) handlePromptsGet(req *Request) *Response {
	var params promptGetParams
	if err := json.Unmarshal(orEmptyObject(req.Params), &params); err != nil {
		return invalidParams(req.ID, err.Error())
	}

	ep, ok := d.repo().GetByMCP(params.Name)
	if !ok || ep.MCPPrompt == nil {
		return errorResponse(req.ID, CodeInvalidParams, "Invalid params",
			fmt.Sprintf("unknown prompt %q", params.Name))
	}

	text := promptArgRe.ReplaceAllStringFunc(ep.MCPPrompt.Template, func(match string) string {
		name := promptArgRe.FindStringSubmatch(match)[1]
		if v, ok := params.Arguments[name]; ok {
			return v
		}
		return match
	})

	return resultResponse(req.ID, map[string]any{
		"description": ep.MCPPrompt.Description,
		"messages": []PromptMessage{{
			Role:    "user",
			Content: TextContent(text),
		}},
	})
}

func (d *Dispatcher) handlePing(req *Request) *Response {
	return resultResponse(req.ID, map[string]any{
		"message":   "pong",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"server":    ServerName,
		"version":   ServerVersion,
	})
}

type setLevelParams struct {
	Level string `json:"level"`
}

func (d *Dispatcher) handleSetLevel(req *Request) *Response {
	var params setLevelParams
	if err := json.Unmarshal(orEmptyObject(req.Params), &params); err != nil {
		return invalidParams(req.ID, err.Error())
	}
	logger.Infof("mcp client requested log level %s", params.Level)
	return resultResponse(req.ID, map[string]any{})
}

// executeEndpoint renders the endpoint's template with the string arguments
// and runs it.
func (d *Dispatcher) executeEndpoint(ctx context.Context, ep *config.EndpointConfig, args map[string]string) ([]map[string]any, error) {
	source, err := d.readTemplate(ctx, ep)
	if err != nil {
		return nil, fmt.Errorf("failed to load template: %w", err)
	}

	renderParams := make(map[string]any, len(args))
	for k, v := range args {
		renderParams[k] = v
	}
	applyDefaults(ep, renderParams)

	sql, err := d.renderer.Render(source, renderParams)
	if err != nil {
		return nil, err
	}

	// Values are substituted into the SQL at render time; the injection
	// validator guards this path. No bind parameters remain.
	return d.executor.Execute(ctx, sql, nil)
}

// applyDefaults fills configured field defaults for absent arguments.
func applyDefaults(ep *config.EndpointConfig, params map[string]any) {
	for i := range ep.Request {
		f := &ep.Request[i]
		if _, ok := params[f.FieldName]; !ok && f.Default != "" {
			params[f.FieldName] = f.Default
		}
	}
}

// stringifyArguments coerces tool arguments to the string map the validator
// and renderer work with.
func stringifyArguments(args map[string]any) map[string]string {
	out := make(map[string]string, len(args))
	for k, v := range args {
		switch s := v.(type) {
		case string:
			out[k] = s
		case nil:
			out[k] = ""
		default:
			out[k] = fmt.Sprintf("%v", v)
		}
	}
	return out
}
