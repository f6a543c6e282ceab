package mcp

import (
	"regexp"

	"github.com/datazoode/flapi/pkg/config"
	"github.com/datazoode/flapi/pkg/endpoints"
)

// toolFromEndpoint derives a tool definition: one property per request field
// (string-typed with the configured description), required fields listed.
func toolFromEndpoint(ep *config.EndpointConfig) Tool {
	schema := ToolSchema{
		Type:       "object",
		Properties: map[string]ToolProperty{},
	}
	for i := range ep.Request {
		f := &ep.Request[i]
		schema.Properties[f.FieldName] = ToolProperty{
			Type:        "string",
			Description: f.Description,
		}
		if f.Required {
			schema.Required = append(schema.Required, f.FieldName)
		}
	}
	return Tool{
		Name:        ep.MCPTool.Name,
		Description: ep.MCPTool.Description,
		InputSchema: schema,
	}
}

// listTools derives tool definitions from every endpoint with an mcp-tool
// block.
func listTools(repo *endpoints.Repository) []Tool {
	eps := repo.Find(func(ep *config.EndpointConfig) bool { return ep.MCPTool != nil })
	tools := make([]Tool, 0, len(eps))
	for _, ep := range eps {
		tools = append(tools, toolFromEndpoint(ep))
	}
	return tools
}

// listResources derives resource definitions under the flapi:// scheme.
func listResources(repo *endpoints.Repository) []Resource {
	eps := repo.Find(func(ep *config.EndpointConfig) bool { return ep.MCPResource != nil })
	resources := make([]Resource, 0, len(eps))
	for _, ep := range eps {
		mimeType := ep.MCPResource.MimeType
		if mimeType == "" {
			mimeType = "application/json"
		}
		resources = append(resources, Resource{
			URI:         ResourceScheme + ep.MCPResource.Name,
			Name:        ep.MCPResource.Name,
			Description: ep.MCPResource.Description,
			MimeType:    mimeType,
		})
	}
	return resources
}

// listResourceTemplates derives templates for resources whose endpoints take
// parameters.
func listResourceTemplates(repo *endpoints.Repository) []ResourceTemplate {
	eps := repo.Find(func(ep *config.EndpointConfig) bool {
		return ep.MCPResource != nil && len(ep.Request) > 0
	})
	templates := make([]ResourceTemplate, 0, len(eps))
	for _, ep := range eps {
		uri := ResourceScheme + ep.MCPResource.Name
		for i := range ep.Request {
			uri += "{?" + ep.Request[i].FieldName + "}"
		}
		templates = append(templates, ResourceTemplate{
			URITemplate: uri,
			Name:        ep.MCPResource.Name,
			Description: ep.MCPResource.Description,
			MimeType:    ep.MCPResource.MimeType,
		})
	}
	return templates
}

var promptArgRe = regexp.MustCompile(`\{\{\s*([A-Za-z_][A-Za-z0-9_]*)\s*\}\}`)

// promptFromEndpoint derives a prompt definition; arguments come from the
// {{arg}} placeholders in the template.
func promptFromEndpoint(ep *config.EndpointConfig) Prompt {
	p := Prompt{
		Name:        ep.MCPPrompt.Name,
		Description: ep.MCPPrompt.Description,
	}
	seen := map[string]bool{}
	for _, m := range promptArgRe.FindAllStringSubmatch(ep.MCPPrompt.Template, -1) {
		name := m[1]
		if seen[name] {
			continue
		}
		seen[name] = true
		arg := PromptArgument{Name: name, Required: true}
		if f, ok := ep.FieldByName(name); ok {
			arg.Description = f.Description
			arg.Required = f.Required
		}
		p.Arguments = append(p.Arguments, arg)
	}
	return p
}

// listPrompts derives prompt definitions from every endpoint with an
// mcp-prompt block.
func listPrompts(repo *endpoints.Repository) []Prompt {
	eps := repo.Find(func(ep *config.EndpointConfig) bool { return ep.MCPPrompt != nil })
	prompts := make([]Prompt, 0, len(eps))
	for _, ep := range eps {
		prompts = append(prompts, promptFromEndpoint(ep))
	}
	return prompts
}
