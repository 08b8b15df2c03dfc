// Package transport implements the tool-call RPC protocol of spec.md §6:
// request/response JSON over either line-delimited stdio or streamable
// HTTP, with three logical endpoints (human, agent, analytics) each
// advertising a distinct subset of tools. Grounded on the teacher's
// pkg/integration/registry.go ToolProvider/ToolInfo shape (name,
// description, parameters, an Execute closure) and pkg/api/server.go's
// stdlib net/http.ServeMux + middleware chain.
package transport

import (
	"context"
	"encoding/json"

	"github.com/marcus-ai/marcus/pkg/apperr"
	"github.com/marcus-ai/marcus/pkg/app"
	"github.com/marcus-ai/marcus/pkg/logger"
)

// Endpoint names the three logical surfaces spec.md §6 describes.
type Endpoint string

const (
	EndpointAgent     Endpoint = "agent"
	EndpointHuman     Endpoint = "human"
	EndpointAnalytics Endpoint = "analytics"
)

// ToolFunc executes one tool call. It returns the success-branch payload
// (merged with {"success": true} by the dispatcher) or an error, which the
// dispatcher maps to the {success:false, error, code} envelope.
type ToolFunc func(ctx context.Context, args map[string]interface{}) (map[string]interface{}, error)

// Tool is one callable tool, grounded on the teacher's ToolInfo shape.
type Tool struct {
	Name        string
	Description string
	Execute     ToolFunc
}

// Dispatcher routes a {tool, args} request to the matching Tool and builds
// the response envelope. Each Endpoint exposes a distinct tool subset.
type Dispatcher struct {
	tools     map[string]Tool
	endpoints map[Endpoint]map[string]bool
	log       *logger.Logger
}

// NewDispatcher builds the full tool set wired to the given container and
// assigns each tool to the endpoints that may call it, per spec.md §6's
// "agent endpoint hosts the core assignment surface" split plus the
// supplemented human/analytics convenience tools (SPEC_FULL.md §12).
func NewDispatcher(c *app.Container) *Dispatcher {
	d := &Dispatcher{
		tools:     make(map[string]Tool),
		endpoints: make(map[Endpoint]map[string]bool),
		log:       c.Log,
	}

	agentTools := buildAgentTools(c)
	sharedTools := buildSharedTools(c)
	adminTools := buildAdminTools(c)

	for _, t := range agentTools {
		d.register(t, EndpointAgent)
	}
	for _, t := range sharedTools {
		d.register(t, EndpointAgent, EndpointHuman, EndpointAnalytics)
	}
	for _, t := range adminTools {
		d.register(t, EndpointHuman)
	}

	return d
}

func (d *Dispatcher) register(t Tool, endpoints ...Endpoint) {
	d.tools[t.Name] = t
	for _, ep := range endpoints {
		if d.endpoints[ep] == nil {
			d.endpoints[ep] = make(map[string]bool)
		}
		d.endpoints[ep][t.Name] = true
	}
}

// Tools lists the tools advertised on an endpoint.
func (d *Dispatcher) Tools(ep Endpoint) []Tool {
	names := d.endpoints[ep]
	out := make([]Tool, 0, len(names))
	for name := range names {
		out = append(out, d.tools[name])
	}
	return out
}

// Dispatch executes a named tool on behalf of an endpoint, returning the
// full JSON-ready envelope.
func (d *Dispatcher) Dispatch(ctx context.Context, ep Endpoint, name string, args map[string]interface{}) map[string]interface{} {
	if !d.endpoints[ep][name] {
		return errorEnvelope(apperr.New("UNKNOWN_TOOL", "tool \""+name+"\" is not available on this endpoint"))
	}

	tool, ok := d.tools[name]
	if !ok {
		return errorEnvelope(apperr.New("UNKNOWN_TOOL", "unknown tool \""+name+"\""))
	}

	result, err := tool.Execute(ctx, args)
	if err != nil {
		d.log.WarnCF("transport", "tool call failed", logger.Fields{"tool": name, "error": err.Error()})
		return errorEnvelope(err)
	}

	if result == nil {
		result = make(map[string]interface{})
	}
	if _, ok := result["success"]; !ok {
		result["success"] = true
	}
	return result
}

func errorEnvelope(err error) map[string]interface{} {
	env := map[string]interface{}{
		"success": false,
		"error":   err.Error(),
	}
	if ae, ok := err.(*apperr.Error); ok {
		env["code"] = string(ae.Code)
		env["error"] = ae.Message
	}
	return env
}

// marshalEnvelope is a small helper shared by the stdio and HTTP
// transports for writing the final JSON line/body.
func marshalEnvelope(v map[string]interface{}) ([]byte, error) {
	return json.Marshal(v)
}
