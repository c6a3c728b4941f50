package mcpserver

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"pmat/internal/actions"
	"pmat/internal/output"
)

// args reads loosely typed tool arguments. JSON numbers arrive as float64.
type args map[string]any

func argsOf(req mcp.CallToolRequest) args {
	a := req.GetArguments()
	if a == nil {
		return args{}
	}
	return args(a)
}

func (a args) str(key, def string) string {
	if s, ok := a[key].(string); ok && s != "" {
		return s
	}
	return def
}

func (a args) integer(key string, def int) int {
	switch v := a[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return int(n)
		}
	}
	return def
}

func (a args) number(key string, def float64) float64 {
	switch v := a[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case json.Number:
		if f, err := v.Float64(); err == nil {
			return f
		}
	}
	return def
}

func (a args) boolean(key string, def bool) bool {
	if b, ok := a[key].(bool); ok {
		return b
	}
	return def
}

// strings accepts an array of strings or a single string.
func (a args) strings(key string) []string {
	switch v := a[key].(type) {
	case string:
		if v != "" {
			return []string{v}
		}
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func (a args) object(key string) (map[string]any, error) {
	v, ok := a[key]
	if !ok || v == nil {
		return nil, fmt.Errorf("missing required field: %s", key)
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("field %s must be an object", key)
	}
	return m, nil
}

// render writes v in the requested format, falling back to def.
func render(a args, def output.Format, v any) *mcp.CallToolResult {
	f := def
	if raw := a.str("format", ""); raw != "" {
		parsed, err := output.ParseFormat(raw)
		if err != nil {
			return mcp.NewToolResultError(err.Error())
		}
		f = parsed
	}
	var buf bytes.Buffer
	if err := actions.Write(output.Plain(&buf), f, v); err != nil {
		return mcp.NewToolResultError(err.Error())
	}
	return mcp.NewToolResultText(buf.String())
}

func jsonResult(v any) *mcp.CallToolResult {
	var buf bytes.Buffer
	if err := output.Plain(&buf).JSON(v); err != nil {
		return mcp.NewToolResultError(err.Error())
	}
	return mcp.NewToolResultText(buf.String())
}
