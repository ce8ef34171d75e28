package mcp

import (
	"context"
	"encoding/json"

	"github.com/google/jsonschema-go/jsonschema"
	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog/log"
)

func stringProp(description string) *jsonschema.Schema {
	return &jsonschema.Schema{Type: "string", Description: description}
}

func stringList(description string) *jsonschema.Schema {
	return &jsonschema.Schema{Type: "array", Description: description, Items: &jsonschema.Schema{Type: "string"}}
}

func object(required []string, props map[string]*jsonschema.Schema) *jsonschema.Schema {
	return &jsonschema.Schema{Type: "object", Properties: props, Required: required}
}

func (s *Server) registerTools(server *sdk.Server) {
	sdk.AddTool(server, &sdk.Tool{
		Name: "build_demand_matrix",
		Description: "Build the skill x month demand matrix from the current task definitions. " +
			"Months come from 'periods', or 'from' plus 'months', or the configured forecast periods; " +
			"with none of these, the next 12 months are used.",
		InputSchema: object(nil, map[string]*jsonschema.Schema{
			"periods":    stringList("Explicit month keys (YYYY-MM)."),
			"from":       stringProp("First month (YYYY-MM) when generating a window."),
			"months":     {Type: "integer", Description: "Number of months to generate from 'from' (default 12)."},
			"client_ids": stringList("Restrict the task snapshot to these clients."),
		}),
	}, wrapHandler("build_demand_matrix", s.handleBuildMatrix))

	sdk.AddTool(server, &sdk.Tool{
		Name: "filter_demand_matrix",
		Description: "Narrow a built matrix by month window, skills, clients or preferred staff. " +
			"Filtering only removes demand; it never recomputes hours.",
		InputSchema: object(nil, map[string]*jsonschema.Schema{
			"matrix_id":          stringProp("Matrix to filter (defaults to the latest build)."),
			"from":               stringProp("First month kept (YYYY-MM)."),
			"to":                 stringProp("Last month kept (YYYY-MM)."),
			"skills":             stringList("Skill names or identifiers to keep."),
			"clients":            stringList("Client names or identifiers to keep."),
			"staff":              stringList("Preferred staff names or identifiers to keep."),
			"include_unassigned": {Type: "boolean", Description: "With 'staff', also keep tasks without preferred staff."},
			"unassigned_only":    {Type: "boolean", Description: "Keep only tasks without preferred staff (ignored when 'staff' is set)."},
		}),
	}, wrapHandler("filter_demand_matrix", s.handleFilterMatrix))

	sdk.AddTool(server, &sdk.Tool{
		Name:        "drill_down_cell",
		Description: "Break one (skill, month) cell down by client, task, recurrence pattern and preferred staff.",
		InputSchema: object([]string{"skill", "period"}, map[string]*jsonschema.Schema{
			"matrix_id": stringProp("Matrix to read (defaults to the latest build)."),
			"skill":     stringProp("Skill display name."),
			"period":    stringProp("Month key (YYYY-MM)."),
		}),
	}, wrapHandler("drill_down_cell", s.handleDrillDown))

	sdk.AddTool(server, &sdk.Tool{
		Name:        "monthly_demand_by_skill",
		Description: "Total required hours per skill for one month, for comparing against capacity.",
		InputSchema: object([]string{"period"}, map[string]*jsonschema.Schema{
			"period":     stringProp("Month key (YYYY-MM)."),
			"client_ids": stringList("Restrict the task snapshot to these clients."),
		}),
	}, wrapHandler("monthly_demand_by_skill", s.handleMonthlyDemand))

	sdk.AddTool(server, &sdk.Tool{
		Name:        "refresh_directory_names",
		Description: "Drop cached skill, staff and client names so the next build re-reads the directory.",
		InputSchema: object(nil, map[string]*jsonschema.Schema{}),
	}, wrapHandler("refresh_directory_names", s.handleRefreshNames))
}

// wrapHandler adapts a (ctx, args) -> (payload, error) handler to the SDK's tool handler,
// rendering the payload as indented JSON text.
func wrapHandler[In any](name string, h func(context.Context, In) (any, error)) sdk.ToolHandlerFor[In, any] {
	return func(ctx context.Context, _ *sdk.CallToolRequest, args In) (*sdk.CallToolResult, any, error) {
		log.Info().Str("tool", name).Msg("Tool called")

		data, err := h(ctx, args)
		if err != nil {
			log.Warn().Str("tool", name).Err(err).Msg("Tool failed")
			return &sdk.CallToolResult{
				IsError: true,
				Content: []sdk.Content{&sdk.TextContent{Text: err.Error()}},
			}, nil, nil
		}

		return &sdk.CallToolResult{
			Content: []sdk.Content{&sdk.TextContent{Text: formatResult(data)}},
		}, nil, nil
	}
}

func formatResult(data any) string {
	out, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return err.Error()
	}
	return string(out)
}
