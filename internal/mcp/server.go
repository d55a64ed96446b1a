// Package mcp exposes the engine as MCP tools over stdio.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/ldi/sgr/internal/db"
	"github.com/ldi/sgr/internal/engine"
	"github.com/ldi/sgr/pkg/models"
)

// NewServer creates the MCP server with every engine tool registered.
func NewServer(database *db.DB, logger *slog.Logger, opts engine.Options) *mcpserver.MCPServer {
	s := mcpserver.NewMCPServer("SGR", "0.1.0")

	generator := engine.NewGenerator(database, logger, opts)
	assigner := engine.NewAssigner(database, logger)
	reassigner := engine.NewReassigner(database, logger)
	risk := engine.NewRiskDetector(database, logger, opts)

	s.AddTool(mcp.NewTool("generate_tasks",
		mcp.WithDescription("Generate the fiscal period's tasks from the obligation catalog. Idempotent: existing tasks are skipped."),
		mcp.WithString("period", mcp.Description("Fiscal period (YYYY-MM)"), mcp.Required()),
		mcp.WithString("taxpayer_id", mcp.Description("Limit to one taxpayer (defaults to all active)")),
	), generateTasksHandler(generator))

	s.AddTool(mcp.NewTool("list_tasks",
		mcp.WithDescription("List tasks with optional filters."),
		mcp.WithString("period", mcp.Description("Filter by fiscal period (YYYY-MM)")),
		mcp.WithString("state", mcp.Description("Filter by state (pendiente|en_curso|pendiente_evidencia|en_validacion|bloqueado_cliente|presentado|pagado|cerrado|rechazado)")),
		mcp.WithString("assignee_id", mcp.Description("Filter by assignee")),
	), listTasksHandler(database))

	s.AddTool(mcp.NewTool("get_task_steps",
		mcp.WithDescription("Get a task's steps with assignee details, in order."),
		mcp.WithString("task_id", mcp.Description("Task ID"), mcp.Required()),
	), getTaskStepsHandler(assigner))

	s.AddTool(mcp.NewTool("instantiate_steps",
		mcp.WithDescription("Create a task's steps from a process template. Does nothing if the task already has steps."),
		mcp.WithString("task_id", mcp.Description("Task ID"), mcp.Required()),
		mcp.WithString("process_id", mcp.Description("Process ID"), mcp.Required()),
	), instantiateStepsHandler(assigner))

	s.AddTool(mcp.NewTool("assign_step",
		mcp.WithDescription("Assign a step to the team member holding the tier's role (titular first, then substitute)."),
		mcp.WithString("step_id", mcp.Description("Step ID"), mcp.Required()),
		mcp.WithString("team_id", mcp.Description("Team ID"), mcp.Required()),
		mcp.WithString("tier", mcp.Description("Tier (A|B|C)"), mcp.Required()),
	), assignStepHandler(assigner))

	s.AddTool(mcp.NewTool("reassign_collaborator",
		mcp.WithDescription("Move an absent collaborator's active tasks and steps to a substitute, or to their team lead when none is given."),
		mcp.WithString("absent_user_id", mcp.Description("Absent user ID"), mcp.Required()),
		mcp.WithString("substitute_id", mcp.Description("Substitute user ID (defaults to the team lead)")),
	), reassignHandler(reassigner))

	s.AddTool(mcp.NewTool("process_absences",
		mcp.WithDescription("Run the reassignment for every absence active on a date."),
		mcp.WithString("date", mcp.Description("Date (YYYY-MM-DD, defaults to today)")),
	), processAbsencesHandler(reassigner))

	s.AddTool(mcp.NewTool("detect_risk",
		mcp.WithDescription("Flag presented tasks still missing their payment receipt past the risk window, and clear resolved flags."),
	), detectRiskHandler(risk))

	s.AddTool(mcp.NewTool("period_summary",
		mcp.WithDescription("Summarize a period's tasks by state and team."),
		mcp.WithString("period", mcp.Description("Fiscal period (YYYY-MM, defaults to the current month)")),
	), periodSummaryHandler(generator))

	s.AddTool(mcp.NewTool("set_task_state",
		mcp.WithDescription("Move a task to a new state. Invalid transitions are rejected."),
		mcp.WithString("task_id", mcp.Description("Task ID"), mcp.Required()),
		mcp.WithString("state", mcp.Description("New state"), mcp.Required()),
		mcp.WithString("actor_id", mcp.Description("User performing the change (omit for system)")),
	), setTaskStateHandler(database))

	s.AddTool(mcp.NewTool("status",
		mcp.WithDescription("Current-period totals plus the at-risk task count."),
	), statusHandler(database, generator))

	s.AddTool(mcp.NewTool("configure_auto_generate",
		mcp.WithDescription("Read or update the scheduled-generation settings. Omitted fields keep their current value."),
		mcp.WithBoolean("enabled", mcp.Description("Whether the monthly trigger runs")),
		mcp.WithNumber("day_of_month", mcp.Description("Day of month the trigger fires (1-31)")),
	), configureAutoGenerateHandler(database))

	return s
}

// Serve starts the MCP server on stdio.
func Serve(s *mcpserver.MCPServer) error {
	return mcpserver.ServeStdio(s)
}

func generateTasksHandler(generator *engine.Generator) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		period := mcp.ParseString(request, "period", "")
		taxpayerID := mcp.ParseString(request, "taxpayer_id", "")

		result, err := generator.Generate(ctx, period, taxpayerID)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return jsonResult(result)
	}
}

func listTasksHandler(database *db.DB) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		filter := db.TaskFilter{
			Period:     mcp.ParseString(request, "period", ""),
			State:      models.TaskState(mcp.ParseString(request, "state", "")),
			AssigneeID: mcp.ParseString(request, "assignee_id", ""),
		}

		tasks, err := database.ListTasks(ctx, filter)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return jsonResult(map[string]any{"tasks": tasks})
	}
}

func getTaskStepsHandler(assigner *engine.Assigner) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		taskID := mcp.ParseString(request, "task_id", "")

		steps, err := assigner.ListTaskSteps(ctx, taskID)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return jsonResult(map[string]any{"steps": steps})
	}
}

func instantiateStepsHandler(assigner *engine.Assigner) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		taskID := mcp.ParseString(request, "task_id", "")
		processID := mcp.ParseString(request, "process_id", "")

		result, err := assigner.InstantiateSteps(ctx, taskID, processID)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return jsonResult(result)
	}
}

func assignStepHandler(assigner *engine.Assigner) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		stepID := mcp.ParseString(request, "step_id", "")
		teamID := mcp.ParseString(request, "team_id", "")
		tier := mcp.ParseString(request, "tier", "")

		result, err := assigner.AssignStepResponsible(ctx, stepID, teamID, models.Tier(tier))
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return jsonResult(result)
	}
}

func reassignHandler(reassigner *engine.Reassigner) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		absentUserID := mcp.ParseString(request, "absent_user_id", "")
		substituteID := mcp.ParseString(request, "substitute_id", "")

		result, err := reassigner.Reassign(ctx, absentUserID, substituteID)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return jsonResult(result)
	}
}

func processAbsencesHandler(reassigner *engine.Reassigner) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		date := mcp.ParseString(request, "date", time.Now().Format("2006-01-02"))

		result, err := reassigner.ProcessActiveAbsences(ctx, date)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return jsonResult(result)
	}
}

func detectRiskHandler(risk *engine.RiskDetector) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		result, err := risk.DetectRisk(ctx, time.Now())
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return jsonResult(result)
	}
}

func periodSummaryHandler(generator *engine.Generator) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		period := mcp.ParseString(request, "period", time.Now().Format("2006-01"))

		summary, err := generator.Summary(ctx, period)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return jsonResult(summary)
	}
}

func setTaskStateHandler(database *db.DB) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		taskID := mcp.ParseString(request, "task_id", "")
		state := mcp.ParseString(request, "state", "")
		actor := mcp.ParseString(request, "actor_id", "")

		var actorID *string
		if actor != "" {
			actorID = &actor
		}

		if err := database.UpdateTaskState(ctx, taskID, models.TaskState(state), actorID); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(fmt.Sprintf("Task %s moved to %s", taskID, state)), nil
	}
}

func statusHandler(database *db.DB, generator *engine.Generator) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		period := time.Now().Format("2006-01")

		summary, err := generator.Summary(ctx, period)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		atRisk, err := database.AtRiskTasks(ctx)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		return jsonResult(map[string]any{
			"period":  period,
			"summary": summary,
			"at_risk": len(atRisk),
		})
	}
}

func configureAutoGenerateHandler(database *db.DB) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		cfg, version, err := database.GetAutoGenerateConfig(ctx)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		enabled := mcp.ParseBoolean(request, "enabled", cfg.Enabled)
		day := mcp.ParseInt(request, "day_of_month", cfg.DayOfMonth)
		if day < 1 || day > 31 {
			return mcp.NewToolResultError("day_of_month must be 1-31"), nil
		}

		if enabled != cfg.Enabled || day != cfg.DayOfMonth {
			cfg.Enabled = enabled
			cfg.DayOfMonth = day
			if err := database.SaveAutoGenerateConfig(ctx, cfg, version); err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
		}
		return jsonResult(cfg)
	}
}

func jsonResult(data any) (*mcp.CallToolResult, error) {
	encoded, err := json.Marshal(data)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(encoded)), nil
}
