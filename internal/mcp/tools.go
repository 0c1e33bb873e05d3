package mcp

import (
	"context"
	"time"

	"github.com/claude/chalkline/internal/dashboard"
	"github.com/claude/chalkline/internal/models"
	"github.com/mark3labs/mcp-go/mcp"
)

// timeRange returns start/end, defaulting to the defaultDays days before end
// and end to now.
func timeRange(startStr, endStr string, defaultDays int) (time.Time, time.Time, error) {
	var start, end time.Time
	var err error

	if endStr != "" {
		end, err = parseFlexTime(endStr)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
	} else {
		end = time.Now()
	}

	if startStr != "" {
		start, err = parseFlexTime(startStr)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
	} else {
		start = end.AddDate(0, 0, -defaultDays)
	}

	return start, end, nil
}

func parseFlexTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err == nil {
		return t, nil
	}
	t, err = time.Parse("2006-01-02", s)
	if err == nil {
		return t, nil
	}
	return time.Time{}, err
}

// --- Tool definitions ---

var toolGetReadiness = mcp.NewTool("get_readiness",
	mcp.WithDescription("Current training readiness. Returns the 0-100 readiness score with zone (OPTIMAL/BALANCED/LIMITED) and calibration status, the 7-day vs 28-day load ratio with risk zone, and a recommended session (volume, RPE, grade range, focus, warning)."),
)

var toolGetSessions = mcp.NewTool("get_sessions",
	mcp.WithDescription("List logged bouldering sessions with climb count, flashes, average RPE and hardest grade."),
	mcp.WithString("start", mcp.Description("Start date (ISO 8601 or YYYY-MM-DD). Defaults to 30 days ago.")),
	mcp.WithString("end", mcp.Description("End date (ISO 8601 or YYYY-MM-DD). Defaults to now.")),
	mcp.WithNumber("limit", mcp.Description("Maximum number of sessions, newest first. Defaults to 50.")),
)

var toolGetScoreHistory = mcp.NewTool("get_score_history",
	mcp.WithDescription("Daily stored readiness snapshots: score, zone, load ratio and recommendation per day."),
	mcp.WithString("start", mcp.Description("Start date. Defaults to 90 days ago.")),
	mcp.WithString("end", mcp.Description("End date. Defaults to now.")),
)

var toolGetWeeklySummary = mcp.NewTool("get_weekly_summary",
	mcp.WithDescription("Per ISO week totals: sessions, climbs, flashes, RPE volume, average RPE, hardest and median grade. Oldest week first, including empty weeks."),
	mcp.WithNumber("weeks", mcp.Description("Number of weeks including the current one (1-52). Defaults to 12.")),
)

var toolGetTrainingSummary = mcp.NewTool("get_training_summary",
	mcp.WithDescription("Weekly or monthly training volume: sessions, climbs, flashes, RPE volume, hardest grade and a breakdown by wall angle."),
	mcp.WithString("start", mcp.Description("Start date. Defaults to 6 months ago.")),
	mcp.WithString("end", mcp.Description("End date. Defaults to now.")),
	mcp.WithString("bucket", mcp.Description("Aggregation period. Defaults to 'week'."), mcp.Enum("week", "month")),
)

var toolGetTrainingIntensity = mcp.NewTool("get_training_intensity",
	mcp.WithDescription("RPE distribution, share of limit efforts and per-grade stats. With an angle filter, includes session-by-session grade progression on that angle."),
	mcp.WithString("start", mcp.Description("Start date. Defaults to 90 days ago.")),
	mcp.WithString("end", mcp.Description("End date. Defaults to now.")),
	mcp.WithString("angle", mcp.Description("Restrict to one wall angle."), mcp.Enum("slab", "vertical", "overhang")),
)

// --- Tool handlers ---

func (h *handlers) getReadiness(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	bundle, err := h.ds.Compute(ctx, UserIDFromContext(ctx))
	if err != nil {
		h.log.Error("mcp get_readiness", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}
	return toolJSON(bundle)
}

func (h *handlers) getSessions(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	start, end, err := timeRange(req.GetString("start", ""), req.GetString("end", ""), 30)
	if err != nil {
		return mcp.NewToolResultError("invalid date format: " + err.Error()), nil
	}

	limit := req.GetInt("limit", 50)
	if limit <= 0 {
		limit = 50
	}
	sessions, err := h.ds.ListSessions(ctx, start, end, UserIDFromContext(ctx), limit)
	if err != nil {
		h.log.Error("mcp get_sessions", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}
	return toolJSON(sessions)
}

func (h *handlers) getScoreHistory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	start, end, err := timeRange(req.GetString("start", ""), req.GetString("end", ""), 90)
	if err != nil {
		return mcp.NewToolResultError("invalid date format: " + err.Error()), nil
	}

	rows, err := h.ds.History(ctx, start, end, UserIDFromContext(ctx), 366)
	if err != nil {
		h.log.Error("mcp get_score_history", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}
	return toolJSON(rows)
}

func (h *handlers) getWeeklySummary(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	weeks := req.GetInt("weeks", 12)
	if weeks < 1 || weeks > dashboard.MaxWeeks {
		return mcp.NewToolResultError("weeks must be between 1 and 52"), nil
	}

	summary, err := h.ds.WeeklySummary(ctx, UserIDFromContext(ctx), weeks)
	if err != nil {
		h.log.Error("mcp get_weekly_summary", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}
	return toolJSON(summary)
}

func (h *handlers) getTrainingSummary(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	start, end, err := timeRange(req.GetString("start", ""), req.GetString("end", ""), 182)
	if err != nil {
		return mcp.NewToolResultError("invalid date format: " + err.Error()), nil
	}

	bucket := req.GetString("bucket", "week")
	summary, err := h.ds.GetTrainingSummary(ctx, start, end, bucket, UserIDFromContext(ctx))
	if err != nil {
		h.log.Error("mcp get_training_summary", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}
	return toolJSON(summary)
}

func (h *handlers) getTrainingIntensity(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	start, end, err := timeRange(req.GetString("start", ""), req.GetString("end", ""), 90)
	if err != nil {
		return mcp.NewToolResultError("invalid date format: " + err.Error()), nil
	}

	angle := req.GetString("angle", "")
	if angle != "" && models.ParseWallAngle(angle) == "" {
		return mcp.NewToolResultError("unknown wall angle: " + angle), nil
	}

	intensity, err := h.ds.GetTrainingIntensity(ctx, start, end, UserIDFromContext(ctx), string(models.ParseWallAngle(angle)))
	if err != nil {
		h.log.Error("mcp get_training_intensity", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}
	return toolJSON(intensity)
}

func toolJSON(v any) (*mcp.CallToolResult, error) {
	result, err := mcp.NewToolResultJSON(v)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}
