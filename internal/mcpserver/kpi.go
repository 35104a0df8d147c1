package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"bizassist/internal/domain"
)

type kpiSummary struct {
	TotalSales            float64 `json:"totalSales"`
	SalesChangePercentage float64 `json:"salesChangePercentage"`
	PreviousMonthTotal    float64 `json:"previousMonthTotal"`
	From                  string  `json:"from"`
	To                    string  `json:"to"`
	CompletedTasks        *int    `json:"completedTasks,omitempty"`
	PendingTasks          *int    `json:"pendingTasks,omitempty"`
}

// taskCounter is optionally implemented by the sales source.
type taskCounter interface {
	CountTasks(ctx context.Context, tenantID string) (completed, pending int, err error)
}

// KPISummaryTool reports the current month's sales against the previous month.
type KPISummaryTool struct {
	sales     domain.SalesQuerier
	principal domain.Principal
	now       func() time.Time
	loc       *time.Location
}

func NewKPISummaryTool(sales domain.SalesQuerier, p domain.Principal, now func() time.Time, loc *time.Location) *KPISummaryTool {
	return &KPISummaryTool{sales: sales, principal: p, now: now, loc: loc}
}

func (t *KPISummaryTool) Definition() mcp.Tool {
	return mcp.NewTool("kpi_summary",
		mcp.WithDescription("Sales total for the current calendar month, the previous month's total and the change in percent, "+
			"plus completed and pending task counts when available."),
	)
}

func (t *KPISummaryTool) Handle(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	from, to := domain.MonthWindow(t.now().In(t.loc))
	current, err := t.sales.SalesBetween(ctx, t.principal.TenantID(), from, to)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("sales query failed: %v", err)), nil
	}
	previous, err := t.sales.SalesBetween(ctx, t.principal.TenantID(), from.AddDate(0, -1, 0), from)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("sales query failed: %v", err)), nil
	}

	summary := kpiSummary{
		TotalSales:            current.Total,
		SalesChangePercentage: domain.SalesChange(current.Total, previous.Total),
		PreviousMonthTotal:    previous.Total,
		From:                  from.Format("2006-01-02"),
		To:                    to.Format("2006-01-02"),
	}
	if tc, ok := t.sales.(taskCounter); ok {
		completed, pending, err := tc.CountTasks(ctx, t.principal.TenantID())
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("task query failed: %v", err)), nil
		}
		summary.CompletedTasks, summary.PendingTasks = &completed, &pending
	}

	out, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding kpi summary: %w", err)
	}
	return mcp.NewToolResultText(string(out)), nil
}
