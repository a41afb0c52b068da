package mcp

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

func registerTools(server *mcp.Server, analyses AnalysisReader, runner BatchRunner) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "analyze_batch",
		Description: "Run valuation, relative ranking, technicals and signal fusion over stored snapshots",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in analyzeBatchInput) (*mcp.CallToolResult, analyzeBatchOutput, error) {
		if runner == nil {
			return nil, analyzeBatchOutput{}, fmt.Errorf("analysis service unavailable")
		}
		tickers, err := normalizeBatchTickers(in.Tickers)
		if err != nil {
			return nil, analyzeBatchOutput{}, err
		}
		report, err := runner.RunBatch(ctx, tickers)
		if err != nil {
			return nil, analyzeBatchOutput{}, err
		}
		return nil, batchOutput(report), nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_analysis",
		Description: "Get the latest analysis for one ticker",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in getAnalysisInput) (*mcp.CallToolResult, getAnalysisOutput, error) {
		if analyses == nil {
			return nil, getAnalysisOutput{}, fmt.Errorf("analysis service unavailable")
		}
		ticker, err := normalizeTicker(in.Ticker)
		if err != nil {
			return nil, getAnalysisOutput{}, err
		}
		rec, err := analyses.GetAnalysis(ctx, ticker)
		if err != nil {
			return nil, getAnalysisOutput{}, err
		}
		return nil, getAnalysisOutput{Analysis: rec}, nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_analyses",
		Description: "List analyses ordered by conviction with optional signal, confidence and sector filters",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in listAnalysesInput) (*mcp.CallToolResult, listAnalysesOutput, error) {
		if analyses == nil {
			return nil, listAnalysesOutput{}, fmt.Errorf("analysis service unavailable")
		}
		filter, err := normalizeAnalysisFilter(in)
		if err != nil {
			return nil, listAnalysesOutput{}, err
		}
		list, err := analyses.ListAnalyses(ctx, filter)
		if err != nil {
			return nil, listAnalysesOutput{}, err
		}
		return nil, listAnalysesOutput{Analyses: list}, nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_report",
		Description: "Get the signal distribution, confidence counts, top buys and failures of the latest run",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, _ getReportInput) (*mcp.CallToolResult, getReportOutput, error) {
		if analyses == nil {
			return nil, getReportOutput{}, fmt.Errorf("analysis service unavailable")
		}
		report, err := analyses.LatestReport(ctx)
		if err != nil {
			return nil, getReportOutput{}, err
		}
		return nil, getReportOutput{Report: report}, nil
	})
}
