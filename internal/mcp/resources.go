package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"equity-screener/internal/domain"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

func registerResources(server *mcp.Server, analyses AnalysisReader) {
	server.AddResource(&mcp.Resource{
		URI:         "screener://signals",
		Name:        "signal-actions",
		Description: "Signal actions from most bullish to most bearish",
		MIMEType:    "application/json",
	}, func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		_ = ctx
		return jsonResource(req.Params.URI, domain.AllActions)
	})

	server.AddResource(&mcp.Resource{
		URI:         "report://latest",
		Name:        "report-latest",
		Description: "Summary and failures of the latest analysis run",
		MIMEType:    "application/json",
	}, func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		if analyses == nil {
			return nil, fmt.Errorf("analysis service unavailable")
		}
		report, err := analyses.LatestReport(ctx)
		if err != nil {
			return nil, err
		}
		return jsonResource(req.Params.URI, getReportOutput{Report: report})
	})

	server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: "analysis://{ticker}",
		Name:        "analysis-by-ticker",
		Description: "Latest analysis for a specific ticker",
		MIMEType:    "application/json",
	}, func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		if analyses == nil {
			return nil, fmt.Errorf("analysis service unavailable")
		}

		parsed, err := url.Parse(req.Params.URI)
		if err != nil || parsed.Scheme != "analysis" {
			return nil, mcp.ResourceNotFoundError(req.Params.URI)
		}
		ticker, err := normalizeTicker(parsed.Host)
		if err != nil {
			return nil, err
		}

		rec, err := analyses.GetAnalysis(ctx, ticker)
		if err != nil {
			return nil, err
		}
		return jsonResource(req.Params.URI, getAnalysisOutput{Analysis: rec})
	})

	server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: "analyses://latest{?signal,confidence,sector,min_conviction,limit}",
		Name:        "analyses-latest",
		Description: "Latest analyses with optional signal/confidence/sector/min_conviction/limit query params",
		MIMEType:    "application/json",
	}, func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		if analyses == nil {
			return nil, fmt.Errorf("analysis service unavailable")
		}

		parsed, err := url.Parse(req.Params.URI)
		if err != nil {
			return nil, mcp.ResourceNotFoundError(req.Params.URI)
		}
		if parsed.Scheme != "analyses" || parsed.Host != "latest" {
			return nil, mcp.ResourceNotFoundError(req.Params.URI)
		}

		q := parsed.Query()
		input := listAnalysesInput{
			Signal:     q.Get("signal"),
			Confidence: q.Get("confidence"),
			Sector:     q.Get("sector"),
		}
		if raw := strings.TrimSpace(q.Get("limit")); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil {
				return nil, fmt.Errorf("invalid limit: %s", raw)
			}
			input.Limit = n
		}
		if raw := strings.TrimSpace(q.Get("min_conviction")); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil {
				return nil, fmt.Errorf("invalid min_conviction: %s", raw)
			}
			input.MinConviction = n
		}

		filter, err := normalizeAnalysisFilter(input)
		if err != nil {
			return nil, err
		}
		list, err := analyses.ListAnalyses(ctx, filter)
		if err != nil {
			return nil, err
		}
		return jsonResource(req.Params.URI, listAnalysesOutput{Analyses: list})
	})
}

func jsonResource(uri string, payload any) (*mcp.ReadResourceResult, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(body),
		}},
	}, nil
}
