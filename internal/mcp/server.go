package mcp

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	defaultRequestTimeout = 30 * time.Second
	defaultBatchTimeout   = 5 * time.Minute
	batchToolName         = "analyze_batch"
)

// ServerConfig bounds request handling. BatchTimeout applies to
// analyze_batch calls and RequestTimeout to everything else.
type ServerConfig struct {
	RequestTimeout time.Duration
	BatchTimeout   time.Duration
}

func (c ServerConfig) withDefaults() ServerConfig {
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = defaultRequestTimeout
	}
	if c.BatchTimeout <= 0 {
		c.BatchTimeout = defaultBatchTimeout
	}
	return c
}

// NewServer exposes the analysis service as MCP tools and resources.
func NewServer(tracer trace.Tracer, analyses AnalysisReader, runner BatchRunner, cfg ServerConfig) *sdkmcp.Server {
	cfg = cfg.withDefaults()

	srv := sdkmcp.NewServer(&sdkmcp.Implementation{
		Name:    "equity-screener-mcp",
		Version: "1.0.0",
	}, &sdkmcp.ServerOptions{
		Instructions: "Run equity analysis batches and inspect DCF valuations, sector-relative multiples, Bollinger/RSI technicals and the fused BUY/HOLD/SELL signals.",
		Logger:       slog.Default(),
	})

	srv.AddReceivingMiddleware(deadlineMiddleware(cfg))
	if tracer != nil {
		srv.AddReceivingMiddleware(spanMiddleware(tracer))
	}

	registerTools(srv, analyses, runner)
	registerResources(srv, analyses)
	return srv
}

// NewHTTPTransportHandler serves server over streamable HTTP behind bearer
// auth, rate limiting and a body size cap.
func NewHTTPTransportHandler(server *sdkmcp.Server, cfg HTTPHandlerConfig) http.Handler {
	base := sdkmcp.NewStreamableHTTPHandler(func(*http.Request) *sdkmcp.Server {
		return server
	}, &sdkmcp.StreamableHTTPOptions{})
	return wrapHTTPHandler(base, cfg)
}

func toolName(req sdkmcp.Request) string {
	if call, ok := req.(*sdkmcp.CallToolRequest); ok && call.Params != nil {
		return strings.TrimSpace(call.Params.Name)
	}
	return ""
}

func resourceURI(req sdkmcp.Request) string {
	if read, ok := req.(*sdkmcp.ReadResourceRequest); ok && read.Params != nil {
		return strings.TrimSpace(read.Params.URI)
	}
	return ""
}

func deadlineMiddleware(cfg ServerConfig) sdkmcp.Middleware {
	return func(next sdkmcp.MethodHandler) sdkmcp.MethodHandler {
		return func(ctx context.Context, method string, req sdkmcp.Request) (sdkmcp.Result, error) {
			timeout := cfg.RequestTimeout
			if toolName(req) == batchToolName {
				timeout = cfg.BatchTimeout
			}
			ctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()
			return next(ctx, method, req)
		}
	}
}

func spanMiddleware(tracer trace.Tracer) sdkmcp.Middleware {
	return func(next sdkmcp.MethodHandler) sdkmcp.MethodHandler {
		return func(ctx context.Context, method string, req sdkmcp.Request) (sdkmcp.Result, error) {
			ctx, span := tracer.Start(ctx, spanName(method, req))
			defer span.End()

			span.SetAttributes(attribute.String("mcp.method", method))
			if name := toolName(req); name != "" {
				span.SetAttributes(attribute.String("mcp.tool", name))
			}
			if uri := resourceURI(req); uri != "" {
				span.SetAttributes(attribute.String("mcp.resource.uri", uri))
			}

			result, err := next(ctx, method, req)
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
			}
			return result, err
		}
	}
}

// spanName maps tools/call to mcp.tool.<name> and resources/read to
// mcp.resource.<scheme>.
func spanName(method string, req sdkmcp.Request) string {
	switch method {
	case "tools/call":
		if name := toolName(req); name != "" {
			return "mcp.tool." + name
		}
		return "mcp.tool.call"
	case "resources/read":
		if scheme, _, ok := strings.Cut(resourceURI(req), "://"); ok && scheme != "" {
			return "mcp.resource." + scheme
		}
		return "mcp.resource.read"
	default:
		return "mcp." + strings.ReplaceAll(method, "/", ".")
	}
}
