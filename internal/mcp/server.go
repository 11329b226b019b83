package mcp

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const defaultRequestTimeout = 5 * time.Second

const toolQueueDrain = "queue_drain"

// ServerConfig bounds request handling. SendDelay is the pause the queue
// takes between deliveries; it stretches the deadline of queue_drain so a
// full batch is not cancelled halfway through.
type ServerConfig struct {
	RequestTimeout time.Duration
	SendDelay      time.Duration
}

func (c ServerConfig) requestTimeout() time.Duration {
	if c.RequestTimeout <= 0 {
		return defaultRequestTimeout
	}
	return c.RequestTimeout
}

// drainTimeout allows one request timeout per message in the largest batch
// plus the configured delay between them.
func (c ServerConfig) drainTimeout() time.Duration {
	perMessage := c.requestTimeout()
	if c.SendDelay > 0 {
		perMessage += c.SendDelay
	}
	return c.requestTimeout() + time.Duration(maxDrainLimit)*perMessage
}

func (c ServerConfig) timeoutFor(method string, req sdkmcp.Request) time.Duration {
	if method == "tools/call" && toolName(req) == toolQueueDrain {
		return c.drainTimeout()
	}
	return c.requestTimeout()
}

func NewServer(tracer trace.Tracer, briefings BriefingReader, queue QueueOperator, cfg ServerConfig) *sdkmcp.Server {
	srv := sdkmcp.NewServer(&sdkmcp.Implementation{
		Name:    "recession-pulse-mcp",
		Version: "1.0.0",
	}, &sdkmcp.ServerOptions{
		Instructions: "Use these tools/resources to inspect recession indicator readings, trends, rendered briefings and the delivery queue.",
		Logger:       slog.Default(),
	})

	srv.AddReceivingMiddleware(deadlineMiddleware(cfg))
	if tracer != nil {
		srv.AddReceivingMiddleware(tracingMiddleware(tracer))
	}

	registerTools(srv, briefings, queue)
	registerResources(srv, briefings, queue)
	return srv
}

func NewHTTPTransportHandler(server *sdkmcp.Server, cfg HTTPHandlerConfig) http.Handler {
	base := sdkmcp.NewStreamableHTTPHandler(func(*http.Request) *sdkmcp.Server {
		return server
	}, &sdkmcp.StreamableHTTPOptions{})
	return guardHTTPHandler(base, cfg)
}

func deadlineMiddleware(cfg ServerConfig) sdkmcp.Middleware {
	return func(next sdkmcp.MethodHandler) sdkmcp.MethodHandler {
		return func(ctx context.Context, method string, req sdkmcp.Request) (sdkmcp.Result, error) {
			ctx, cancel := context.WithTimeout(ctx, cfg.timeoutFor(method, req))
			defer cancel()
			return next(ctx, method, req)
		}
	}
}

func tracingMiddleware(tracer trace.Tracer) sdkmcp.Middleware {
	return func(next sdkmcp.MethodHandler) sdkmcp.MethodHandler {
		return func(ctx context.Context, method string, req sdkmcp.Request) (sdkmcp.Result, error) {
			ctx, span := tracer.Start(ctx, operationName(method, req))
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

// operationName maps a request to a span name: tool calls by tool, resource
// reads by the first segment of their pulse:// URI.
func operationName(method string, req sdkmcp.Request) string {
	switch method {
	case "tools/call":
		if name := toolName(req); name != "" {
			return "mcp-server.tool." + name
		}
		return "mcp-server.tool"
	case "resources/read":
		if kind := resourceKind(resourceURI(req)); kind != "" {
			return "mcp-server.resource." + kind
		}
		return "mcp-server.resource"
	default:
		return "mcp-server." + strings.ReplaceAll(method, "/", ".")
	}
}

func toolName(req sdkmcp.Request) string {
	callReq, ok := req.(*sdkmcp.CallToolRequest)
	if !ok || callReq.Params == nil {
		return ""
	}
	return strings.TrimSpace(callReq.Params.Name)
}

func resourceURI(req sdkmcp.Request) string {
	readReq, ok := req.(*sdkmcp.ReadResourceRequest)
	if !ok || readReq.Params == nil {
		return ""
	}
	return strings.TrimSpace(readReq.Params.URI)
}

func resourceKind(uri string) string {
	u, err := url.Parse(uri)
	if err != nil || u.Scheme != "pulse" {
		return ""
	}
	return u.Host
}
