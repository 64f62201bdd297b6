package mcp

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/sirupsen/logrus"

	"github.com/denysvitali/rclone-api-go/internal/models"
	"github.com/denysvitali/rclone-api-go/pkg/errcodes"
	"github.com/denysvitali/rclone-api-go/pkg/gateway"
)

// BasePath is where the SSE transport is mounted
const BasePath = "/mcp"

// Server exposes the gateway operations as MCP tools
type Server struct {
	logger    *logrus.Logger
	gateway   *gateway.Service
	mcpServer *server.MCPServer
}

// NewServer creates a new MCP server backed by the gateway service
func NewServer(logger *logrus.Logger, gw *gateway.Service, version string) *Server {
	mcpServer := server.NewMCPServer(
		"rclone-api",
		version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	)

	s := &Server{
		logger:    logger,
		gateway:   gw,
		mcpServer: mcpServer,
	}
	s.registerTools()

	return s
}

// Handler returns the SSE transport serving BasePath/sse and BasePath/message
func (s *Server) Handler() http.Handler {
	return server.NewSSEServer(s.mcpServer, server.WithBasePath(BasePath))
}

func (s *Server) registerTools() {
	copyTool := mcp.NewTool("copy",
		mcp.WithDescription("Copy a local path or remote URI into the encrypted remote"),
		mcp.WithString("source",
			mcp.Required(),
			mcp.Description("Local path or rclone remote URI to copy from"),
		),
		mcp.WithString("destination",
			mcp.Required(),
			mcp.Description("Destination path inside the remote"),
		),
	)
	s.mcpServer.AddTool(copyTool, s.handleCopy)

	deleteTool := mcp.NewTool("delete",
		mcp.WithDescription("Delete files under a path of the encrypted remote"),
		mcp.WithString("remote_path",
			mcp.Required(),
			mcp.Description("Path inside the remote"),
		),
	)
	s.mcpServer.AddTool(deleteTool, s.handleDelete)

	listTool := mcp.NewTool("list",
		mcp.WithDescription("List every file stored in the encrypted remote"),
	)
	s.mcpServer.AddTool(listTool, s.handleList)
}

func (s *Server) handleCopy(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	source, err := request.RequireString("source")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("source parameter error: %v", err)), nil
	}
	destination, err := request.RequireString("destination")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("destination parameter error: %v", err)), nil
	}

	s.logger.Debugf("MCP copy %s -> %s", source, destination)
	msg, err := s.gateway.Copy(ctx, models.CopyRequest{Source: source, Destination: destination})
	if err != nil {
		return toolError(err), nil
	}
	return mcp.NewToolResultText(msg), nil
}

func (s *Server) handleDelete(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	remotePath, err := request.RequireString("remote_path")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("remote_path parameter error: %v", err)), nil
	}

	s.logger.Debugf("MCP delete %s", remotePath)
	resp, err := s.gateway.Delete(ctx, models.DeleteRequest{RemotePath: remotePath})
	if err != nil {
		return toolError(err), nil
	}
	return mcp.NewToolResultText(resp.Message), nil
}

func (s *Server) handleList(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	resp, err := s.gateway.List(ctx)
	if err != nil {
		return toolError(err), nil
	}
	if len(resp.Files) == 0 {
		return mcp.NewToolResultText("No files found."), nil
	}
	return mcp.NewToolResultText(strings.Join(resp.Files, "\n")), nil
}

// toolError renders the error message, with the rclone diagnostics for upstream failures
func toolError(err error) *mcp.CallToolResult {
	e := errcodes.From(err)
	msg := e.Message
	if e.Kind == errcodes.KindUpstreamFailure && e.Cause != nil && !strings.Contains(msg, e.Cause.Error()) {
		msg = fmt.Sprintf("%s\n%v", msg, e.Cause)
	}
	return mcp.NewToolResultError(msg)
}
