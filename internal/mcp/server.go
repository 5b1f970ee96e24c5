package mcp

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Aman-CERP/smre/internal/output"
	"github.com/Aman-CERP/smre/internal/search"
	"github.com/Aman-CERP/smre/internal/telemetry"
	"github.com/Aman-CERP/smre/pkg/version"
)

// ServerName is the implementation name reported to clients.
const ServerName = "smre"

// Tool names.
const (
	ToolSearchMoments = "search_moments"
	ToolSearchStats   = "search_stats"
)

// Limits for the k argument.
const (
	DefaultK = 5
	MaxK     = 50
)

// Server is the MCP server for moment search.
type Server struct {
	mcp      *mcp.Server
	backend  search.Backend
	queryLog *telemetry.QueryLog
	defaultK int
	logger   *slog.Logger
}

// ToolInfo contains information about a registered tool.
type ToolInfo struct {
	Name        string
	Description string
}

// Options configures optional server collaborators.
type Options struct {
	// DefaultK is used when a call omits k. Zero means DefaultK.
	DefaultK int
	// QueryLog, when set, backs the search_stats tool.
	QueryLog *telemetry.QueryLog
	Logger   *slog.Logger
}

// NewServer creates an MCP server over backend.
func NewServer(backend search.Backend, opts Options) (*Server, error) {
	if backend == nil {
		return nil, errors.New("search backend is required")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.DefaultK <= 0 {
		opts.DefaultK = DefaultK
	}

	s := &Server{
		backend:  backend,
		queryLog: opts.QueryLog,
		defaultK: clampK(opts.DefaultK, DefaultK),
		logger:   opts.Logger,
	}
	s.mcp = mcp.NewServer(&mcp.Implementation{
		Name:    ServerName,
		Version: version.Version,
	}, nil)
	s.registerTools()
	return s, nil
}

// MCPServer returns the underlying MCP server instance.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcp
}

// ListTools returns the registered tools.
func (s *Server) ListTools() []ToolInfo {
	tools := []ToolInfo{searchMomentsTool}
	if s.queryLog != nil {
		tools = append(tools, searchStatsTool)
	}
	return tools
}

var (
	searchMomentsTool = ToolInfo{
		Name: ToolSearchMoments,
		Description: "Find sport highlight moments by free text. Years (e.g. 2012) and stages " +
			"(final, semifinal, quarterfinal) in the query are applied as filters; when they " +
			"match nothing, unfiltered results are returned and fallback_applied is set.",
	}
	searchStatsTool = ToolInfo{
		Name:        ToolSearchStats,
		Description: "Report aggregate query statistics: totals by outcome, top terms and latency distribution.",
	}
)

func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        searchMomentsTool.Name,
		Description: searchMomentsTool.Description,
	}, s.searchMomentsHandler)

	if s.queryLog != nil {
		mcp.AddTool(s.mcp, &mcp.Tool{
			Name:        searchStatsTool.Name,
			Description: searchStatsTool.Description,
		}, s.searchStatsHandler)
	}
	s.logger.Debug("mcp_tools_registered", slog.Int("count", len(s.ListTools())))
}

func (s *Server) searchMomentsHandler(ctx context.Context, _ *mcp.CallToolRequest, input SearchInput) (
	*mcp.CallToolResult,
	SearchOutput,
	error,
) {
	query := strings.TrimSpace(input.Query)
	if query == "" {
		return nil, SearchOutput{}, NewInvalidParamsError("query cannot be empty or whitespace only")
	}
	k := clampK(input.K, s.defaultK)

	requestID := uuid.New().String()
	start := time.Now()
	s.logger.Info("mcp_search_started",
		slog.String("request_id", requestID),
		slog.String("query", query),
		slog.Int("k", k))

	rs, err := s.backend.Search(ctx, query, k)
	if err != nil {
		s.logger.Error("mcp_search_failed",
			slog.String("request_id", requestID),
			slog.Duration("duration", time.Since(start)),
			slog.String("error", err.Error()))
		return nil, SearchOutput{}, MapError(err)
	}

	s.logger.Info("mcp_search_complete",
		slog.String("request_id", requestID),
		slog.Duration("duration", time.Since(start)),
		slog.Int("result_count", rs.Len()))

	return nil, ToSearchOutput(rs, input.Cards), nil
}

func (s *Server) searchStatsHandler(_ context.Context, _ *mcp.CallToolRequest, _ StatsInput) (
	*mcp.CallToolResult,
	StatsOutput,
	error,
) {
	return nil, ToStatsOutput(s.queryLog.Snapshot()), nil
}

// Serve runs the server over stdio until ctx is cancelled or the client
// disconnects.
func (s *Server) Serve(ctx context.Context) error {
	s.logger.Info("mcp_server_starting", slog.String("transport", "stdio"))
	err := s.mcp.Run(ctx, &mcp.StdioTransport{})
	if err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Error("mcp_server_stopped", slog.String("error", err.Error()))
		return err
	}
	s.logger.Info("mcp_server_stopped")
	return nil
}

// clampK returns k bounded to [1, MaxK], or def when k is not positive.
func clampK(k, def int) int {
	if k <= 0 {
		k = def
	}
	return max(1, min(k, MaxK))
}

// cardFor renders r as a markdown card.
func cardFor(r search.Result) string {
	return output.RenderCard(r.Moment)
}
