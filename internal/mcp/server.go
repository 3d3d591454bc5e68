package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/trieloff/scriptrag/internal/config"
	"github.com/trieloff/scriptrag/internal/editor"
	"github.com/trieloff/scriptrag/internal/embed"
	"github.com/trieloff/scriptrag/internal/search"
	"github.com/trieloff/scriptrag/internal/telemetry"
	"github.com/trieloff/scriptrag/pkg/version"
)

// Server is the MCP server for ScriptRAG (§6). It bridges AI agents with
// the query planner (search tool) and the scene editor (scene_read,
// scene_add, scene_update, scene_delete).
type Server struct {
	mcp      *mcp.Server
	engine   *search.Engine
	editor   *editor.Editor
	embedder embed.Embedder
	config   *config.Config
	logger   *slog.Logger

	rootPath string

	// Query telemetry (optional, set via SetMetrics)
	metrics *telemetry.QueryMetrics

	mu sync.RWMutex
}

// ToolInfo contains information about a registered tool.
type ToolInfo struct {
	Name        string
	Description string
}

// NewServer creates a new MCP server. engine and ed are required; embedder,
// cfg, and rootPath may be their zero values — embedder nil simply means
// the query planner never augments with a semantic pass.
func NewServer(engine *search.Engine, ed *editor.Editor, embedder embed.Embedder, cfg *config.Config, rootPath string) (*Server, error) {
	if engine == nil {
		return nil, errors.New("search engine is required")
	}
	if ed == nil {
		return nil, errors.New("scene editor is required")
	}
	if cfg == nil {
		cfg = config.NewConfig()
	}

	s := &Server{
		engine:   engine,
		editor:   ed,
		embedder: embedder,
		config:   cfg,
		rootPath: rootPath,
		logger:   slog.Default(),
	}

	s.mcp = mcp.NewServer(
		&mcp.Implementation{
			Name:    "ScriptRAG",
			Version: version.Version,
		},
		nil,
	)

	s.registerTools()

	return s, nil
}

// SetMetrics sets the query metrics collector for telemetry.
// When set, a query_metrics resource is registered.
func (s *Server) SetMetrics(m *telemetry.QueryMetrics) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metrics = m

	if m != nil {
		s.registerQueryMetricsResource()
	}
}

// MCPServer returns the underlying MCP server instance.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcp
}

// Info returns the server name and version.
func (s *Server) Info() (name, ver string) {
	return "ScriptRAG", version.Version
}

// ListTools returns all registered tools.
func (s *Server) ListTools() []ToolInfo {
	return []ToolInfo{
		{
			Name:        "search",
			Description: "Search scenes and show bibles by free text, character, location, dialogue, action, or episode range. Optionally augments with semantic (vector) search when the structured match set is thin.",
		},
		{
			Name:        "scene_read",
			Description: "Read a scene's current content and obtain a session token. Pass the token to scene_update to prove no one else changed the scene between your read and write.",
		},
		{
			Name:        "scene_add",
			Description: "Insert a new scene before or after a reference scene number, shifting subsequent scenes to make room.",
		},
		{
			Name:        "scene_update",
			Description: "Replace a scene's content. Requires the session token from a prior scene_read of the same scene; fails if the scene changed since that read.",
		},
		{
			Name:        "scene_delete",
			Description: "Delete a scene and compact the scene numbers after it. Requires confirm=true.",
		},
	}
}

// registerTools registers all tools with the MCP server.
func (s *Server) registerTools() {
	s.logger.Debug("registering MCP tools")

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "search",
		Description: "Search scenes and show bibles by free text, character, location, dialogue, action, or episode range.",
	}, s.mcpSearchHandler)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "scene_read",
		Description: "Read a scene's current content and obtain a session token for a subsequent scene_update.",
	}, s.mcpSceneReadHandler)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "scene_add",
		Description: "Insert a new scene before or after a reference scene number.",
	}, s.mcpSceneAddHandler)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "scene_update",
		Description: "Replace a scene's content, guarded by a scene_read session token.",
	}, s.mcpSceneUpdateHandler)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "scene_delete",
		Description: "Delete a scene and compact following scene numbers.",
	}, s.mcpSceneDeleteHandler)

	s.logger.Info("MCP tools registered", slog.Int("count", 5))
}

// SearchInput defines the input schema for the search tool.
type SearchInput struct {
	Query        string   `json:"query" jsonschema:"the free-text query to execute"`
	Project      string   `json:"project,omitempty" jsonschema:"restrict to a single project or show"`
	Characters   []string `json:"characters,omitempty" jsonschema:"restrict to scenes featuring all of these characters"`
	Locations    []string `json:"locations,omitempty" jsonschema:"restrict to scenes at any of these locations"`
	Dialogue     string   `json:"dialogue,omitempty" jsonschema:"restrict to scenes whose dialogue contains this text"`
	Action       string   `json:"action,omitempty" jsonschema:"restrict to scenes whose action lines contain this text"`
	IncludeBible bool     `json:"include_bible,omitempty" jsonschema:"also search show bible passages"`
	OnlyBible    bool     `json:"only_bible,omitempty" jsonschema:"search only show bible passages, skipping scenes"`
	Mode         string   `json:"mode,omitempty" jsonschema:"auto, strict, or fuzzy — controls when semantic search augments the structured match set"`
	Limit        int      `json:"limit,omitempty" jsonschema:"maximum number of results, default 20"`
}

// SearchOutput defines the output schema for the search tool.
type SearchOutput struct {
	Scenes  []sceneResultOutput `json:"scenes"`
	Bibles  []bibleResultOutput `json:"bibles,omitempty"`
	Total   int                 `json:"total"`
	Methods []string            `json:"methods"`
}

func (s *Server) mcpSearchHandler(ctx context.Context, _ *mcp.CallToolRequest, input SearchInput) (
	*mcp.CallToolResult,
	SearchOutput,
	error,
) {
	if input.Query == "" {
		return nil, SearchOutput{}, NewInvalidParamsError("query parameter is required")
	}

	q := search.Query{
		RawQuery:     input.Query,
		TextQuery:    input.Query,
		Project:      input.Project,
		Characters:   input.Characters,
		Locations:    input.Locations,
		Dialogue:     input.Dialogue,
		Action:       input.Action,
		IncludeBible: input.IncludeBible,
		OnlyBible:    input.OnlyBible,
		Limit:        clampLimit(input.Limit, 20, 1, 200),
	}
	switch input.Mode {
	case "strict":
		q.Mode = search.ModeStrict
	case "fuzzy":
		q.Mode = search.ModeFuzzy
	default:
		q.Mode = search.ModeAuto
	}

	result, err := s.engine.Search(ctx, q)
	if err != nil {
		return nil, SearchOutput{}, MapError(err)
	}

	out := SearchOutput{
		Scenes:  make([]sceneResultOutput, len(result.Scenes)),
		Bibles:  make([]bibleResultOutput, len(result.Bibles)),
		Total:   result.Total,
		Methods: result.Methods,
	}
	for i, r := range result.Scenes {
		out.Scenes[i] = toSceneResultOutput(r)
	}
	for i, r := range result.Bibles {
		out.Bibles[i] = toBibleResultOutput(r)
	}
	return nil, out, nil
}

func sceneIdentifierFrom(project string, sceneNumber int, season, episode *int) editor.SceneIdentifier {
	return editor.SceneIdentifier{Project: project, SceneNumber: sceneNumber, Season: season, Episode: episode}
}

func (s *Server) mcpSceneReadHandler(ctx context.Context, _ *mcp.CallToolRequest, input SceneReadInput) (
	*mcp.CallToolResult,
	SceneReadOutput,
	error,
) {
	res, err := s.editor.ReadScene(ctx, sceneIdentifierFrom(input.Project, input.SceneNumber, input.Season, input.Episode))
	if err != nil {
		return nil, SceneReadOutput{}, MapError(err)
	}
	return nil, SceneReadOutput{
		Heading:      res.Scene.Heading,
		Location:     res.Scene.Location,
		TimeOfDay:    res.Scene.TimeOfDay,
		Content:      res.Scene.Content,
		SessionToken: res.SessionToken,
		ExpiresAt:    res.ExpiresAt.UTC().Format(time.RFC3339),
	}, nil
}

func (s *Server) mcpSceneAddHandler(ctx context.Context, _ *mcp.CallToolRequest, input SceneAddInput) (
	*mcp.CallToolResult,
	SceneAddOutput,
	error,
) {
	position := editor.PositionAfter
	if input.Position == "before" {
		position = editor.PositionBefore
	}
	res, err := s.editor.AddScene(ctx,
		sceneIdentifierFrom(input.Project, input.SceneNumber, input.Season, input.Episode),
		input.Content, position)
	if err != nil {
		return nil, SceneAddOutput{}, MapError(err)
	}
	return nil, SceneAddOutput{SceneNumber: res.CreatedScene.SceneNumber, Renumbered: res.Renumbered}, nil
}

func (s *Server) mcpSceneUpdateHandler(ctx context.Context, _ *mcp.CallToolRequest, input SceneUpdateInput) (
	*mcp.CallToolResult,
	SceneUpdateOutput,
	error,
) {
	res, err := s.editor.UpdateScene(ctx,
		sceneIdentifierFrom(input.Project, input.SceneNumber, input.Season, input.Episode),
		input.Content, input.SessionToken)
	if err != nil {
		return nil, SceneUpdateOutput{}, MapError(err)
	}
	return nil, SceneUpdateOutput{
		Heading:   res.UpdatedScene.Heading,
		Location:  res.UpdatedScene.Location,
		TimeOfDay: res.UpdatedScene.TimeOfDay,
		Content:   res.UpdatedScene.Content,
	}, nil
}

func (s *Server) mcpSceneDeleteHandler(ctx context.Context, _ *mcp.CallToolRequest, input SceneDeleteInput) (
	*mcp.CallToolResult,
	SceneDeleteOutput,
	error,
) {
	if !input.Confirm {
		return nil, SceneDeleteOutput{}, NewInvalidParamsError("confirm must be true to delete a scene")
	}
	res, err := s.editor.DeleteScene(ctx,
		sceneIdentifierFrom(input.Project, input.SceneNumber, input.Season, input.Episode), true)
	if err != nil {
		return nil, SceneDeleteOutput{}, MapError(err)
	}
	return nil, SceneDeleteOutput{Renumbered: res.Renumbered}, nil
}

// registerQueryMetricsResource registers the query_metrics resource.
func (s *Server) registerQueryMetricsResource() {
	s.mcp.AddResource(
		&mcp.Resource{
			Name:        "query_metrics",
			URI:         "scriptrag://query_metrics",
			Description: "Query pattern telemetry for search optimization",
			MIMEType:    "application/json",
		},
		s.makeQueryMetricsHandler(),
	)
}

// QueryMetricsOutput is the JSON structure for the query_metrics resource.
type QueryMetricsOutput struct {
	TotalQueries  int64             `json:"total_queries"`
	ZeroResultPct float64           `json:"zero_result_pct"`
	QueryTypes    map[string]int64  `json:"query_type_counts"`
	TopTerms      []QueryTermCount  `json:"top_terms"`
	Latency       map[string]int64  `json:"latency_distribution"`
}

// QueryTermCount represents a term and its frequency.
type QueryTermCount struct {
	Term  string `json:"term"`
	Count int64  `json:"count"`
}

func (s *Server) makeQueryMetricsHandler() mcp.ResourceHandler {
	return func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		s.mu.RLock()
		metrics := s.metrics
		s.mu.RUnlock()

		if metrics == nil {
			return nil, NewInvalidParamsError("query metrics not available")
		}

		snapshot := metrics.Snapshot()
		output := QueryMetricsOutput{
			TotalQueries:  snapshot.TotalQueries,
			ZeroResultPct: snapshot.ZeroResultPercentage(),
			QueryTypes:    make(map[string]int64, len(snapshot.QueryTypeCounts)),
			TopTerms:      make([]QueryTermCount, 0, len(snapshot.TopTerms)),
			Latency:       make(map[string]int64, len(snapshot.LatencyDistribution)),
		}
		for qt, count := range snapshot.QueryTypeCounts {
			output.QueryTypes[string(qt)] = count
		}
		for _, tc := range snapshot.TopTerms {
			output.TopTerms = append(output.TopTerms, QueryTermCount{Term: tc.Term, Count: tc.Count})
		}
		for bucket, count := range snapshot.LatencyDistribution {
			output.Latency[string(bucket)] = count
		}

		content, err := json.MarshalIndent(output, "", "  ")
		if err != nil {
			return nil, MapError(err)
		}

		return &mcp.ReadResourceResult{
			Contents: []*mcp.ResourceContents{
				{URI: "scriptrag://query_metrics", MIMEType: "application/json", Text: string(content)},
			},
		}, nil
	}
}

// Serve starts the server with the specified transport.
func (s *Server) Serve(ctx context.Context, transport string) error {
	s.logger.Info("starting MCP server", slog.String("transport", transport))

	switch transport {
	case "stdio":
		err := s.mcp.Run(ctx, &mcp.StdioTransport{})
		if err != nil && err != context.Canceled {
			s.logger.Error("MCP server stopped with error", slog.String("error", err.Error()))
		} else {
			s.logger.Info("MCP server stopped gracefully")
		}
		return err
	default:
		return fmt.Errorf("unknown transport: %s (supported: stdio)", transport)
	}
}

// Close releases server resources.
func (s *Server) Close() error {
	return nil
}
