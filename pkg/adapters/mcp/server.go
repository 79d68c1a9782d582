// Package mcp exposes Steward to agents as a Model Context Protocol server.
//
// Tools: run_audit, validate_config, list_reports and get_report. Like the
// HTTP API it never converges: agents can inspect a host, not change it.
package mcp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aretw0/steward"
	"github.com/aretw0/steward/pkg/config"
	"github.com/aretw0/steward/pkg/domain"
	"github.com/aretw0/steward/pkg/ports"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// Engine defines what the MCP server needs from Steward.
type Engine interface {
	Audit(ctx context.Context, groups []domain.ControlGroup) (*domain.AuditRun, error)
}

// Server wraps the Steward Engine and exposes it as an MCP Server.
type Server struct {
	engine    Engine
	store     ports.ReportStore
	mcpServer *server.MCPServer
}

// NewServer creates a new MCP Server instance. store may be nil.
func NewServer(engine Engine, store ports.ReportStore) *Server {
	s := &Server{
		engine:    engine,
		store:     store,
		mcpServer: server.NewMCPServer("steward-mcp", strings.TrimSpace(steward.Version)),
	}
	s.registerTools()
	return s
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// MCPServer returns the underlying server, e.g. to mount it on another transport.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// DocumentArgs locate a config document: a path on the server host or an
// inline document.
type DocumentArgs struct {
	ConfigPath string `json:"config_path,omitempty"`
	Document   string `json:"document,omitempty"`
	Format     string `json:"format,omitempty"`
}

// AuditResponse is the result of run_audit.
type AuditResponse struct {
	Passed bool             `json:"passed" jsonschema_description:"True when every control passed"`
	Totals domain.Summary   `json:"totals" jsonschema_description:"Control counts across all groups"`
	Run    *domain.AuditRun `json:"run" jsonschema_description:"Per-assertion results"`
}

// ValidateResponse is the result of validate_config.
type ValidateResponse struct {
	Valid         bool   `json:"valid"`
	Error         string `json:"error,omitempty"`
	Field         string `json:"field,omitempty" jsonschema_description:"Location of the offending entry"`
	Resources     int    `json:"resources"`
	ControlGroups int    `json:"control_groups"`
	Assertions    int    `json:"assertions"`
}

// ReportSummary is one entry of list_reports.
type ReportSummary struct {
	ID        string         `json:"id"`
	Kind      domain.RunKind `json:"kind"`
	CreatedAt time.Time      `json:"created_at"`
	Passed    bool           `json:"passed"`
}

// ListResponse is the result of list_reports.
type ListResponse struct {
	Reports []ReportSummary `json:"reports"`
}

// GetReportArgs are the arguments of get_report.
type GetReportArgs struct {
	ID string `json:"id"`
}

func (s *Server) registerTools() {
	documentOpts := []mcp.ToolOption{
		mcp.WithString("config_path", mcp.Description("Path of a config file or cookbook directory on the host")),
		mcp.WithString("document", mcp.Description("Inline config document (used when config_path is empty)")),
		mcp.WithString("format", mcp.Description("Format of the inline document"), mcp.Enum("yaml", "json", "jsonc", "toml")),
	}

	// TOOL: run_audit
	auditTool := mcp.NewTool("run_audit", append([]mcp.ToolOption{
		mcp.WithDescription("Audit the host against the control groups of a config document. Never changes the host."),
		mcp.WithOutputSchema[AuditResponse](),
	}, documentOpts...)...)
	s.mcpServer.AddTool(auditTool, mcp.NewStructuredToolHandler(s.handleRunAudit))

	// TOOL: validate_config
	validateTool := mcp.NewTool("validate_config", append([]mcp.ToolOption{
		mcp.WithDescription("Parse and validate a config document without running it."),
		mcp.WithOutputSchema[ValidateResponse](),
	}, documentOpts...)...)
	s.mcpServer.AddTool(validateTool, mcp.NewStructuredToolHandler(s.handleValidate))

	// TOOL: list_reports
	s.mcpServer.AddTool(mcp.NewTool("list_reports",
		mcp.WithDescription("List stored converge and audit runs, oldest first."),
		mcp.WithOutputSchema[ListResponse](),
	), mcp.NewStructuredToolHandler(s.handleListReports))

	// TOOL: get_report
	s.mcpServer.AddTool(mcp.NewTool("get_report",
		mcp.WithDescription("Get one stored run by ID."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Run ID as returned by list_reports")),
		mcp.WithOutputSchema[domain.RunRecord](),
	), mcp.NewStructuredToolHandler(s.handleGetReport))
}

func (s *Server) handleRunAudit(ctx context.Context, _ mcp.CallToolRequest, args DocumentArgs) (AuditResponse, error) {
	doc, err := loadDocument(ctx, args)
	if err != nil {
		return AuditResponse{}, err
	}
	if len(doc.ControlGroups) == 0 {
		return AuditResponse{}, errors.New("document has no control_groups")
	}

	run, err := s.engine.Audit(ctx, doc.ControlGroups)
	if run == nil {
		return AuditResponse{}, fmt.Errorf("audit failed: %w", err)
	}
	// A store failure does not invalidate the results.
	return AuditResponse{Passed: run.Passed(), Totals: run.Totals(), Run: run}, nil
}

func (s *Server) handleValidate(ctx context.Context, _ mcp.CallToolRequest, args DocumentArgs) (ValidateResponse, error) {
	doc, err := loadDocument(ctx, args)
	if err != nil {
		var cpe *domain.ConfigParseError
		if !errors.As(err, &cpe) {
			return ValidateResponse{}, err
		}
		// An invalid document is a valid answer.
		return ValidateResponse{Valid: false, Error: err.Error(), Field: cpe.Field}, nil
	}
	return ValidateResponse{
		Valid:         true,
		Resources:     len(doc.Resources),
		ControlGroups: len(doc.ControlGroups),
		Assertions:    doc.AssertionCount(),
	}, nil
}

func (s *Server) handleListReports(ctx context.Context, _ mcp.CallToolRequest, _ map[string]any) (ListResponse, error) {
	resp := ListResponse{Reports: []ReportSummary{}}
	if s.store == nil {
		return resp, nil
	}
	ids, err := s.store.List(ctx)
	if err != nil {
		return ListResponse{}, fmt.Errorf("list failed: %w", err)
	}
	for _, id := range ids {
		rec, err := s.store.Load(ctx, id)
		if errors.Is(err, domain.ErrReportNotFound) {
			continue
		}
		if err != nil {
			return ListResponse{}, fmt.Errorf("load %s failed: %w", id, err)
		}
		resp.Reports = append(resp.Reports, ReportSummary{ID: rec.ID, Kind: rec.Kind, CreatedAt: rec.CreatedAt, Passed: rec.Passed()})
	}
	return resp, nil
}

func (s *Server) handleGetReport(ctx context.Context, _ mcp.CallToolRequest, args GetReportArgs) (domain.RunRecord, error) {
	if args.ID == "" {
		return domain.RunRecord{}, errors.New("id is required")
	}
	if s.store == nil {
		return domain.RunRecord{}, fmt.Errorf("report %s: %w", args.ID, domain.ErrReportNotFound)
	}
	rec, err := s.store.Load(ctx, args.ID)
	if err != nil {
		return domain.RunRecord{}, fmt.Errorf("report %s: %w", args.ID, err)
	}
	return *rec, nil
}

func loadDocument(ctx context.Context, args DocumentArgs) (*config.Document, error) {
	if args.ConfigPath != "" {
		return steward.LoadDocument(ctx, args.ConfigPath)
	}
	if args.Document == "" {
		return nil, errors.New("either config_path or document is required")
	}
	format := config.FormatYAML
	if args.Format != "" {
		format = config.Format(strings.ToLower(args.Format))
	}
	return config.Parse([]byte(args.Document), format)
}
