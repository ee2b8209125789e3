// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes knowledge base tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/askwiki/internal/apperr"
	"github.com/starford/askwiki/internal/kbservice"
)

const contentsURI = "askwiki://contents"

// Server wraps the MCP server with knowledge base tools.
type Server struct {
	mcp *server.MCPServer
	svc *kbservice.Service
}

// New creates a new MCP server with all tools registered.
func New(svc *kbservice.Service, version string) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"askwiki",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("ask_knowledge_base",
		mcp.WithDescription("Answer a support question with the single most relevant knowledge base entry. "+
			"Returns found=false when nothing scores above the threshold."),
		mcp.WithString("question", mcp.Required(), mcp.Description("Free-text question")),
		mcp.WithNumber("threshold", mcp.Description("Minimum relevance score in [0, 1]; defaults to the server setting")),
	), s.ask)

	s.mcp.AddTool(mcp.NewTool("search_entries",
		mcp.WithDescription("Rank knowledge base entries that share words with the query."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of results (default 10)")),
	), s.search)

	s.mcp.AddTool(mcp.NewTool("get_entry",
		mcp.WithDescription("Read the full title and body of a knowledge base entry."),
		mcp.WithNumber("id", mcp.Required(), mcp.Description("Entry id as returned by search_entries or list_entries")),
	), s.getEntry)

	s.mcp.AddTool(mcp.NewTool("list_entries",
		mcp.WithDescription("List every entry of the knowledge base as id and title."),
	), s.listEntries)

	s.mcp.AddTool(mcp.NewTool("reload_knowledge_base",
		mcp.WithDescription("Rebuild the knowledge base from its source document."),
		mcp.WithBoolean("force", mcp.Description("Rebuild even when the document is unchanged")),
	), s.reload)

	s.mcp.AddTool(mcp.NewTool("replace_knowledge_base",
		mcp.WithDescription("Replace the source document and rebuild. Accepts an http(s) URL of a wiki export "+
			"or a base64 data URI."),
		mcp.WithString("url", mcp.Required(), mcp.Description("http(s) URL or data:<mime>;base64,<data> URI")),
	), s.replaceSource)

	s.mcp.AddResource(
		mcp.NewResource(contentsURI, "Knowledge Base Contents",
			mcp.WithResourceDescription("Table of contents of the active knowledge base."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readContentsResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func toolError(err error) *mcp.CallToolResult {
	switch {
	case errors.Is(err, apperr.ErrUnavailable):
		return mcp.NewToolResultError(kbservice.ReplyUnavailable)
	case errors.Is(err, apperr.ErrNotFound):
		return mcp.NewToolResultError("not found")
	}
	return mcp.NewToolResultError(err.Error())
}

func jsonResult(v any) *mcp.CallToolResult {
	out, _ := json.MarshalIndent(v, "", "  ")
	return mcp.NewToolResultText(string(out))
}

func (s *Server) ask(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	question, err := req.RequireString("question")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	var threshold *float64
	if _, ok := req.GetArguments()["threshold"]; ok {
		v, err := req.RequireFloat("threshold")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		threshold = &v
	}
	answer, err := s.svc.Ask(ctx, question, threshold)
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(answer), nil
}

func (s *Server) search(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	hits, err := s.svc.Search(ctx, query, req.GetInt("limit", 10))
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(hits), nil
}

func (s *Server) getEntry(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireInt("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	e, err := s.svc.GetEntry(ctx, id)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return mcp.NewToolResultError(fmt.Sprintf("entry not found: %d", id)), nil
		}
		return toolError(err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("# %s\n\n%s", e.Title, e.Body)), nil
}

func (s *Server) listEntries(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	entries, err := s.svc.ListEntries(ctx)
	if err != nil {
		return toolError(err), nil
	}
	lines := make([]string, len(entries))
	for i, e := range entries {
		lines[i] = fmt.Sprintf("%d\t%s", e.ID, e.Title)
	}
	return mcp.NewToolResultText(strings.Join(lines, "\n")), nil
}

func (s *Server) reload(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ev, err := s.svc.Reload(ctx, req.GetBool("force", false))
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(ev), nil
}

func (s *Server) readContentsResource(ctx context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	text, err := s.contents(ctx)
	if err != nil {
		return nil, err
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      contentsURI,
			MIMEType: "text/markdown",
			Text:     text,
		},
	}, nil
}

// contents renders the table of contents as Markdown.
func (s *Server) contents(ctx context.Context) (string, error) {
	entries, err := s.svc.ListEntries(ctx)
	if err != nil {
		return "", err
	}
	st := s.svc.Status(ctx)

	var b strings.Builder
	title := st.Title
	if title == "" {
		title = "Knowledge Base"
	}
	fmt.Fprintf(&b, "# %s\n\n", title)
	fmt.Fprintf(&b, "%d entries, generation %d.\n\n", len(entries), st.Generation)
	for _, e := range entries {
		fmt.Fprintf(&b, "- [%d] %s\n", e.ID, e.Title)
	}
	return b.String(), nil
}
