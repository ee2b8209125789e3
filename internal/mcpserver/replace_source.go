package mcpserver

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/askwiki/internal/docparse"
)

const maxDocumentSize = 50 << 20 // 50 MB

var mimeToFormat = map[string]docparse.Format{
	"text/html":             docparse.FormatHTML,
	"application/xhtml+xml": docparse.FormatHTML,
	"text/markdown":         docparse.FormatMarkdown,
	"text/x-markdown":       docparse.FormatMarkdown,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": docparse.FormatDOCX,
	"application/pdf": docparse.FormatPDF,
}

type replaceResult struct {
	Kind       string `json:"kind"`
	Generation int64  `json:"generation"`
	Entries    int    `json:"entries"`
	Warnings   int    `json:"warnings"`
}

func (s *Server) replaceSource(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	rawURL, err := req.RequireString("url")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var (
		data     []byte
		detected docparse.Format
	)
	if strings.HasPrefix(rawURL, "data:") {
		data, detected, err = decodeDataURI(rawURL)
	} else {
		data, detected, err = fetchHTTP(ctx, rawURL)
	}
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if len(data) > maxDocumentSize {
		return mcp.NewToolResultError(fmt.Sprintf("document too large: %d bytes (max %d)", len(data), maxDocumentSize)), nil
	}
	if want := s.svc.SourceFormat(); detected != "" && detected != want {
		return mcp.NewToolResultError(fmt.Sprintf("document is %s but the knowledge base expects %s", detected, want)), nil
	}

	ev, err := s.svc.ReplaceSource(ctx, data)
	if err != nil {
		return toolError(err), nil
	}
	out, _ := json.Marshal(replaceResult{
		Kind:       string(ev.Kind),
		Generation: ev.Generation,
		Entries:    ev.Entries,
		Warnings:   len(ev.Warnings),
	})
	return mcp.NewToolResultText(string(out)), nil
}

// decodeDataURI parses a data:[<mediatype>][;base64],<data> URI.
func decodeDataURI(uri string) ([]byte, docparse.Format, error) {
	rest := strings.TrimPrefix(uri, "data:")
	commaIdx := strings.Index(rest, ",")
	if commaIdx < 0 {
		return nil, "", fmt.Errorf("invalid data URI: missing comma separator")
	}

	meta := rest[:commaIdx]
	encoded := rest[commaIdx+1:]

	if !strings.Contains(meta, ";base64") {
		return nil, "", fmt.Errorf("only base64 data URIs are supported")
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		data, err = base64.RawStdEncoding.DecodeString(encoded)
		if err != nil {
			return nil, "", fmt.Errorf("invalid base64 data: %w", err)
		}
	}

	mime := strings.Split(strings.TrimSuffix(meta, ";base64"), ";")[0]
	if mime == "" {
		return data, "", nil
	}
	format, ok := mimeToFormat[mime]
	if !ok {
		return nil, "", fmt.Errorf("unsupported MIME type in data URI: %s", mime)
	}
	return data, format, nil
}

// fetchHTTP downloads a document from an HTTP/HTTPS URL with security checks.
func fetchHTTP(ctx context.Context, rawURL string) ([]byte, docparse.Format, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, "", fmt.Errorf("invalid URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, "", fmt.Errorf("unsupported scheme: %s (only http/https)", parsed.Scheme)
	}

	if err := checkBlockedHost(parsed.Hostname()); err != nil {
		return nil, "", err
	}

	client := &http.Client{
		Timeout: 30 * time.Second,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 5 {
				return fmt.Errorf("too many redirects (max 5)")
			}
			return checkBlockedHost(req.URL.Hostname())
		},
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("invalid URL: %w", err)
	}
	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, "", fmt.Errorf("download failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("download failed: HTTP %d", resp.StatusCode)
	}

	limited := io.LimitReader(resp.Body, maxDocumentSize+1)
	data, err := io.ReadAll(limited)
	if err != nil {
		return nil, "", fmt.Errorf("read body failed: %w", err)
	}
	if len(data) > maxDocumentSize {
		return nil, "", fmt.Errorf("document too large: exceeds %d bytes", maxDocumentSize)
	}

	ct := strings.TrimSpace(strings.Split(resp.Header.Get("Content-Type"), ";")[0])
	format := mimeToFormat[ct]
	if format == "" {
		// Servers often send octet-stream; fall back to the URL extension.
		format, _ = docparse.FormatFromName(parsed.Path)
	}
	return data, format, nil
}

// checkBlockedHost rejects loopback and cloud metadata addresses.
func checkBlockedHost(host string) error {
	if host == "metadata.google.internal" {
		return fmt.Errorf("blocked host: %s", host)
	}

	ip := net.ParseIP(host)
	if ip == nil {
		ips, lookupErr := net.LookupIP(host)
		if lookupErr != nil || len(ips) == 0 {
			return nil //nolint:nilerr // let http.Client handle DNS failures
		}
		ip = ips[0]
	}

	if ip.IsLoopback() {
		return fmt.Errorf("blocked host: loopback address %s", host)
	}
	// AWS/GCP/Azure metadata endpoint.
	if ip.Equal(net.ParseIP("169.254.169.254")) {
		return fmt.Errorf("blocked host: cloud metadata address %s", host)
	}
	return nil
}
