package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
)

// WebFetchTool is the runtime's one built-in tool: it fetches a URL and
// hands the agent back either plain text or Markdown, so a turn can pull
// grounded external context without a dedicated browser or MCP
// collaborator. It declares CapabilityNetwork but not requiresApproval —
// the approval decision for any tool, this one included, is a policy
// concern of the caller (see orchestrator.ApprovalPolicy),
// not something a tool hardcodes about itself.
type WebFetchTool struct {
	*BaseTool
	client      *http.Client
	maxBodySize int64
}

// WebFetchRequest is the input schema for WebFetchTool.
type WebFetchRequest struct {
	URL     string `json:"url"`
	Format  string `json:"format"`
	Timeout int    `json:"timeout,omitempty"`
}

// WebFetchResponse is the result handed back to the model.
type WebFetchResponse struct {
	Success   bool   `json:"success"`
	Content   string `json:"content"`
	URL       string `json:"url"`
	Format    string `json:"format"`
	Size      int64  `json:"size"`
	Truncated bool   `json:"truncated"`
	Error     string `json:"error,omitempty"`
}

// NewWebFetchTool builds the fetch tool with a body-size cap (bytes);
// maxBodySize <= 0 falls back to 5 MiB.
func NewWebFetchTool(maxBodySize int64) *WebFetchTool {
	if maxBodySize <= 0 {
		maxBodySize = 5 * 1024 * 1024
	}

	toolSchema := CreateToolSchema(
		"Fetch a URL and return its content as plain text or Markdown",
		map[string]interface{}{
			"url": StringProperty("The URL to fetch, must start with http:// or https://"),
			"format": map[string]interface{}{
				"type":        "string",
				"description": "Output format: text (plain text) or markdown (converted from HTML)",
				"enum":        []string{"text", "markdown"},
			},
			"timeout": NumberProperty("Optional timeout in seconds (max 120, default 30)"),
		},
		[]string{"url", "format"},
	)

	base := NewBaseTool("web_fetch", "Fetch and convert web page content for use in a conversation", toolSchema).
		WithCapabilities(CapabilityNetwork)

	return &WebFetchTool{
		BaseTool: base,
		client: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		maxBodySize: maxBodySize,
	}
}

func (t *WebFetchTool) Execute(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
	var req WebFetchRequest
	if err := json.Unmarshal(input, &req); err != nil {
		return t.errorResponse("failed to parse fetch parameters: " + err.Error())
	}

	if req.URL == "" {
		return t.errorResponse("url parameter is required")
	}
	if !strings.HasPrefix(req.URL, "http://") && !strings.HasPrefix(req.URL, "https://") {
		return t.errorResponse("url must start with http:// or https://")
	}

	format := strings.ToLower(req.Format)
	if format != "text" && format != "markdown" {
		return t.errorResponse("format must be one of: text, markdown")
	}

	reqCtx := ctx
	client := t.client
	if req.Timeout > 0 {
		const maxTimeout = 120
		if req.Timeout > maxTimeout {
			req.Timeout = maxTimeout
		}
		var cancel context.CancelFunc
		reqCtx, cancel = context.WithTimeout(ctx, time.Duration(req.Timeout)*time.Second)
		defer cancel()
		// The shared client's 30s Timeout is the default; a per-call
		// timeout replaces it rather than being capped by it.
		perCall := *t.client
		perCall.Timeout = 0
		client = &perCall
	}

	httpReq, err := http.NewRequestWithContext(reqCtx, http.MethodGet, req.URL, nil)
	if err != nil {
		return t.errorResponse(fmt.Sprintf("failed to create request: %v", err))
	}
	httpReq.Header.Set("User-Agent", "mas-webfetch/1.0")

	resp, err := client.Do(httpReq)
	if err != nil {
		return t.errorResponse(fmt.Sprintf("failed to fetch url: %v", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return t.errorResponse(fmt.Sprintf("request failed with status code: %d", resp.StatusCode))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, t.maxBodySize))
	if err != nil {
		return t.errorResponse(fmt.Sprintf("failed to read response body: %v", err))
	}

	content := string(body)
	if !utf8.ValidString(content) {
		return t.errorResponse("response content is not valid utf-8")
	}

	isHTML := strings.Contains(resp.Header.Get("Content-Type"), "text/html")
	switch {
	case format == "text" && isHTML:
		text, err := extractTextFromHTML(content)
		if err != nil {
			return t.errorResponse(fmt.Sprintf("failed to extract text from html: %v", err))
		}
		content = text
	case format == "markdown" && isHTML:
		markdown, err := convertHTMLToMarkdown(content)
		if err != nil {
			return t.errorResponse(fmt.Sprintf("failed to convert html to markdown: %v", err))
		}
		content = markdown
	}

	truncated := false
	size := int64(len(content))
	if size > t.maxBodySize {
		content = content[:t.maxBodySize]
		content += fmt.Sprintf("\n\n[content truncated to %d bytes]", t.maxBodySize)
		truncated = true
	}

	return json.Marshal(WebFetchResponse{
		Success:   true,
		Content:   content,
		URL:       req.URL,
		Format:    format,
		Size:      size,
		Truncated: truncated,
	})
}

// ExecuteAsync overrides BaseTool's default, which would otherwise call
// BaseTool.Execute rather than WebFetchTool.Execute: Go embedding doesn't
// give BaseTool a virtual dispatch back to the outer type.
func (t *WebFetchTool) ExecuteAsync(ctx context.Context, input json.RawMessage) (<-chan ToolResult, error) {
	resultChan := make(chan ToolResult, 1)
	go func() {
		defer close(resultChan)
		result, err := t.Execute(ctx, input)
		if err != nil {
			resultChan <- ToolResult{Success: false, Error: err.Error()}
			return
		}
		resultChan <- ToolResult{Success: true, Data: result}
	}()
	return resultChan, nil
}

func (t *WebFetchTool) errorResponse(msg string) (json.RawMessage, error) {
	return json.Marshal(WebFetchResponse{Success: false, Error: msg})
}

func extractTextFromHTML(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", err
	}
	text := doc.Find("body").Text()
	return strings.Join(strings.Fields(text), " "), nil
}

func convertHTMLToMarkdown(html string) (string, error) {
	converter := md.NewConverter("", true, nil)
	return converter.ConvertString(html)
}
