package toolbridge

import (
	"bytes"
	"encoding/json"
	"fmt"
)

const (
	JSONRPCVersion = "2.0"

	MethodToolsCall     = "tools/call"
	ToolAddIssueComment = "add_issue_comment"
)

// Request is a JSON-RPC 2.0 request. Field order is the wire order.
type Request struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
	ID      int64  `json:"id"`
}

// ToolCallParams are the params of a tools/call request.
type ToolCallParams struct {
	Name      string `json:"name"`
	Arguments any    `json:"arguments"`
}

// CommentArguments are the arguments of the add_issue_comment tool.
type CommentArguments struct {
	Owner       string `json:"owner"`
	Repo        string `json:"repo"`
	IssueNumber int    `json:"issue_number"`
	Body        string `json:"body"`
}

// Response is the JSON-RPC 2.0 envelope a tool server normally replies with.
// Call never requires this shape; DecodeResponse is a convenience for callers.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// RPCError is a JSON-RPC 2.0 error object.
type RPCError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// ToolResult is the result of a tools/call.
type ToolResult struct {
	Content []ContentItem `json:"content"`
	IsError bool          `json:"isError,omitempty"`
}

// ContentItem is one piece of tool output.
type ContentItem struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// EncodeLine serializes req as one line of JSON terminated by '\n'. String
// values containing newlines are escaped, so the result never spans lines.
func EncodeLine(req Request) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(req); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeResponse parses raw as a JSON-RPC envelope.
func DecodeResponse(raw json.RawMessage) (Response, error) {
	var resp Response
	if err := json.Unmarshal(raw, &resp); err != nil {
		return Response{}, fmt.Errorf("decode response envelope: %w", err)
	}
	return resp, nil
}

// ToolResult decodes the result member as a tools/call result. ok is false
// when the result is absent or has a different shape.
func (r Response) ToolResult() (ToolResult, bool) {
	if len(r.Result) == 0 {
		return ToolResult{}, false
	}
	var tr ToolResult
	if err := json.Unmarshal(r.Result, &tr); err != nil {
		return ToolResult{}, false
	}
	return tr, true
}

// Text joins the text content items of a tool result.
func (tr ToolResult) Text() string {
	var buf bytes.Buffer
	for _, item := range tr.Content {
		if item.Type != "text" || item.Text == "" {
			continue
		}
		if buf.Len() > 0 {
			buf.WriteByte('\n')
		}
		buf.WriteString(item.Text)
	}
	return buf.String()
}
