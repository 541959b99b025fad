// Package jsonrpc holds the JSON-RPC 2.0 envelope shared by the candidate
// client and the protocol executor.
package jsonrpc

import (
	"encoding/json"
	"fmt"
)

// Version is the only protocol version accepted.
const Version = "2.0"

// Standard and server-defined error codes.
const (
	ParseError     = -32700
	InvalidRequest = -32600
	MethodNotFound = -32601
	InvalidParams  = -32602
	InternalError  = -32603
	ServerError    = -32000
)

// Request is a JSON-RPC 2.0 request. Params stay raw until the handler
// knows which shape to decode.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      any             `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// Response is a JSON-RPC 2.0 response.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      any             `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// RPCError is a JSON-RPC 2.0 error object.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func (e *RPCError) Error() string {
	if e.Data != nil {
		return fmt.Sprintf("JSON-RPC error %d: %s (data: %v)", e.Code, e.Message, e.Data)
	}
	return fmt.Sprintf("JSON-RPC error %d: %s", e.Code, e.Message)
}

// NewRequest builds a request, encoding params.
func NewRequest(id any, method string, params any) (*Request, error) {
	req := &Request{JSONRPC: Version, ID: id, Method: method}
	if params != nil {
		raw, err := json.Marshal(params)
		if err != nil {
			return nil, fmt.Errorf("encode %s params: %w", method, err)
		}
		req.Params = raw
	}
	return req, nil
}

// NewResponse builds a success response, encoding result.
func NewResponse(id any, result any) (*Response, error) {
	raw, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("encode result: %w", err)
	}
	return &Response{JSONRPC: Version, ID: id, Result: raw}, nil
}

// NewErrorResponse builds an error response.
func NewErrorResponse(id any, code int, message string, data any) *Response {
	return &Response{
		JSONRPC: Version,
		ID:      id,
		Error:   &RPCError{Code: code, Message: message, Data: data},
	}
}

// UnmarshalRequest parses and version-checks a request.
func UnmarshalRequest(data []byte) (*Request, error) {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, &RPCError{Code: ParseError, Message: "Failed to parse JSON-RPC request", Data: err.Error()}
	}
	if req.JSONRPC != Version {
		return nil, &RPCError{Code: InvalidRequest, Message: fmt.Sprintf("Invalid JSON-RPC version: %s", req.JSONRPC)}
	}
	if req.Method == "" {
		return nil, &RPCError{Code: InvalidRequest, Message: "Missing method"}
	}
	return &req, nil
}

// UnmarshalResponse parses and version-checks a response.
func UnmarshalResponse(data []byte) (*Response, error) {
	var resp Response
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, &RPCError{Code: ParseError, Message: "Failed to parse JSON-RPC response", Data: err.Error()}
	}
	if resp.JSONRPC != Version {
		return nil, &RPCError{Code: InvalidRequest, Message: fmt.Sprintf("Invalid JSON-RPC version: %s", resp.JSONRPC)}
	}
	return &resp, nil
}

// DecodeParams unmarshals the request params into v.
func (r *Request) DecodeParams(v any) error {
	if len(r.Params) == 0 {
		return &RPCError{Code: InvalidParams, Message: "Missing params"}
	}
	if err := json.Unmarshal(r.Params, v); err != nil {
		return &RPCError{Code: InvalidParams, Message: "Invalid params", Data: err.Error()}
	}
	return nil
}

// IsNotification reports whether the request carries no id.
func (r *Request) IsNotification() bool {
	return r.ID == nil
}

// IsError reports whether the response carries an error.
func (r *Response) IsError() bool {
	return r.Error != nil
}
