// Package mcp implements the Model Context Protocol (MCP) server for ScriptRAg.
package mcp

import (
	"context"
	"errors"
	"fmt"

	screrrors "github.com/trieloff/scriptrag/internal/errors"
)

// Custom MCP error codes for ScriptRAG.
const (
	// ErrCodeScriptNotFound indicates no script/index exists for the project.
	ErrCodeScriptNotFound = -32001

	// ErrCodeEmbeddingFailed indicates embedding generation failed.
	ErrCodeEmbeddingFailed = -32002

	// ErrCodeTimeout indicates the request timed out.
	ErrCodeTimeout = -32003

	// ErrCodeFileNotFound indicates a file no longer exists on disk.
	ErrCodeFileNotFound = -32004

	// ErrCodeFileTooLarge indicates a file is too large to process.
	ErrCodeFileTooLarge = -32005

	// ErrCodeSceneNotFound indicates the requested scene does not exist.
	ErrCodeSceneNotFound = -32006

	// ErrCodeSessionInvalid indicates an unknown or expired session token.
	ErrCodeSessionInvalid = -32007

	// ErrCodeConcurrentModification indicates an optimistic-concurrency conflict.
	ErrCodeConcurrentModification = -32008

	// Standard JSON-RPC error codes.
	ErrCodeInvalidRequest = -32600
	ErrCodeMethodNotFound = -32601
	ErrCodeInvalidParams  = -32602
	ErrCodeInternalError  = -32603
)

// Sentinel errors for internal use.
var (
	// ErrScriptNotFound indicates no script index exists for the project.
	ErrScriptNotFound = errors.New("script not found")

	// ErrEmbeddingFailed indicates embedding generation failed.
	ErrEmbeddingFailed = errors.New("embedding generation failed")

	// ErrFileTooLarge indicates a file is too large to process.
	ErrFileTooLarge = errors.New("file too large")

	// ErrToolNotFound indicates the requested tool does not exist.
	ErrToolNotFound = errors.New("tool not found")

	// ErrInvalidParams indicates invalid parameters were provided.
	ErrInvalidParams = errors.New("invalid parameters")

	// ErrResourceNotFound indicates the requested resource does not exist.
	ErrResourceNotFound = errors.New("resource not found")
)

// MCPError represents an MCP protocol error with code and message.
type MCPError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// MapError converts internal errors to MCP errors.
// It maps known error types to appropriate MCP error codes and messages.
func MapError(err error) *MCPError {
	if err == nil {
		return nil
	}

	// Check for ScriptError first
	var scriptErr *screrrors.ScriptError
	if errors.As(err, &scriptErr) {
		return mapScriptError(scriptErr)
	}

	switch {
	case errors.Is(err, ErrScriptNotFound):
		return &MCPError{
			Code:    ErrCodeScriptNotFound,
			Message: "Script not found. Run 'scriptrag index' first.",
		}
	case errors.Is(err, ErrEmbeddingFailed):
		return &MCPError{
			Code:    ErrCodeEmbeddingFailed,
			Message: "Embedding generation failed. Using full-text results only.",
		}
	case errors.Is(err, context.DeadlineExceeded):
		return &MCPError{
			Code:    ErrCodeTimeout,
			Message: "Request timed out.",
		}
	case errors.Is(err, context.Canceled):
		return &MCPError{
			Code:    ErrCodeTimeout,
			Message: "Request was canceled.",
		}
	case errors.Is(err, ErrFileTooLarge):
		return &MCPError{
			Code:    ErrCodeFileTooLarge,
			Message: "File is too large to process.",
		}
	case errors.Is(err, ErrToolNotFound):
		return &MCPError{
			Code:    ErrCodeMethodNotFound,
			Message: "Tool not found.",
		}
	case errors.Is(err, ErrInvalidParams):
		return &MCPError{
			Code:    ErrCodeInvalidParams,
			Message: "Invalid parameters.",
		}
	case errors.Is(err, ErrResourceNotFound):
		return &MCPError{
			Code:    ErrCodeMethodNotFound,
			Message: "Resource not found.",
		}
	default:
		return &MCPError{
			Code:    ErrCodeInternalError,
			Message: "Internal server error.",
		}
	}
}

// NewInvalidParamsError creates an error for invalid parameters with a custom message.
func NewInvalidParamsError(msg string) *MCPError {
	return &MCPError{
		Code:    ErrCodeInvalidParams,
		Message: msg,
	}
}

// NewMethodNotFoundError creates an error for unknown methods/tools.
func NewMethodNotFoundError(name string) *MCPError {
	return &MCPError{
		Code:    ErrCodeMethodNotFound,
		Message: fmt.Sprintf("Tool '%s' not found.", name),
	}
}

// NewResourceNotFoundError creates an error for unknown resources.
func NewResourceNotFoundError(uri string) *MCPError {
	return &MCPError{
		Code:    ErrCodeMethodNotFound,
		Message: fmt.Sprintf("Resource '%s' not found.", uri),
	}
}

// mapScriptError converts a ScriptError to an MCPError.
func mapScriptError(se *screrrors.ScriptError) *MCPError {
	// Build message with suggestion if available
	message := se.Message
	if se.Suggestion != "" {
		message = fmt.Sprintf("%s %s", se.Message, se.Suggestion)
	}

	switch se.Code {
	case screrrors.ErrCodeSceneNotFound:
		return &MCPError{Code: ErrCodeSceneNotFound, Message: message}
	case screrrors.ErrCodeSessionInvalid:
		return &MCPError{Code: ErrCodeSessionInvalid, Message: message}
	case screrrors.ErrCodeConcurrentModified:
		return &MCPError{Code: ErrCodeConcurrentModification, Message: message}
	case screrrors.ErrCodeDatabaseNotFound:
		return &MCPError{Code: ErrCodeScriptNotFound, Message: message}
	case screrrors.ErrCodeFileNotFound:
		return &MCPError{Code: ErrCodeFileNotFound, Message: message}
	case screrrors.ErrCodeFileTooLarge:
		return &MCPError{Code: ErrCodeFileTooLarge, Message: message}
	}

	switch se.Category {
	case screrrors.CategoryConfig:
		return &MCPError{Code: ErrCodeInternalError, Message: message}
	case screrrors.CategoryNetwork:
		return &MCPError{Code: ErrCodeTimeout, Message: message}
	case screrrors.CategoryValidation:
		return &MCPError{Code: ErrCodeInvalidParams, Message: message}
	default: // CategoryInternal, CategoryIO and unknown
		return &MCPError{Code: ErrCodeInternalError, Message: message}
	}
}
