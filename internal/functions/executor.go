package functions

import (
	"context"
	"fmt"

	"github.com/zgsm-ai/chat-proxy/internal/logger"
	"github.com/zgsm-ai/chat-proxy/internal/types"
	"go.uber.org/zap"
)

// ToolExecutor runs tool calls requested by the model
type ToolExecutor interface {
	// Definitions returns the tool catalog advertised upstream
	Definitions() []types.Function
	// Execute runs one tool call and returns the text handed back to the model.
	// For dalle the text is the image reference itself.
	Execute(ctx context.Context, call types.ToolCall) (string, error)
}

// Searcher runs web searches
type Searcher interface {
	Search(ctx context.Context, query string, maxResults int) (string, error)
}

// Fetcher reads a web page
type Fetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// ImageGenerator creates an image and returns a data URI or URL
type ImageGenerator interface {
	Generate(ctx context.Context, prompt, size string) (string, error)
}

// Backends are the collaborators behind each tool kind
type Backends struct {
	Search Searcher
	Fetch  Fetcher
	Image  ImageGenerator
}

// GenericToolExecutor validates arguments against the catalog schema and
// dispatches on the tool kind
type GenericToolExecutor struct {
	manager  *ToolManager
	backends Backends
}

func NewGenericToolExecutor(manager *ToolManager, backends Backends) *GenericToolExecutor {
	return &GenericToolExecutor{manager: manager, backends: backends}
}

func (e *GenericToolExecutor) Definitions() []types.Function {
	return e.manager.Definitions()
}

func (e *GenericToolExecutor) Execute(ctx context.Context, call types.ToolCall) (string, error) {
	name := call.Function.Name
	tool, err := e.manager.Lookup(name)
	if err != nil {
		return "", &types.ToolExecutionError{Tool: name, Err: err}
	}
	if err := tool.ValidateArguments(call.Function.Arguments); err != nil {
		return "", &types.ToolExecutionError{Tool: name, Err: err}
	}

	logger.InfoC(ctx, "Calling tool",
		zap.String("tool", name),
		zap.String("arguments", call.Function.Arguments),
	)

	result, err := e.dispatch(ctx, tool.Kind, call.Function.Arguments)
	if err != nil {
		return "", &types.ToolExecutionError{Tool: name, Err: err}
	}
	return result, nil
}

func (e *GenericToolExecutor) dispatch(ctx context.Context, kind ToolKind, arguments string) (string, error) {
	switch kind {
	case KindDalle:
		if e.backends.Image == nil {
			return "", fmt.Errorf("image generation is not configured")
		}
		args, err := ParseDalleArgs(arguments)
		if err != nil {
			return "", err
		}
		return e.backends.Image.Generate(ctx, args.Prompt, args.Size)

	case KindBrowserSearch:
		if e.backends.Search == nil {
			return "", fmt.Errorf("web search is not configured")
		}
		args, err := ParseSearchArgs(arguments)
		if err != nil {
			return "", err
		}
		return e.backends.Search.Search(ctx, args.Query, args.MaxResults)

	case KindOpenURL:
		if e.backends.Fetch == nil {
			return "", fmt.Errorf("page fetching is not configured")
		}
		args, err := ParseOpenURLArgs(arguments)
		if err != nil {
			return "", err
		}
		return e.backends.Fetch.Fetch(ctx, args.URL)

	default:
		return "", fmt.Errorf("no backend for %s", kind)
	}
}
