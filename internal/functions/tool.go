package functions

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/zgsm-ai/chat-proxy/internal/config"
	"github.com/zgsm-ai/chat-proxy/internal/types"
)

// ToolKind enumerates the tools the proxy can execute
type ToolKind int

const (
	KindDalle ToolKind = iota + 1
	KindBrowserSearch
	KindOpenURL
)

const (
	DalleToolName         = "dalle"
	BrowserSearchToolName = "browser_search"
	OpenURLToolName       = "open_url"

	DefaultImageSize = "1024x1024"
)

// ParseToolKind maps a tool name from the model onto a ToolKind
func ParseToolKind(name string) (ToolKind, bool) {
	switch name {
	case DalleToolName:
		return KindDalle, true
	case BrowserSearchToolName:
		return KindBrowserSearch, true
	case OpenURLToolName:
		return KindOpenURL, true
	default:
		return 0, false
	}
}

func (k ToolKind) String() string {
	switch k {
	case KindDalle:
		return DalleToolName
	case KindBrowserSearch:
		return BrowserSearchToolName
	case KindOpenURL:
		return OpenURLToolName
	default:
		return fmt.Sprintf("ToolKind(%d)", int(k))
	}
}

// Tool is one catalog entry bound to a supported kind
type Tool struct {
	Kind   ToolKind
	Spec   config.ToolSpec
	params json.RawMessage
	schema *jsonschema.Schema
}

func newTool(spec config.ToolSpec) (*Tool, error) {
	kind, ok := ParseToolKind(spec.Name)
	if !ok {
		return nil, fmt.Errorf("tool %q is not supported", spec.Name)
	}
	params, err := spec.ParametersJSON()
	if err != nil {
		return nil, err
	}

	url := "mem://tools/" + spec.Name + ".json"
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(url, bytes.NewReader(params)); err != nil {
		return nil, fmt.Errorf("tool %s: load schema: %w", spec.Name, err)
	}
	schema, err := compiler.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("tool %s: compile schema: %w", spec.Name, err)
	}
	return &Tool{Kind: kind, Spec: spec, params: params, schema: schema}, nil
}

// ToFunctionDefinition returns the entry advertised to the model
func (t *Tool) ToFunctionDefinition() types.Function {
	return types.Function{
		Type: "function",
		Function: types.FunctionDefinition{
			Name:        t.Spec.Name,
			Description: t.Spec.Description,
			Parameters:  t.params,
		},
	}
}

// ValidateArguments checks the model-supplied JSON arguments against the schema
func (t *Tool) ValidateArguments(arguments string) error {
	if arguments == "" {
		arguments = "{}"
	}
	var v any
	if err := json.Unmarshal([]byte(arguments), &v); err != nil {
		return fmt.Errorf("arguments are not valid JSON: %w", err)
	}
	if err := t.schema.Validate(v); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	return nil
}

type DalleArgs struct {
	Prompt string `json:"prompt"`
	Size   string `json:"size"`
}

type SearchArgs struct {
	Query      string `json:"query"`
	MaxResults int    `json:"max_results"`
}

type OpenURLArgs struct {
	URL string `json:"url"`
}

// ParseDalleArgs decodes dalle arguments, defaulting the size
func ParseDalleArgs(arguments string) (DalleArgs, error) {
	var args DalleArgs
	if err := json.Unmarshal([]byte(arguments), &args); err != nil {
		return DalleArgs{Size: DefaultImageSize}, err
	}
	if args.Size == "" {
		args.Size = DefaultImageSize
	}
	return args, nil
}

func ParseSearchArgs(arguments string) (SearchArgs, error) {
	var args SearchArgs
	err := json.Unmarshal([]byte(arguments), &args)
	return args, err
}

func ParseOpenURLArgs(arguments string) (OpenURLArgs, error) {
	var args OpenURLArgs
	err := json.Unmarshal([]byte(arguments), &args)
	return args, err
}
