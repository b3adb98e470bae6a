package functions

import (
	"fmt"

	"github.com/zgsm-ai/chat-proxy/internal/config"
	"github.com/zgsm-ai/chat-proxy/internal/logger"
	"github.com/zgsm-ai/chat-proxy/internal/types"
	"go.uber.org/zap"
)

// ToolManager holds the compiled tool catalog in catalog order
type ToolManager struct {
	tools   map[string]*Tool
	ordered []*Tool
}

// NewToolManager compiles every catalog entry. Unknown tool names are
// rejected so the catalog can never advertise a tool that cannot run.
func NewToolManager(specs []config.ToolSpec) (*ToolManager, error) {
	tm := &ToolManager{tools: make(map[string]*Tool, len(specs))}
	for _, spec := range specs {
		tool, err := newTool(spec)
		if err != nil {
			return nil, err
		}
		tm.tools[spec.Name] = tool
		tm.ordered = append(tm.ordered, tool)
		logger.Info("Loaded tool", zap.String("name", spec.Name))
	}
	return tm, nil
}

// LoadToolManager reads the catalog file, or the built-in one when path is empty
func LoadToolManager(path string) (*ToolManager, error) {
	specs, err := config.LoadToolCatalog(path)
	if err != nil {
		return nil, err
	}
	return NewToolManager(specs)
}

func (m *ToolManager) Lookup(name string) (*Tool, error) {
	tool, ok := m.tools[name]
	if !ok {
		return nil, fmt.Errorf("unknown tool %q", name)
	}
	return tool, nil
}

// Definitions returns the catalog as sent upstream
func (m *ToolManager) Definitions() []types.Function {
	defs := make([]types.Function, 0, len(m.ordered))
	for _, t := range m.ordered {
		defs = append(defs, t.ToFunctionDefinition())
	}
	return defs
}
