package tool

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dop251/goja"
)

var _ Tool = new(scriptTool)

// scriptTool runs javascript with $ bound to args.input; the output is whatever the script leaves in $.
type scriptTool struct{}

func NewScriptTool() *scriptTool {
	return &scriptTool{}
}

func (s *scriptTool) Call(ctx context.Context, args map[string]any) (map[string]any, error) {
	script, ok := args["script"].(string)
	if !ok || len(script) == 0 {
		return nil, fmt.Errorf("script can not be empty")
	}
	input := args["input"]
	if input == nil {
		input = map[string]any{}
	}
	data, err := json.Marshal(input)
	if err != nil {
		return nil, err
	}
	vm := goja.New()
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			vm.Interrupt(ctx.Err())
		case <-done:
		}
	}()
	expression := fmt.Sprintf("var $ = %s;\n%s", data, script)
	if _, err := vm.RunString(expression); err != nil {
		return nil, fmt.Errorf("error executing javascript %w", err)
	}
	val := vm.Get("$")
	if val == nil {
		return map[string]any{}, nil
	}
	res, err := json.Marshal(val.Export())
	if err != nil {
		return nil, err
	}
	var output map[string]any
	if err := json.Unmarshal(res, &output); err != nil {
		return map[string]any{"result": val.Export()}, nil
	}
	return output, nil
}
