package tool

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRegistry(t *testing.T) {
	r := NewDefaultRegistry()
	_, err := r.Get(SCRIPT_TOOL)
	require.NoError(t, err)
	_, err = r.Get("missing")
	require.Error(t, err)

	r.Register("echo", ToolFunc(func(ctx context.Context, args map[string]any) (map[string]any, error) {
		return args, nil
	}))
	echo, err := r.Get("echo")
	require.NoError(t, err)
	out, err := echo.Call(context.Background(), map[string]any{"a": 1})
	require.NoError(t, err)
	require.Equal(t, 1, out["a"])
}

func TestScriptTool(t *testing.T) {
	for scenario, fn := range map[string]func(t *testing.T, tool *scriptTool){
		"script mutates input": func(t *testing.T, tool *scriptTool) {
			out, err := tool.Call(context.Background(), map[string]any{
				"script": "$.total = $.price * $.qty;",
				"input":  map[string]any{"price": 2, "qty": 3},
			})
			require.NoError(t, err)
			require.Equal(t, float64(6), out["total"])
		},
		"non object result is wrapped": func(t *testing.T, tool *scriptTool) {
			out, err := tool.Call(context.Background(), map[string]any{"script": "$ = 42;"})
			require.NoError(t, err)
			require.EqualValues(t, 42, out["result"])
		},
		"syntax error": func(t *testing.T, tool *scriptTool) {
			_, err := tool.Call(context.Background(), map[string]any{"script": "$.x = ;"})
			require.Error(t, err)
		},
		"empty script": func(t *testing.T, tool *scriptTool) {
			_, err := tool.Call(context.Background(), map[string]any{})
			require.Error(t, err)
		},
		"cancelled context interrupts": func(t *testing.T, tool *scriptTool) {
			ctx, cancel := context.WithCancel(context.Background())
			cancel()
			_, err := tool.Call(ctx, map[string]any{"script": "while (true) {}"})
			require.Error(t, err)
		},
	} {
		t.Run(scenario, func(t *testing.T) {
			fn(t, NewScriptTool())
		})
	}
}

func TestWebhookTool(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/fail" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"orderId": body["id"], "token": r.Header.Get("X-Token")})
	}))
	defer srv.Close()

	tool := NewWebhookTool(srv.Client())
	out, err := tool.Call(context.Background(), map[string]any{
		"url":     srv.URL,
		"body":    map[string]any{"id": "o-1"},
		"headers": map[string]any{"X-Token": "t"},
	})
	require.NoError(t, err)
	require.Equal(t, "o-1", out["orderId"])
	require.Equal(t, "t", out["token"])
	require.Equal(t, http.StatusOK, out["status"])

	_, err = tool.Call(context.Background(), map[string]any{"url": srv.URL + "/fail"})
	require.Error(t, err)
	_, err = tool.Call(context.Background(), map[string]any{})
	require.Error(t, err)
}
