package mcp

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

func TestServer_InMemorySession(t *testing.T) {
	ctx := context.Background()
	s := newTestServer(t)

	clientTransport, serverTransport := mcp.NewInMemoryTransports()
	if _, err := s.Connect(ctx, serverTransport); err != nil {
		t.Fatalf("server connect failed: %v", err)
	}
	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "v0.0.1"}, nil)
	session, err := client.Connect(ctx, clientTransport, nil)
	if err != nil {
		t.Fatalf("client connect failed: %v", err)
	}
	defer session.Close()

	tools, err := session.ListTools(ctx, nil)
	if err != nil {
		t.Fatalf("ListTools failed: %v", err)
	}
	want := map[string]bool{"simulate_delivery": false, "classify_risk": false, "import_orders": false, "fit_stages": false, "compare_models": false}
	for _, tool := range tools.Tools {
		if _, ok := want[tool.Name]; ok {
			want[tool.Name] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("Expected tool %s to be registered", name)
		}
	}

	res, err := session.CallTool(ctx, &mcp.CallToolParams{
		Name:      "classify_risk",
		Arguments: map[string]any{"sla_days": []float64{30}, "samples": 1000},
	})
	if err != nil {
		t.Fatalf("CallTool failed: %v", err)
	}
	if res.IsError {
		t.Fatalf("Expected success, got error result: %+v", res.Content)
	}
	text, ok := res.Content[0].(*mcp.TextContent)
	if !ok {
		t.Fatalf("Expected text content, got %T", res.Content[0])
	}
	var decoded struct {
		Data struct {
			Classifications []struct {
				Tier       string  `json:"tier"`
				Exceedance float64 `json:"exceedance"`
			} `json:"classifications"`
			Samples int `json:"samples"`
		} `json:"data"`
	}
	if err := json.Unmarshal([]byte(text.Text), &decoded); err != nil {
		t.Fatalf("invalid JSON payload: %v", err)
	}
	if len(decoded.Data.Classifications) != 1 || decoded.Data.Samples != 1000 {
		t.Errorf("unexpected payload: %s", text.Text)
	}

	res, err = session.CallTool(ctx, &mcp.CallToolParams{
		Name:      "simulate_delivery",
		Arguments: map[string]any{"stages": []map[string]any{{"stage": "x", "family": "weibull", "params": map[string]any{}}}},
	})
	if err == nil && !res.IsError {
		t.Error("Expected an unknown family to produce a tool error")
	}
}
