package mcptools_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/MrWong99/fearkeeper/internal/entity"
	"github.com/MrWong99/fearkeeper/internal/gamestate"
	"github.com/MrWong99/fearkeeper/internal/mcptools"
	"github.com/MrWong99/fearkeeper/internal/storage"
)

func connect(t *testing.T) (*mcp.ClientSession, *gamestate.Dashboard) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)

	d := gamestate.New(storage.NewMemGateway())
	d.Mount(ctx)

	server := mcptools.NewServer(d, nil, "test")
	serverTransport, clientTransport := mcp.NewInMemoryTransports()
	serverSession, err := server.Connect(ctx, serverTransport, nil)
	if err != nil {
		t.Fatalf("server connect: %v", err)
	}
	t.Cleanup(func() { _ = serverSession.Close() })

	client := mcp.NewClient(&mcp.Implementation{Name: "client", Version: "v0.0.1"}, nil)
	session, err := client.Connect(ctx, clientTransport, nil)
	if err != nil {
		t.Fatalf("client connect: %v", err)
	}
	t.Cleanup(func() { _ = session.Close() })
	return session, d
}

func call[T any](t *testing.T, session *mcp.ClientSession, name string, args map[string]any) (T, *mcp.CallToolResult) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var out T
	res, err := session.CallTool(ctx, &mcp.CallToolParams{Name: name, Arguments: args})
	if err != nil {
		t.Fatalf("call %s: %v", name, err)
	}
	if res.IsError {
		return out, res
	}
	data, err := json.Marshal(res.StructuredContent)
	if err != nil {
		t.Fatalf("marshal structured content: %v", err)
	}
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal structured content: %v", err)
	}
	return out, res
}

func TestTools_ListedByServer(t *testing.T) {
	t.Parallel()

	session, _ := connect(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	res, err := session.ListTools(ctx, nil)
	if err != nil {
		t.Fatalf("ListTools: %v", err)
	}
	want := map[string]bool{
		"list_adversaries": false, "damage_adversary": false, "heal_adversary": false,
		"change_adversary_stress": false, "set_fear": false, "set_party_size": false,
	}
	for _, tool := range res.Tools {
		if _, ok := want[tool.Name]; ok {
			want[tool.Name] = true
		}
	}
	for name, seen := range want {
		if !seen {
			t.Errorf("tool %s not registered", name)
		}
	}
}

func TestTools_CombatByName(t *testing.T) {
	t.Parallel()

	session, d := connect(t)
	ctx := context.Background()
	d.CreateAdversary(ctx, entity.Adversary{Name: "Ogre", Type: entity.TypeBruiser, HPMax: 6, StressMax: 2})

	out, _ := call[mcptools.OutcomeResult](t, session, "damage_adversary", map[string]any{"adversary": "Ogre", "amount": 3})
	if out.Adversary == nil || out.Adversary.HP != 3 {
		t.Fatalf("damage outcome = %+v", out)
	}

	out, _ = call[mcptools.OutcomeResult](t, session, "change_adversary_stress", map[string]any{"adversary": "Ogre", "delta": 3})
	if out.Adversary.Stress != 2 || out.Adversary.HP != 4 {
		t.Fatalf("stress outcome = %+v", out.Adversary)
	}

	out, _ = call[mcptools.OutcomeResult](t, session, "heal_adversary", map[string]any{"adversary": out.Adversary.ID, "amount": 10})
	if out.Adversary.HP != 0 {
		t.Fatalf("heal outcome = %+v", out.Adversary)
	}

	list, _ := call[mcptools.ListResult](t, session, "list_adversaries", map[string]any{})
	if len(list.Adversaries) != 1 || list.Adversaries[0].Name != "Ogre" {
		t.Fatalf("list = %+v", list)
	}
}

func TestTools_ErrorsAreToolErrors(t *testing.T) {
	t.Parallel()

	session, d := connect(t)
	d.CreateAdversary(context.Background(), entity.Adversary{Name: "Rat", Type: entity.TypeMinion, HPMax: 1})

	if _, res := call[mcptools.OutcomeResult](t, session, "heal_adversary", map[string]any{"adversary": "Rat", "amount": 1}); !res.IsError {
		t.Fatal("healing a minion did not report a tool error")
	}
	if _, res := call[mcptools.OutcomeResult](t, session, "damage_adversary", map[string]any{"adversary": "Nobody", "amount": 1}); !res.IsError {
		t.Fatal("damaging an unknown adversary did not report a tool error")
	}
}

func TestTools_Settings(t *testing.T) {
	t.Parallel()

	session, d := connect(t)
	rats := make([]entity.Adversary, 4)
	for i := range rats {
		rats[i] = entity.Adversary{Name: "Rat", Type: entity.TypeMinion, HPMax: 1}
	}
	d.BulkCreateAdversaries(context.Background(), rats)

	fear, _ := call[mcptools.FearResult](t, session, "set_fear", map[string]any{"value": 20})
	if fear.Value != entity.FearMax {
		t.Fatalf("fear = %d, want %d", fear.Value, entity.FearMax)
	}

	size, _ := call[mcptools.PartySizeResult](t, session, "set_party_size", map[string]any{"party_size": 6})
	if size.PartySize != 6 || size.Adversaries != 6 {
		t.Fatalf("party size result = %+v", size)
	}
}
