// Package mcptools exposes dashboard operations as MCP tools so an assistant
// can run combat for the GM. The server speaks MCP over stdio.
package mcptools

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/MrWong99/fearkeeper/internal/combat"
	"github.com/MrWong99/fearkeeper/internal/entity"
	"github.com/MrWong99/fearkeeper/internal/gamestate"
	"github.com/MrWong99/fearkeeper/internal/observe"
)

const serverName = "fearkeeper"

// AdversarySummary is the tool view of an adversary.
type AdversarySummary struct {
	ID        string `json:"id" jsonschema:"adversary identifier"`
	Name      string `json:"name" jsonschema:"display name"`
	Type      string `json:"type" jsonschema:"combat role"`
	HP        int    `json:"hp" jsonschema:"damage taken"`
	HPMax     int    `json:"hp_max" jsonschema:"damage at which the adversary is defeated"`
	Stress    int    `json:"stress" jsonschema:"current stress"`
	StressMax int    `json:"stress_max" jsonschema:"maximum stress"`
}

func summarise(a entity.Adversary) AdversarySummary {
	return AdversarySummary{
		ID:        a.ID,
		Name:      a.Name,
		Type:      string(a.Type),
		HP:        a.HP,
		HPMax:     a.HPMax,
		Stress:    a.Stress,
		StressMax: a.StressMax,
	}
}

// ListInput is the input of list_adversaries.
type ListInput struct{}

// ListResult is the output of list_adversaries.
type ListResult struct {
	Adversaries []AdversarySummary `json:"adversaries" jsonschema:"adversaries in play, in table order"`
}

// AmountInput is the input of damage_adversary and heal_adversary.
type AmountInput struct {
	Adversary string `json:"adversary" jsonschema:"adversary id or exact display name"`
	Amount    int    `json:"amount" jsonschema:"hit points of damage or healing"`
}

// StressInput is the input of change_adversary_stress.
type StressInput struct {
	Adversary string `json:"adversary" jsonschema:"adversary id or exact display name"`
	Delta     int    `json:"delta" jsonschema:"stress to add, negative to remove"`
}

// OutcomeResult is the output of every combat tool.
type OutcomeResult struct {
	Defeated  []string          `json:"defeated,omitempty" jsonschema:"ids of adversaries removed by the event"`
	Adversary *AdversarySummary `json:"adversary,omitempty" jsonschema:"the target after the event, absent when defeated"`
}

// FearInput is the input of set_fear.
type FearInput struct {
	Value int `json:"value" jsonschema:"new fear value, clamped to 0..12"`
}

// FearResult is the output of set_fear.
type FearResult struct {
	Value   int  `json:"value"`
	Visible bool `json:"visible"`
}

// PartySizeInput is the input of set_party_size.
type PartySizeInput struct {
	PartySize int `json:"party_size" jsonschema:"number of player characters, at least 1"`
}

// PartySizeResult is the output of set_party_size.
type PartySizeResult struct {
	PartySize   int `json:"party_size"`
	Adversaries int `json:"adversaries" jsonschema:"adversaries in play after minion scaling"`
}

// NewServer returns an MCP server with every dashboard tool registered.
func NewServer(d *gamestate.Dashboard, m *observe.Metrics, version string) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{Name: serverName, Version: version}, nil)
	Register(server, d, m)
	return server
}

// Serve runs server over stdin/stdout until ctx is cancelled or the client
// disconnects.
func Serve(ctx context.Context, server *mcp.Server) error {
	if err := server.Run(ctx, &mcp.StdioTransport{}); err != nil && ctx.Err() == nil {
		return fmt.Errorf("mcptools: serve stdio: %w", err)
	}
	return nil
}

// Register adds the dashboard tools to server. m may be nil.
func Register(server *mcp.Server, d *gamestate.Dashboard, m *observe.Metrics) {
	t := &tools{dash: d, metrics: m}

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_adversaries",
		Description: "Lists the adversaries in play with their HP and stress.",
	}, t.listAdversaries)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "damage_adversary",
		Description: "Deals damage to an adversary. Minions are defeated outright and heavy hits take down more minions of the same name.",
	}, t.damage)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "heal_adversary",
		Description: "Removes damage from an adversary. Minions cannot be healed.",
	}, t.heal)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "change_adversary_stress",
		Description: "Adds or removes stress. Stress beyond the maximum becomes damage.",
	}, t.stress)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "set_fear",
		Description: "Sets the GM's fear pool.",
	}, t.setFear)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "set_party_size",
		Description: "Sets the number of player characters and rescales minion groups.",
	}, t.setPartySize)
}

type tools struct {
	dash    *gamestate.Dashboard
	metrics *observe.Metrics
}

func (t *tools) listAdversaries(ctx context.Context, _ *mcp.CallToolRequest, _ ListInput) (*mcp.CallToolResult, ListResult, error) {
	advs := t.dash.Adversaries()
	out := ListResult{Adversaries: make([]AdversarySummary, len(advs))}
	for i, a := range advs {
		out.Adversaries[i] = summarise(a)
	}
	t.record(ctx, "list_adversaries", nil)
	return nil, out, nil
}

func (t *tools) damage(ctx context.Context, _ *mcp.CallToolRequest, in AmountInput) (*mcp.CallToolResult, OutcomeResult, error) {
	out, err := t.dash.Damage(ctx, t.resolve(in.Adversary), in.Amount)
	return t.outcome(ctx, "damage_adversary", out, err)
}

func (t *tools) heal(ctx context.Context, _ *mcp.CallToolRequest, in AmountInput) (*mcp.CallToolResult, OutcomeResult, error) {
	out, err := t.dash.Heal(ctx, t.resolve(in.Adversary), in.Amount)
	return t.outcome(ctx, "heal_adversary", out, err)
}

func (t *tools) stress(ctx context.Context, _ *mcp.CallToolRequest, in StressInput) (*mcp.CallToolResult, OutcomeResult, error) {
	out, err := t.dash.Stress(ctx, t.resolve(in.Adversary), in.Delta)
	return t.outcome(ctx, "change_adversary_stress", out, err)
}

func (t *tools) setFear(ctx context.Context, _ *mcp.CallToolRequest, in FearInput) (*mcp.CallToolResult, FearResult, error) {
	fear := t.dash.SetFear(ctx, in.Value)
	t.record(ctx, "set_fear", nil)
	return nil, FearResult{Value: fear.Value, Visible: fear.Visible}, nil
}

func (t *tools) setPartySize(ctx context.Context, _ *mcp.CallToolRequest, in PartySizeInput) (*mcp.CallToolResult, PartySizeResult, error) {
	size := t.dash.SetPartySize(ctx, in.PartySize)
	t.record(ctx, "set_party_size", nil)
	return nil, PartySizeResult{PartySize: size, Adversaries: len(t.dash.Adversaries())}, nil
}

// resolve maps a display name to its id. Anything that is not a current
// display name is passed through as an id.
func (t *tools) resolve(ref string) string {
	for _, a := range t.dash.Adversaries() {
		if a.ID == ref || a.Name == ref {
			return a.ID
		}
	}
	return ref
}

func (t *tools) outcome(ctx context.Context, tool string, out combat.Outcome, err error) (*mcp.CallToolResult, OutcomeResult, error) {
	t.record(ctx, tool, err)
	if err != nil {
		return nil, OutcomeResult{}, err
	}
	res := OutcomeResult{Defeated: out.Defeated}
	if out.Adversary != nil {
		s := summarise(*out.Adversary)
		res.Adversary = &s
	}
	return nil, res, nil
}

func (t *tools) record(ctx context.Context, tool string, err error) {
	if t.metrics == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	t.metrics.RecordToolCall(ctx, tool, status)
}
