package tools

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/rendis/agent8/internal/streaming"
	"github.com/rendis/agent8/pkg/schema"
)

// Hydra heads are simulated: ids are random and no state is kept between calls.

// HeadOpened is returned by open_hydra_head.
type HeadOpened struct {
	HeadID string `json:"head_id"`
	Status string `json:"status"`
}

// HeadTrade is returned by execute_hydra_trade.
type HeadTrade struct {
	TxID   string `json:"tx_id"`
	Status string `json:"status"`
}

// HeadClosed is returned by close_hydra_head.
type HeadClosed struct {
	SettlementTx string `json:"settlement_tx"`
	Status       string `json:"status"`
}

// HydraTools returns the open, trade and close tools.
func HydraTools() []Tool {
	return []Tool{
		newOpenHeadTool(),
		newHeadTradeTool(),
		newCloseHeadTool(),
	}
}

// --- open_hydra_head ---

type openHeadParams struct {
	AgentID string `json:"agent_id"`
}

type openHeadTool struct {
	definition
}

func newOpenHeadTool() *openHeadTool {
	return &openHeadTool{definition: definition{mcp.NewTool("open_hydra_head",
		mcp.WithDescription("Open a Hydra Head for high-frequency trading."),
		mcp.WithString("agent_id", mcp.Required(), mcp.Description("ID of the agent opening the head")),
	)}}
}

func (t *openHeadTool) Call(ctx context.Context, args map[string]any, emit streaming.Emitter) (any, error) {
	if _, err := decodeParams[openHeadParams](args); err != nil {
		return nil, err
	}
	out := HeadOpened{HeadID: newHeadID(), Status: "open"}
	emit.Emit(ctx, streaming.Log(schema.LogInfo,
		fmt.Sprintf("Hydra Head %s opened. TPS capacity: 1000.", out.HeadID)))
	return out, nil
}

// --- execute_hydra_trade ---

type headTradeParams struct {
	HeadID       string         `json:"head_id"`
	TradeDetails map[string]any `json:"trade_details"`
}

type headTradeTool struct {
	definition
}

func newHeadTradeTool() *headTradeTool {
	return &headTradeTool{definition: definition{mcp.NewTool("execute_hydra_trade",
		mcp.WithDescription("Execute a trade within an open Hydra Head."),
		mcp.WithString("head_id", mcp.Required(), mcp.Description("ID of the Hydra Head")),
		mcp.WithObject("trade_details", mcp.Required(), mcp.Description("Details of the trade (asset, amount, price)")),
	)}}
}

func (t *headTradeTool) Call(ctx context.Context, args map[string]any, emit streaming.Emitter) (any, error) {
	if _, err := decodeParams[headTradeParams](args); err != nil {
		return nil, err
	}
	out := HeadTrade{TxID: newTxID(), Status: "confirmed"}
	emit.Emit(ctx, streaming.Log(schema.LogSuccess, "Executed trade in Hydra Head. Latency: 45ms."))
	return out, nil
}

// --- close_hydra_head ---

type closeHeadParams struct {
	HeadID string `json:"head_id"`
}

type closeHeadTool struct {
	definition
}

func newCloseHeadTool() *closeHeadTool {
	return &closeHeadTool{definition: definition{mcp.NewTool("close_hydra_head",
		mcp.WithDescription("Close a Hydra Head and settle to L1."),
		mcp.WithString("head_id", mcp.Required(), mcp.Description("ID of the Hydra Head to close")),
	)}}
}

func (t *closeHeadTool) Call(ctx context.Context, args map[string]any, emit streaming.Emitter) (any, error) {
	if _, err := decodeParams[closeHeadParams](args); err != nil {
		return nil, err
	}
	out := HeadClosed{SettlementTx: newTxID(), Status: "closed"}
	emit.Emit(ctx, streaming.Log(schema.LogInfo,
		fmt.Sprintf("Hydra Head closed. Final settlement tx: %s", out.SettlementTx)))
	return out, nil
}
