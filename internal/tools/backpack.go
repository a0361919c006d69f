package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/rendis/agent8/internal/streaming"
	"github.com/rendis/agent8/pkg/schema"
)

// simulatedFillPrice is the price every Backpack order fills at.
const simulatedFillPrice = "0.45"

// BackpackOrder is the simulated exchange fill.
type BackpackOrder struct {
	OrderID string `json:"order_id"`
	Status  string `json:"status"`
	Price   string `json:"price"`
}

type backpackTradeParams struct {
	Side     string `json:"side"`
	Symbol   string `json:"symbol"`
	Quantity string `json:"quantity"`
}

type backpackTradeTool struct {
	definition
}

func newBackpackTradeTool() *backpackTradeTool {
	return &backpackTradeTool{definition: definition{mcp.NewTool("execute_backpack_trade",
		mcp.WithDescription("Execute a trade on Backpack Exchange."),
		mcp.WithString("side", mcp.Required(), mcp.Enum("buy", "sell"), mcp.Description("Buy or sell")),
		mcp.WithString("symbol", mcp.Required(), mcp.Description("Trading pair (e.g., 'ADA_USDC')")),
		mcp.WithString("quantity", mcp.Required(), mcp.Description("Amount to trade")),
	)}}
}

func (t *backpackTradeTool) Call(ctx context.Context, args map[string]any, emit streaming.Emitter) (any, error) {
	p, err := decodeParams[backpackTradeParams](args)
	if err != nil {
		return nil, err
	}
	out := BackpackOrder{OrderID: newOrderID(), Status: "filled", Price: simulatedFillPrice}
	emit.Emit(ctx, streaming.Log(schema.LogSuccess,
		fmt.Sprintf("Backpack Exchange: %s %s %s filled. Order ID: %s",
			strings.ToUpper(p.Side), p.Quantity, p.Symbol, out.OrderID)))
	return out, nil
}
