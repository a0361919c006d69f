package tools

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/rendis/agent8/internal/streaming"
	"github.com/rendis/agent8/pkg/schema"
)

// AgentRegistration is the simulated Masumi registry receipt.
type AgentRegistration struct {
	NFTID      string `json:"nft_id"`
	RegistryID string `json:"registry_id"`
	Status     string `json:"status"`
}

type registerAgentParams struct {
	AgentName string `json:"agent_name"`
	Strategy  string `json:"strategy"`
}

type registerAgentTool struct {
	definition
}

func newRegisterAgentTool() *registerAgentTool {
	return &registerAgentTool{definition: definition{mcp.NewTool("register_agent",
		mcp.WithDescription("Register an AI agent on the Masumi network."),
		mcp.WithString("agent_name", mcp.Required(), mcp.Description("Name of the agent")),
		mcp.WithString("strategy", mcp.Required(), mcp.Description("Trading strategy description")),
	)}}
}

func (t *registerAgentTool) Call(ctx context.Context, args map[string]any, emit streaming.Emitter) (any, error) {
	p, err := decodeParams[registerAgentParams](args)
	if err != nil {
		return nil, err
	}
	reg := AgentRegistration{
		NFTID:      newNFTID(),
		RegistryID: newRegistryID(),
		Status:     "registered",
	}
	emit.Emit(ctx, streaming.Log(schema.LogInfo,
		fmt.Sprintf("Registered agent '%s' on Masumi. NFT: %s", p.AgentName, reg.NFTID)))
	return reg, nil
}
