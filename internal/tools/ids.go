package tools

import (
	"crypto/rand"
	"encoding/hex"
)

// randomHex returns 2n lowercase hex characters.
func randomHex(n int) string {
	b := make([]byte, n)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

func newNodeID() string { return "node-" + randomHex(4) }

func newEdgeID(source, target string) string { return "edge-" + source + "-" + target }

func newNFTID() string { return "asset1" + randomHex(8) }

func newRegistryID() string { return "reg_" + randomHex(4) }

func newHeadID() string { return "head_" + randomHex(4) }

func newTxID() string { return "tx_" + randomHex(8) }

func newOrderID() string { return "ord_" + randomHex(6) }
