package sequence

import (
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
)

// Generator produces human-readable document numbers. The numbers are for
// display only; uniqueness comes from the snowflake id, never from a row count.
type Generator struct {
	node *snowflake.Node
}

func NewGenerator(nodeID int64) (*Generator, error) {
	node, err := snowflake.NewNode(nodeID)
	if err != nil {
		return nil, fmt.Errorf("sequence node: %w", err)
	}
	return &Generator{node: node}, nil
}

// Next returns a number like PAY-2026-1879335425863122944.
func (g *Generator) Next(prefix string) string {
	return fmt.Sprintf("%s-%d-%s", prefix, time.Now().UTC().Year(), g.node.Generate())
}
