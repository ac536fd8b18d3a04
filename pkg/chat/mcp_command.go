package chat

import "fmt"

func (c *Chat) handleMCPCommand() {
	if len(c.cfg.MCP) == 0 {
		fmt.Fprintln(c.out, "No MCP servers configured")
		return
	}
	for _, mcpc := range c.cfg.MCP {
		fmt.Fprintln(c.out, mcpc.String())
	}
}
