package chat

import "fmt"

func (c *Chat) handleScreensCommand() {
	screens := c.cs.state.Screens()
	if len(screens) == 0 {
		fmt.Fprintln(c.out, "No screens yet")
		return
	}
	for _, s := range screens {
		fmt.Fprintf(c.out, "%s  %s  %s\n", cyan(s.ID), s.Label,
			faint(fmt.Sprintf("(%.0f, %.0f) %d bytes", s.Left, s.Top, len(s.Body))))
	}
}

func (c *Chat) handleThemeCommand() {
	vars := c.cs.state.ThemeVars()
	if len(vars) == 0 {
		fmt.Fprintln(c.out, "No theme variables yet")
		return
	}
	for _, v := range vars {
		fmt.Fprintf(c.out, "%s: %s\n", v.Name, v.Value)
	}
}
