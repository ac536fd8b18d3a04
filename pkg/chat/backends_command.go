package chat

import (
	"fmt"

	"github.com/jmuk/sleek/pkg/config"
	"github.com/manifoldco/promptui"
)

func (c *Chat) handleBackendsCommand() error {
	backendNames := c.cfg.BackendNames()
	current := c.cs.backend(c.cfg)
	pos := 0
	for i, name := range backendNames {
		if name == current {
			pos = i
			break
		}
	}
	sel := promptui.Select{
		Label:     "Select the backend",
		Items:     backendNames,
		CursorPos: pos,
		Size:      20,
	}
	_, selected, err := sel.Run()
	if err == promptui.ErrInterrupt || err == promptui.ErrEOF {
		return nil
	} else if err != nil {
		return err
	}
	if selected == current {
		return nil
	}

	if err := c.cs.s.SetBackend(selected); err != nil {
		return err
	}
	c.cfg.Backend = selected
	if c.configPath != "" {
		err := config.Edit(c.configPath, func(cfg *config.Config) error {
			cfg.Backend = selected
			return nil
		})
		if err != nil {
			return err
		}
	}
	if err := c.cs.resetRuntime(); err != nil {
		return err
	}
	fmt.Fprintf(c.out, "Backend is updated to %s\n", selected)
	return nil
}
