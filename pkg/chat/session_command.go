package chat

import (
	"fmt"
	"time"

	"github.com/jmuk/sleek/pkg/session"
	"github.com/manifoldco/promptui"
)

func (c *Chat) chooseNewSession() (*session.Session, error) {
	sessions, err := c.store.List(c.cwd)
	if err != nil {
		return nil, err
	}
	if len(sessions) == 0 {
		fmt.Fprintln(c.out, "No sessions found to select")
		return nil, nil
	}
	var foundExisting bool
	for _, s := range sessions {
		if s.ID() == c.cs.s.ID() {
			foundExisting = true
			break
		}
	}
	if !foundExisting {
		sessions = append([]*session.Session{c.cs.s}, sessions...)
	}
	items := make([]string, 0, len(sessions))
	var cursorPos int
	for i, s := range sessions {
		item := fmt.Sprintf("%s at %s", s.ID(), s.Timestamp().Format(time.RFC1123Z))
		if s.ID() == c.cs.s.ID() {
			item += " (current session)"
			cursorPos = i
		}
		items = append(items, item)
	}
	sel := promptui.Select{
		Label:     "Select the session to switch",
		Items:     items,
		CursorPos: cursorPos,
	}
	idx, _, err := sel.Run()
	if err != nil {
		return nil, err
	}
	if sessions[idx].ID() == c.cs.s.ID() {
		return nil, nil
	}
	return sessions[idx], nil
}

func (c *Chat) handleSessionCommands(args []string) error {
	var newSession *session.Session
	switch {
	case len(args) == 0:
		s, err := c.chooseNewSession()
		if err == promptui.ErrInterrupt || err == promptui.ErrEOF {
			return nil
		} else if err != nil {
			return err
		}
		newSession = s
	case args[0] == "last":
		sessions, err := c.store.List(c.cwd)
		if err != nil {
			return err
		}
		if len(sessions) > 0 && sessions[0].ID() != c.cs.s.ID() {
			newSession = sessions[0]
		}
	default:
		s, err := c.store.Open(args[0])
		if err != nil {
			fmt.Fprintln(c.out, red(err.Error()))
			return nil
		}
		if s.ID() != c.cs.s.ID() {
			newSession = s
		}
	}
	if newSession == nil {
		return nil
	}
	cs, err := openChatSession(newSession)
	if err != nil {
		return err
	}
	if err := c.cs.Close(); err != nil {
		return err
	}
	c.cs = cs
	fmt.Fprintf(c.out, "Session is updated to %s (%d screens, %d messages)\n",
		cs.s.ID(), cs.state.Len(), len(cs.history))
	return nil
}
