// Package chat is the interactive design REPL.
package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/jmuk/sleek/pkg/agent"
	"github.com/jmuk/sleek/pkg/config"
	"github.com/jmuk/sleek/pkg/design"
	"github.com/jmuk/sleek/pkg/session"
)

// chatSession is a session with its design state and transcript loaded.
type chatSession struct {
	s       *session.Session
	state   *design.State
	history []agent.Message
	rt      *Runtime
}

func openChatSession(s *session.Session) (*chatSession, error) {
	state, err := s.LoadState()
	if err != nil {
		return nil, err
	}
	history, err := session.LoadHistory[agent.Message](s)
	if err != nil {
		return nil, err
	}
	return &chatSession{s: s, state: state, history: history}, nil
}

func (cs *chatSession) backend(cfg *config.Config) string {
	if b := cs.s.Backend(); b != "" {
		return b
	}
	return cfg.Backend
}

func (cs *chatSession) runtime(ctx context.Context, cfg *config.Config, cwd string) (*Runtime, error) {
	if cs.rt != nil {
		return cs.rt, nil
	}
	rt, err := NewRuntime(ctx, cfg, cs.backend(cfg), cwd)
	if err != nil {
		return nil, err
	}
	cs.rt = rt
	return rt, nil
}

// run runs one request and saves whatever it produced, even when it fails.
func (cs *chatSession) run(ctx context.Context, cfg *config.Config, cwd, input string, emit func(*agent.Event)) error {
	ctx = session.With(ctx, cs.s)
	logger := session.Logger(ctx, "chat")
	// Tool connections outlive the request.
	rt, err := cs.runtime(context.WithoutCancel(ctx), cfg, cwd)
	if err != nil {
		return err
	}

	before := len(cs.history)
	var runErr error
	for ev, err := range rt.Run(ctx, cs.state, &cs.history, input) {
		if err != nil {
			runErr = err
			break
		}
		emit(ev)
	}
	if runErr != nil {
		logger.Error("Request failed", "error", runErr)
	}

	var saveErr error
	if added := cs.history[before:]; len(added) > 0 {
		saveErr = session.AppendHistory(cs.s, added...)
	}
	saveErr = errors.Join(saveErr, cs.s.SaveState(cs.state))
	if saveErr != nil {
		return fmt.Errorf("failed to save session: %w", saveErr)
	}
	return runErr
}

func (cs *chatSession) resetRuntime() error {
	if cs.rt == nil {
		return nil
	}
	err := cs.rt.Close()
	cs.rt = nil
	return err
}

func (cs *chatSession) Close() error {
	return errors.Join(cs.resetRuntime(), cs.s.Close())
}

type Chat struct {
	cfg        *config.Config
	configPath string
	store      *session.Store
	cwd        string

	rl  *readline.Instance
	out io.Writer
	cs  *chatSession
}

func New(cfg *config.Config, configPath string, store *session.Store, s *session.Session, cwd string) (*Chat, error) {
	cs, err := openChatSession(s)
	if err != nil {
		return nil, err
	}
	c := &Chat{
		cfg:        cfg,
		configPath: configPath,
		store:      store,
		cwd:        cwd,
		cs:         cs,
	}
	c.rl, err = readline.NewEx(&readline.Config{
		Prompt:          "> ",
		HistoryFile:     filepath.Join(store.Root(), "input-history"),
		AutoComplete:    newCombinedCompleter(func() *design.State { return c.cs.state }),
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, err
	}
	c.out = c.rl.Stdout()
	return c, nil
}

func (c *Chat) Close() error {
	return errors.Join(c.cs.Close(), c.rl.Close())
}

func (c *Chat) RunLoop(ctx context.Context) error {
	fmt.Fprintf(c.out, "Session %s, backend %s. Type /help for commands.\n", c.cs.s.ID(), c.cs.backend(c.cfg))
	for {
		line, err := c.rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			if line == "" {
				return nil
			}
			continue
		} else if errors.Is(err, io.EOF) {
			return nil
		} else if err != nil {
			return err
		}
		if strings.TrimSpace(line) == "" {
			continue
		}

		cmd, args := parseCommand(line)
		switch cmd {
		case commandQuit:
			return nil
		case commandSession:
			if err := c.handleSessionCommands(args); err != nil {
				return err
			}
		case commandScreens:
			c.handleScreensCommand()
		case commandTheme:
			c.handleThemeCommand()
		case commandBackend:
			if err := c.handleBackendsCommand(); err != nil {
				return err
			}
		case commandMCP:
			c.handleMCPCommand()
		case commandList:
			printCommands(c.out)
		case commandUnknown:
			fmt.Fprintf(c.out, "Unknown command %s, ignoring...\n", strings.Join(args, " "))
		case commandNone:
			err := c.HandleMessage(ctx, line)
			switch {
			case err == nil:
			case errors.Is(err, context.Canceled):
				fmt.Fprintln(c.out, red("interrupted"))
			case errors.Is(err, context.DeadlineExceeded):
				fmt.Fprintln(c.out, red("request timed out"))
			default:
				fmt.Fprintln(c.out, red(err.Error()))
			}
		}
	}
}

func (c *Chat) HandleMessage(ctx context.Context, input string) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	r := newRenderer(c.out, c.cs.state)
	defer r.endLine()
	return c.cs.run(ctx, c.cfg, c.cwd, input, r.render)
}

// Exec runs a single request in s without a terminal, passing every event
// to emit.
func Exec(ctx context.Context, cfg *config.Config, s *session.Session, cwd, input string, emit func(*agent.Event)) error {
	cs, err := openChatSession(s)
	if err != nil {
		return err
	}
	defer cs.resetRuntime()
	return cs.run(ctx, cfg, cwd, input, emit)
}
