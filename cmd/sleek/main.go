package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/jmuk/sleek/pkg/agent"
	"github.com/jmuk/sleek/pkg/chat"
	"github.com/jmuk/sleek/pkg/config"
	"github.com/jmuk/sleek/pkg/session"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	cfgFile   string
	backend   string
	sessionID string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "sleek",
		Short: "Design mobile screens with a language model",
		Long: `Sleek is an interactive design agent. Describe the screens you want and
it streams HTML screens and theme variables into a session stored on disk.`,
		SilenceUsage:      true,
		PersistentPreRunE: loadDotEnv,
		RunE:              runChat,
	}
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $XDG_CONFIG_HOME/sleek/config.toml)")
	rootCmd.PersistentFlags().StringVar(&backend, "backend", "", "backend to use instead of the configured one")
	rootCmd.PersistentFlags().StringVar(&sessionID, "session", "", "session ID to resume, or \"last\"")

	rootCmd.AddCommand(
		&cobra.Command{
			Use:   "chat",
			Short: "Start the interactive design session",
			RunE:  runChat,
		},
		&cobra.Command{
			Use:   "run <request>",
			Short: "Run one request and print its events as JSON lines",
			Args:  cobra.ExactArgs(1),
			RunE:  runOnce,
		},
		&cobra.Command{
			Use:   "render <screen-id>",
			Short: "Print a screen of the session as a complete HTML document",
			Args:  cobra.ExactArgs(1),
			RunE:  renderScreen,
		},
		&cobra.Command{
			Use:   "sessions",
			Short: "List the sessions of the working directory",
			Args:  cobra.NoArgs,
			RunE:  listSessions,
		},
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadDotEnv reads .env from the working directory when present. Variables
// already set in the environment win.
func loadDotEnv(cmd *cobra.Command, args []string) error {
	err := godotenv.Load()
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

type env struct {
	cfg        *config.Config
	configPath string
	store      *session.Store
	cwd        string
}

func setup() (*env, error) {
	configPath := cfgFile
	if configPath == "" {
		p, err := config.DefaultPath()
		if err != nil {
			return nil, err
		}
		configPath = p
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if backend != "" {
		cfg.Backend = backend
	}
	store, err := session.DefaultStore()
	if err != nil {
		return nil, err
	}
	store.SetLogLevel(cfg.LogLevel)
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get working directory: %w", err)
	}
	return &env{cfg: cfg, configPath: configPath, store: store, cwd: cwd}, nil
}

// openSession resumes the session named by --session, or starts a new one
// when create is set.
func (e *env) openSession(create bool) (*session.Session, error) {
	switch sessionID {
	case "":
		if create {
			return e.store.New(e.cwd)
		}
		fallthrough
	case "last":
		sessions, err := e.store.List(e.cwd)
		if err != nil {
			return nil, err
		}
		if len(sessions) == 0 {
			if create {
				return e.store.New(e.cwd)
			}
			return nil, fmt.Errorf("no sessions found in %s", e.cwd)
		}
		return sessions[0], nil
	default:
		return e.store.Open(sessionID)
	}
}

func runChat(cmd *cobra.Command, args []string) error {
	e, err := setup()
	if err != nil {
		return err
	}
	s, err := e.openSession(true)
	if err != nil {
		return err
	}
	if backend != "" {
		if err := s.SetBackend(backend); err != nil {
			return err
		}
	}
	c, err := chat.New(e.cfg, e.configPath, e.store, s, e.cwd)
	if err != nil {
		return errors.Join(err, s.Close())
	}
	defer c.Close()
	return c.RunLoop(cmd.Context())
}

func runOnce(cmd *cobra.Command, args []string) error {
	e, err := setup()
	if err != nil {
		return err
	}
	s, err := e.openSession(true)
	if err != nil {
		return err
	}
	defer s.Close()
	if backend != "" {
		if err := s.SetBackend(backend); err != nil {
			return err
		}
	}
	fmt.Fprintf(os.Stderr, "session %s\n", s.ID())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	enc := json.NewEncoder(cmd.OutOrStdout())
	return chat.Exec(ctx, e.cfg, s, e.cwd, args[0], func(ev *agent.Event) {
		enc.Encode(ev)
	})
}

func renderScreen(cmd *cobra.Command, args []string) error {
	e, err := setup()
	if err != nil {
		return err
	}
	s, err := e.openSession(false)
	if err != nil {
		return err
	}
	defer s.Close()
	state, err := s.LoadState()
	if err != nil {
		return err
	}
	html, ok := state.Render(args[0])
	if !ok {
		return fmt.Errorf("screen %s not found in session %s", args[0], s.ID())
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), html)
	return err
}

func listSessions(cmd *cobra.Command, args []string) error {
	e, err := setup()
	if err != nil {
		return err
	}
	sessions, err := e.store.List(e.cwd)
	if err != nil {
		return err
	}
	w := cmd.OutOrStdout()
	for _, s := range sessions {
		line := fmt.Sprintf("%s  %s", s.ID(), s.Timestamp().Format(time.RFC1123Z))
		if b := s.Backend(); b != "" {
			line += "  " + b
		}
		fmt.Fprintln(w, line)
	}
	return nil
}
