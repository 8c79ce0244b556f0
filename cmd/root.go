package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/parley-ai/parley/internal/auth"
	"github.com/parley-ai/parley/internal/chat"
	"github.com/parley-ai/parley/internal/config"
	"github.com/parley-ai/parley/internal/history"
	"github.com/parley-ai/parley/internal/logging"
	"github.com/parley-ai/parley/internal/prompts"
	"github.com/parley-ai/parley/internal/provider"
	"github.com/parley-ai/parley/internal/share"
	"github.com/parley-ai/parley/internal/tui"
)

var (
	providerFlag string
	modelFlag    string
	resumeFlag   string
	shareFlag    bool
	maxTurnsFlag int
)

var rootCmd = &cobra.Command{
	Use:   "parley",
	Short: "Chat with any model from the terminal",
	Long: `Parley is a terminal chat client that speaks to multiple model
backends through one interface. Gemini responses stream in as they are
generated; DeepSeek and OpenAI answers arrive in one piece.

Supported providers:
  gemini    - Gemini API (GEMINI_API_KEY)
  deepseek  - DeepSeek API (DEEPSEEK_API_KEY)
  openai    - OpenAI API (OPENAI_API_KEY)`,
	Run: runChat,
}

func runChat(cmd *cobra.Command, args []string) {
	cfg := config.Get()
	store := history.NewStore(config.SessionsDir())

	// Resuming restores the saved backend unless flags override it.
	var resumed *history.Transcript
	if resumeFlag != "" {
		t, err := store.Load(resumeFlag)
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
		resumed = t
	}

	selectedProvider := providerFlag
	if selectedProvider == "" && resumed != nil {
		selectedProvider = resumed.Provider
	}
	if selectedProvider == "" {
		selectedProvider = cfg.DefaultProvider
	}
	if selectedProvider == "" {
		selectedProvider = "gemini"
	}
	selectedProvider = strings.ToLower(selectedProvider)

	selectedModel := modelFlag
	if selectedModel == "" && resumed != nil {
		selectedModel = resumed.Model
	}
	if selectedModel == "" {
		selectedModel = cfg.DefaultModel
	}
	if selectedModel == "" {
		selectedModel = config.DefaultModelFor(selectedProvider)
	}

	key, source := config.GetAPIKey(selectedProvider)
	gen, err := provider.New(provider.Config{
		Provider:  selectedProvider,
		APIKey:    key,
		KeySource: source,
	})
	if err != nil {
		if errors.Is(err, provider.ErrUnsupportedProvider) {
			fmt.Printf("Unknown provider: %s\n", selectedProvider)
			fmt.Println("Supported providers: gemini, deepseek, openai")
		} else {
			fmt.Printf("Error: %v\n", err)
		}
		os.Exit(1)
	}

	req := provider.RequestConfig{
		Model:        selectedModel,
		SystemPrompt: prompts.Build(cfg.SystemPrompt),
	}
	opts := []chat.Option{}
	if maxTurnsFlag > 0 {
		opts = append(opts, chat.WithMaxTurns(maxTurnsFlag))
	}
	if resumed != nil {
		opts = append(opts, chat.WithHistory(resumed.Turns))
	}
	session := chat.NewSession(gen, req, opts...)

	// Key methods resolve credentials fresh each attempt; no cache store.
	authCtl := auth.NewController(
		&auth.KeyAuthenticator{Lookup: config.GetAPIKey},
		config.Settings{},
		nil,
	)

	var caster *share.Broadcaster
	if shareFlag {
		connCfg := share.DefaultConnConfig()
		if cfg.NATSUrl != "" {
			connCfg.URL = cfg.NATSUrl
		}
		caster, err = share.NewBroadcaster(connCfg, session.ID())
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Sharing live. Follow with: parley watch %s\n", session.ID())
		slog.Info("session sharing enabled", "session", session.ID())
	}

	autoSave := ""
	if resumed != nil {
		autoSave = resumed.ID
	}

	p := tea.NewProgram(
		tui.New(tui.Options{
			Session:     session,
			Auth:        authCtl,
			Store:       store,
			Broadcaster: caster,
			Provider:    selectedProvider,
			ModelName:   selectedModel,
			AutoSave:    autoSave,
		}),
		tea.WithAltScreen(),
		tea.WithoutBracketedPaste(), // Avoid escape sequence issues
	)
	if _, err := p.Run(); err != nil {
		fmt.Printf("Error running TUI: %v\n", err)
		os.Exit(1)
	}
}

// Execute runs the root command
func Execute() {
	// A .env in the working directory supplies API keys during
	// development; absence is fine.
	_ = godotenv.Load()

	logFile, err := logging.Setup(config.LogPath(), slog.LevelInfo)
	if err == nil {
		defer logFile.Close()
	}

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.Flags().StringVarP(&providerFlag, "provider", "p", "", "Backend provider (gemini, deepseek, openai)")
	rootCmd.Flags().StringVarP(&modelFlag, "model", "m", "", "Model to use (provider-specific)")
	rootCmd.Flags().StringVar(&resumeFlag, "resume", "", "Resume a saved conversation by id")
	rootCmd.Flags().BoolVar(&shareFlag, "share", false, "Broadcast this session over the configured broker")
	rootCmd.Flags().IntVar(&maxTurnsFlag, "max-turns", 0, "Override the session turn budget")
}
