package main

import (
	"bufio"
	"context"
	"fmt"
	"mime"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/IcensRAGHomework/rag1-Kllin0219/config"
	"github.com/IcensRAGHomework/rag1-Kllin0219/internal/agent"
	"github.com/IcensRAGHomework/rag1-Kllin0219/internal/api"
	"github.com/IcensRAGHomework/rag1-Kllin0219/internal/credentials"
	"github.com/IcensRAGHomework/rag1-Kllin0219/internal/holiday"
	"github.com/IcensRAGHomework/rag1-Kllin0219/internal/jsonout"
	"github.com/IcensRAGHomework/rag1-Kllin0219/internal/llm"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

const sampleQuestion = "2024年台灣10月紀念日有哪些?"

const askTimeout = 5 * time.Minute

var (
	cfg         *config.Config
	logger      zerolog.Logger
	llmProvider string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "holiday-agent [question]",
		Short: "Holiday assistant backed by a hosted chat model",
		Long: `Holiday Agent answers questions about holidays and memorial days with a
hosted chat model and the Calendarific holiday API.

Exercises:
  hw01   ask the model directly, answer as {"Result": [{"date", "name"}]}
  hw02   same, but the model may call the get_holidays tool
  hw03   two questions in one session; the second decides whether a
         holiday should be added to the first answer's list
  hw04   answer a question about an image
  demo   a single plain chat call

Examples:
  holiday-agent "2024年台灣10月紀念日有哪些?"
  holiday-agent hw02 "2024年台灣10月紀念日有哪些?"
  holiday-agent hw04 --image score.png "請問中華台北的積分是多少"
  holiday-agent chat
  holiday-agent serve --port 8080`,
		Args:         cobra.ArbitraryArgs,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = config.Load()
			if err != nil {
				return err
			}
			if llmProvider != "" {
				cfg.LLMProvider = llmProvider
			}

			level, err := zerolog.ParseLevel(cfg.LogLevel)
			if err != nil {
				level = zerolog.InfoLevel
			}
			logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
				Level(level).
				With().
				Timestamp().
				Logger()

			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			question := sampleQuestion
			if len(args) > 0 {
				question = strings.Join(args, " ")
			}
			return runExercise(func(ctx context.Context, ag *agent.Agent) (string, error) {
				return ag.GenerateHW01(ctx, question)
			})
		},
	}

	rootCmd.PersistentFlags().StringVar(&llmProvider, "llm", "", "LLM provider: azure, claude, ollama, auto (default from LLM_PROVIDER)")

	rootCmd.AddCommand(hw01Cmd())
	rootCmd.AddCommand(hw02Cmd())
	rootCmd.AddCommand(hw03Cmd())
	rootCmd.AddCommand(hw04Cmd())
	rootCmd.AddCommand(demoCmd())
	rootCmd.AddCommand(chatCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(testCmd())
	rootCmd.AddCommand(configCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func hw01Cmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hw01 [question]",
		Short: "Ask the model and force the holiday list JSON",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			question := questionFrom(args)
			return runExercise(func(ctx context.Context, ag *agent.Agent) (string, error) {
				return ag.GenerateHW01(ctx, question)
			})
		},
	}
}

func hw02Cmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hw02 [question]",
		Short: "Answer with the get_holidays tool available",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			question := questionFrom(args)
			return runExercise(func(ctx context.Context, ag *agent.Agent) (string, error) {
				return ag.GenerateHW02(ctx, question)
			})
		},
	}
}

func hw03Cmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hw03 <question2> <question3>",
		Short: "Ask two questions in one session",
		Long: `Ask question2 (a holiday list question) and then question3 in the same
session. question3 is answered as {"Result": {"add": bool, "reason": "..."}}.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExercise(func(ctx context.Context, ag *agent.Agent) (string, error) {
				return ag.GenerateHW03(ctx, args[0], args[1])
			})
		},
	}
}

func hw04Cmd() *cobra.Command {
	var imagePath string

	cmd := &cobra.Command{
		Use:   "hw04 --image <file> <question>",
		Short: "Answer a question about an image",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			image, err := readImage(imagePath)
			if err != nil {
				return err
			}
			question := strings.Join(args, " ")
			return runExercise(func(ctx context.Context, ag *agent.Agent) (string, error) {
				return ag.GenerateHW04(ctx, question, image)
			})
		},
	}

	cmd.Flags().StringVarP(&imagePath, "image", "i", "", "Path to the image file")
	cmd.MarkFlagRequired("image")
	return cmd
}

func demoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "demo [question]",
		Short: "Send one plain chat message and print the reply",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			question := strings.Join(args, " ")
			return runExercise(func(ctx context.Context, ag *agent.Agent) (string, error) {
				return ag.Demo(ctx, question)
			})
		},
	}
}

func chatCmd() *cobra.Command {
	var sessionID string

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive chat session",
		Long:  "Start an interactive chat session; the history is replayed on every turn",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(sessionID)
		},
	}

	cmd.Flags().StringVarP(&sessionID, "session", "s", "", "Session id (default from SESSION_ID)")
	return cmd
}

func serveCmd() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the REST API server",
		Long:  "Start the REST API server for programmatic access",
		RunE: func(cmd *cobra.Command, args []string) error {
			if port > 0 {
				cfg.ServerPort = port
			}
			return runServer()
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 0, "Port to listen on (default: 8080)")
	return cmd
}

func questionFrom(args []string) string {
	if len(args) == 0 {
		return sampleQuestion
	}
	return strings.Join(args, " ")
}

func readImage(path string) (llm.Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return llm.Image{}, fmt.Errorf("failed to read image: %w", err)
	}
	mediaType := mime.TypeByExtension(strings.ToLower(filepath.Ext(path)))
	if i := strings.IndexByte(mediaType, ';'); i >= 0 {
		mediaType = mediaType[:i]
	}
	return llm.Image{MediaType: mediaType, Data: data}, nil
}

func createAgent(ctx context.Context, sessions *agent.SessionStore) (*agent.Agent, error) {
	if err := cfg.Validate(); err != nil && cfg.Provider() != config.ProviderAuto {
		return nil, err
	}

	client, err := llm.NewFromConfig(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	var holidays agent.HolidaySource
	if err := cfg.RequireHolidayAPI(); err != nil {
		logger.Warn().Err(err).Msg("get_holidays tool disabled")
	} else {
		holidays = newHolidayClient()
	}

	return agent.NewAgent(client, holidays, logger, agent.Options{
		MaxTurns:  cfg.MaxTurns,
		SessionID: cfg.SessionID,
		Sessions:  sessions,
	}), nil
}

func newHolidayClient() *holiday.Client {
	return holiday.NewClient(holiday.Options{
		BaseURL:  cfg.CalendarificURL,
		APIKey:   cfg.CalendarificAPIKey,
		Country:  cfg.HolidayCountry,
		Language: cfg.HolidayLanguage,
	}, logger)
}

// runExercise prints the exercise result. The two JSON failure tokens are
// printed in place of a result, like any other answer.
func runExercise(fn func(ctx context.Context, ag *agent.Agent) (string, error)) error {
	ctx, cancel := context.WithTimeout(context.Background(), askTimeout)
	defer cancel()

	ag, err := createAgent(ctx, nil)
	if err != nil {
		return err
	}

	result, err := fn(ctx, ag)
	if err != nil {
		if token, ok := jsonout.Token(err); ok {
			fmt.Println(token)
			return nil
		}
		return err
	}

	fmt.Println(result)
	return nil
}

func runChat(sessionID string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ag, err := createAgent(ctx, nil)
	if err != nil {
		return err
	}
	if sessionID == "" {
		sessionID = cfg.SessionID
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Println("\nGoodbye!")
		cancel()
		os.Exit(0)
	}()

	fmt.Println("Holiday Agent - ask about holidays and memorial days")
	fmt.Println("===================================================")
	fmt.Println("Type 'clear' to reset the conversation, 'exit' or 'quit' to end the session.")
	fmt.Println()

	reader := bufio.NewReader(os.Stdin)

	for {
		fmt.Print("You: ")
		input, err := reader.ReadString('\n')
		if err != nil {
			return err
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}

		if input == "exit" || input == "quit" {
			fmt.Println("Goodbye!")
			return nil
		}

		if input == "clear" {
			ag.ClearSession(sessionID)
			fmt.Println("Conversation cleared.")
			continue
		}

		fmt.Println()
		fmt.Print("Thinking...")

		response, err := ag.Chat(ctx, sessionID, input)
		if err != nil {
			fmt.Printf("\rError: %v\n\n", err)
			continue
		}

		fmt.Print("\r")
		fmt.Printf("Assistant: %s\n\n", response)
	}
}

func runServer() error {
	sessions := agent.NewSessionStore()
	ag, err := createAgent(context.Background(), sessions)
	if err != nil {
		return err
	}

	server := api.NewServer(ag, sessions, logger, cfg)
	return server.Start()
}

func testCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "test",
		Short: "Test holiday API and model connectivity",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTest()
		},
	}
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage credentials stored in OS keychain",
		Long: `Manage API credentials stored securely in your OS keychain.

Credentials are stored in:
  - macOS: Keychain Access
  - Windows: Credential Manager
  - Linux: Secret Service (GNOME Keyring)

Examples:
  holiday-agent config setup          # Interactive setup
  holiday-agent config show           # Show configured credentials
  holiday-agent config clear          # Remove all stored credentials`,
	}

	cmd.AddCommand(configSetupCmd())
	cmd.AddCommand(configShowCmd())
	cmd.AddCommand(configClearCmd())

	return cmd
}

func configSetupCmd() *cobra.Command {
	var azureKey, anthropicKey, calendarificKey string

	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Configure API credentials",
		Long:  "Interactively configure and store API credentials in OS keychain",
		RunE: func(cmd *cobra.Command, args []string) error {
			if azureKey == "" {
				fmt.Print("Azure OpenAI API Key (press Enter to skip): ")
				key, _ := readPassword()
				azureKey = strings.TrimSpace(key)
			}

			if anthropicKey == "" {
				fmt.Print("Anthropic API Key (press Enter to skip): ")
				key, _ := readPassword()
				anthropicKey = strings.TrimSpace(key)
			}

			if calendarificKey == "" {
				fmt.Print("Calendarific API Key (press Enter to skip): ")
				key, _ := readPassword()
				calendarificKey = strings.TrimSpace(key)
			}

			if err := credentials.Setup(azureKey, anthropicKey, calendarificKey); err != nil {
				return fmt.Errorf("failed to store credentials: %w", err)
			}

			fmt.Println("\nCredentials stored securely in OS keychain.")
			fmt.Println("You can now run holiday-agent without setting environment variables.")
			return nil
		},
	}

	cmd.Flags().StringVar(&azureKey, "azure-key", "", "Azure OpenAI API key")
	cmd.Flags().StringVar(&anthropicKey, "anthropic-key", "", "Anthropic API key")
	cmd.Flags().StringVar(&calendarificKey, "calendarific-key", "", "Calendarific API key")

	return cmd
}

func configShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show configured credentials",
		Long:  "Display which credentials are configured in the OS keychain",
		RunE: func(cmd *cobra.Command, args []string) error {
			configured := credentials.ListConfigured()

			fmt.Println("Credential Status (stored in OS keychain):")
			fmt.Println("==========================================")

			status := func(ok bool) string {
				if ok {
					return "configured"
				}
				return "not set"
			}

			fmt.Printf("  Azure OpenAI API Key: %s\n", status(configured[credentials.KeyAzureOpenAI]))
			fmt.Printf("  Anthropic API Key:    %s\n", status(configured[credentials.KeyAnthropic]))
			fmt.Printf("  Calendarific API Key: %s\n", status(configured[credentials.KeyCalendarific]))

			fmt.Println("\nNote: Environment variables override keychain values.")
			return nil
		},
	}
}

func configClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Clear all stored credentials",
		Long:  "Remove all credentials from the OS keychain",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Print("Are you sure you want to clear all stored credentials? [y/N]: ")
			reader := bufio.NewReader(os.Stdin)
			response, _ := reader.ReadString('\n')
			response = strings.TrimSpace(strings.ToLower(response))

			if response != "y" && response != "yes" {
				fmt.Println("Cancelled.")
				return nil
			}

			if err := credentials.ClearAll(); err != nil {
				fmt.Printf("Warning: some credentials may not have been cleared: %v\n", err)
			}

			fmt.Println("All credentials cleared from keychain.")
			return nil
		},
	}
}

func readPassword() (string, error) {
	if term.IsTerminal(int(os.Stdin.Fd())) {
		fmt.Println()
		bytes, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Println()
		return string(bytes), err
	}
	reader := bufio.NewReader(os.Stdin)
	return reader.ReadString('\n')
}

func runTest() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	fmt.Println("Testing Calendarific holiday API connectivity...")
	fmt.Printf("  API URL: %s\n", cfg.CalendarificURL)
	fmt.Printf("  Country: %s\n", cfg.HolidayCountry)

	holidayErr := cfg.RequireHolidayAPI()
	if holidayErr == nil {
		var count int
		count, holidayErr = newHolidayClient().Ping(ctx)
		if holidayErr == nil {
			fmt.Printf("  OK - %d holidays this year\n\n", count)
		}
	}
	if holidayErr != nil {
		fmt.Printf("  FAILED: %v\n\n", holidayErr)
	}

	fmt.Printf("Testing chat model connectivity (provider: %s)...\n", cfg.Provider())
	client, err := llm.NewFromConfig(ctx, cfg, logger)
	if err != nil {
		fmt.Printf("  FAILED: %v\n", err)
		return err
	}
	fmt.Printf("  Client: %s\n", client.Name())

	resp, err := client.Chat(ctx, llm.Request{Messages: []llm.Message{llm.UserMessage("Reply with the single word: pong")}})
	if err != nil {
		fmt.Printf("  FAILED: %v\n", err)
		return err
	}
	fmt.Printf("  OK - %s\n", strings.TrimSpace(resp.Content))

	return holidayErr
}
