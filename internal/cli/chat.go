// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// chat.go - Interactive chat command handler for the llmui CLI.
//
// Handles "llmui chat" which provides an interactive REPL for
// conversing with Ollama, as a terminal alternative to the web UI.
// The conversation can be saved to and loaded from the same chat store
// the web UI uses, so sessions move freely between the two.
//
// Command: chat
// Short:   Start an interactive chat session
//
// Examples:
//   llmui chat                        Start interactive chat (default model)
//   llmui chat --model llama3.2       Use specific model
//
// Interactive Commands (during chat):
//   /help               Show available commands
//   /clear              Clear conversation history
//   /model [name]       Show or switch model
//   /save [name]        Save the conversation
//   /load <name>        Load a saved chat
//   /list               List saved chats
//   /search <query>     Search saved chats
//   /export [format]    Export the conversation (md|json|html)
//   /stats              Show session statistics
//   /quit               Exit chat
//   Ctrl+C              Cancel current generation
//   Ctrl+D              Exit chat

package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/peterh/liner"

	"github.com/jeranaias/llmui/internal/config"
	"github.com/jeranaias/llmui/internal/export"
	"github.com/jeranaias/llmui/internal/history"
	"github.com/jeranaias/llmui/internal/model"
	"github.com/jeranaias/llmui/internal/ollama"
	"github.com/jeranaias/llmui/internal/session"
	"github.com/jeranaias/llmui/internal/sessionlog"
)

// =============================================================================
// INPUT HISTORY
// =============================================================================

// ChatInput provides line editing and input history for interactive chat.
type ChatInput struct {
	line        *liner.State
	historyFile string
}

// NewChatInput creates a ChatInput with persistent input history.
func NewChatInput() *ChatInput {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)

	configDir, err := config.ConfigDir()
	if err != nil {
		configDir = os.TempDir()
	}
	historyFile := filepath.Join(configDir, "chat_history")

	in := &ChatInput{
		line:        line,
		historyFile: historyFile,
	}
	in.LoadHistory()
	return in
}

// LoadHistory loads input history from file.
func (c *ChatInput) LoadHistory() {
	if f, err := os.Open(c.historyFile); err == nil {
		c.line.ReadHistory(f)
		f.Close()
	}
}

// ReadInput reads a line of input with the given prompt.
// Supports history navigation with arrow keys.
func (c *ChatInput) ReadInput(prompt string) (string, error) {
	input, err := c.line.Prompt(prompt)
	if err != nil {
		return "", err
	}

	if strings.TrimSpace(input) != "" {
		c.line.AppendHistory(input)
	}

	return input, nil
}

// SaveHistory persists input history to file with owner-only permissions.
func (c *ChatInput) SaveHistory() {
	if err := config.EnsureConfigDir(); err != nil {
		return
	}

	f, err := os.OpenFile(c.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return
	}
	defer f.Close()

	c.line.WriteHistory(f)
}

// Close saves history and closes the liner.
func (c *ChatInput) Close() {
	c.SaveHistory()
	c.line.Close()
}

// =============================================================================
// SESSION STATE
// =============================================================================

// ChatSession holds the state for an interactive chat session.
type ChatSession struct {
	// Conversation being built
	Conv *model.Conversation

	// Name the conversation was last saved under (empty = unsaved)
	SavedName string

	Config *config.Config
	Model  string
	Quiet  bool

	// Tracking
	StartTime   time.Time
	TotalTokens int
	Turns       int

	Client *ollama.Client
	Store  *history.Store
	Log    *sessionlog.Logger

	// Session lifecycle: ID, activity tracking, auto-save scheduling
	Session *session.Manager

	// Cancel function for the current stream
	CancelFunc context.CancelFunc

	// Input handler
	Input *ChatInput
}

// NewChatSession creates a new chat session.
func NewChatSession(args Args, cfg *config.Config) (*ChatSession, error) {
	client := ollama.NewClientWithConfig(&ollama.ClientConfig{
		BaseURL:      cfg.Ollama.URL,
		DefaultModel: cfg.Ollama.Model,
	})

	modelName := resolveModel(args, cfg, client)

	store, err := openStore(cfg)
	if err != nil {
		return nil, err
	}

	sessCfg := session.DefaultConfig()
	sessCfg.AutoSaveEnabled = cfg.History.AutoSave
	if cfg.History.AutoSaveIntervalSecs > 0 {
		sessCfg.AutoSaveInterval = time.Duration(cfg.History.AutoSaveIntervalSecs) * time.Second
	}
	mgr := session.NewManager(sessCfg)

	cs := &ChatSession{
		Conv:      model.NewConversation(modelName),
		Config:    cfg,
		Model:     modelName,
		Quiet:     args.Quiet,
		StartTime: time.Now(),
		Client:    client,
		Store:     store,
		Log:       openSessionLog(cfg, mgr.SessionID()),
		Session:   mgr,
		Input:     NewChatInput(),
	}

	// Auto-save only re-saves chats the user has already named
	mgr.SetAutoSaveCallback(func() error {
		if cs.SavedName == "" || cs.Conv.IsEmpty() {
			return nil
		}
		_, err := cs.Store.Save(cs.SavedName, cs.Conv)
		return err
	})

	return cs, nil
}

// openStore opens the chat store configured in cfg.
func openStore(cfg *config.Config) (*history.Store, error) {
	dir, err := cfg.HistoryDir()
	if err != nil {
		return nil, WrapError(err, "failed to resolve history directory")
	}
	return history.NewStoreWithDir(dir)
}

// openSessionLog opens a per-session event log, or returns nil when
// session logging is disabled or unavailable. Chat works without it.
func openSessionLog(cfg *config.Config, sessionID string) *sessionlog.Logger {
	if !cfg.Logging.SessionLogsEnabled {
		return nil
	}

	dir, err := cfg.SessionLogDir()
	if err != nil {
		return nil
	}

	logger, err := sessionlog.NewWithDir(sessionID, dir)
	if err != nil {
		return nil
	}
	return logger
}

// =============================================================================
// CHAT HANDLER
// =============================================================================

// HandleChatCommand handles the "chat" command.
func HandleChatCommand(args Args) error {
	if err := RequiresTTY("chat"); err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return WrapError(err, "failed to load configuration")
	}

	session, err := NewChatSession(args, cfg)
	if err != nil {
		return err
	}

	ctx := context.Background()
	if err := session.Client.CheckRunning(ctx); err != nil {
		return err
	}

	if session.Log != nil {
		session.Log.LogSessionStart(session.Model)
		defer func() {
			session.Log.LogSessionEnd()
			session.Log.Close()
		}()
	}

	if !session.Quiet {
		printWelcome(session)
	}

	defer session.Input.Close()

	// Background auto-save for named conversations
	runCtx, stopRun := context.WithCancel(ctx)
	defer stopRun()
	go session.Session.Run(runCtx, 10*time.Second)

	// First Ctrl+C cancels the in-flight generation instead of killing
	// the process
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		for range sigChan {
			if session.CancelFunc != nil {
				session.CancelFunc()
				session.CancelFunc = nil
				fmt.Fprintln(os.Stderr, "\n"+WarningStyle.Render("[Cancelled]"))
			}
		}
	}()

	for {
		input, err := session.Input.ReadInput(PromptStyle.Render("llmui> "))
		if err != nil {
			// liner.ErrPromptAborted is Ctrl+C, anything else is EOF;
			// both exit gracefully
			fmt.Println()
			printExitSummary(session)
			return nil
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}

		if strings.HasPrefix(input, "/") {
			shouldContinue, err := handleSlashCommand(input, session)
			if err != nil {
				fmt.Fprintf(os.Stderr, "%s %v\n", ErrorStyle.Render("[Error]"), err)
			}
			if !shouldContinue {
				printExitSummary(session)
				return nil
			}
			continue
		}

		if strings.EqualFold(input, "exit") || strings.EqualFold(input, "quit") {
			printExitSummary(session)
			return nil
		}

		if err := processMessage(session, input); err != nil {
			fmt.Fprintf(os.Stderr, "%s %v\n", ErrorStyle.Render("[Error]"), err)
			if session.Log != nil {
				session.Log.LogError(session.Model, err)
			}
		}
	}
}

// =============================================================================
// MESSAGE PROCESSING
// =============================================================================

// ollamaMessages converts the conversation transcript to wire messages.
func ollamaMessages(conv *model.Conversation) []ollama.Message {
	out := make([]ollama.Message, 0, len(conv.Messages))
	for _, msg := range conv.Messages {
		out = append(out, ollama.Message{
			Role:    msg.Role.String(),
			Content: msg.Content,
		})
	}
	return out
}

// processMessage sends a message to Ollama and streams the reply.
func processMessage(session *ChatSession, input string) error {
	session.Conv.AppendUser(input)

	if session.Log != nil {
		session.Log.LogPrompt(session.Model, input)
	}

	ctx, cancel := context.WithCancel(context.Background())
	session.CancelFunc = cancel
	defer func() {
		session.CancelFunc = nil
		cancel()
	}()

	useMarkdown := IsStdoutTTY()
	start := time.Now()

	var content strings.Builder
	var promptTokens, replyTokens int
	var tps float64

	fmt.Println()

	err := session.Client.ChatStream(ctx, session.Model, ollamaMessages(session.Conv), func(chunk ollama.StreamChunk) {
		if chunk.Error != nil {
			fmt.Fprintf(os.Stderr, "\n%s %v\n", ErrorStyle.Render("[Error]"), chunk.Error)
			return
		}

		// Markdown replies are collected and rendered whole so code
		// fences format correctly
		if !useMarkdown {
			fmt.Print(chunk.Content)
		}
		content.WriteString(chunk.Content)

		if chunk.Done {
			promptTokens = chunk.PromptTokens
			replyTokens = chunk.CompletionTokens
			if chunk.EvalDuration > 0 {
				tps = float64(replyTokens) / chunk.EvalDuration.Seconds()
			}
		}
	})
	if err != nil {
		// Drop the user message so a retry does not duplicate it
		if n := len(session.Conv.Messages); n > 0 {
			session.Conv.Messages = session.Conv.Messages[:n-1]
		}
		return err
	}

	reply := content.String()
	if useMarkdown {
		displayResponse(reply)
	}
	fmt.Println()
	fmt.Println()

	msg := session.Conv.AppendAssistant(reply)
	msg.Model = session.Model
	msg.TokenCount = replyTokens
	msg.Duration = time.Since(start)
	msg.TokensPerSec = tps

	session.TotalTokens += promptTokens + replyTokens
	session.Turns++
	session.Session.RecordActivity()
	session.Session.MarkDirty()

	if session.Log != nil {
		session.Log.LogReply(session.Model, reply, replyTokens)
	}

	if !session.Quiet {
		fmt.Fprintf(os.Stderr, "%s %d tokens | %s | %.1f tok/s\n",
			DimStyle.Render("[Stats]"),
			promptTokens+replyTokens,
			FormatDuration(time.Since(start)),
			tps)
	}

	return nil
}

// =============================================================================
// SLASH COMMANDS
// =============================================================================

// handleSlashCommand processes slash commands.
// Returns (shouldContinue, error) where shouldContinue=false means exit.
func handleSlashCommand(cmd string, session *ChatSession) (bool, error) {
	parts := strings.Fields(cmd)
	if len(parts) == 0 {
		return true, nil
	}

	command := strings.ToLower(parts[0])
	args := parts[1:]

	switch command {
	case "/help", "/h", "/?":
		printChatHelp()
		return true, nil

	case "/clear", "/c":
		session.Conv.Reset()
		session.SavedName = ""
		fmt.Println(SuccessStyle.Render("[Conversation cleared]"))
		return true, nil

	case "/model", "/m":
		return true, switchModel(session, args)

	case "/save":
		return true, saveConversation(session, args)

	case "/load":
		return true, loadConversation(session, args)

	case "/list", "/ls", "/l":
		return true, listChats(session)

	case "/search":
		return true, searchChats(session, strings.Join(args, " "))

	case "/export", "/e":
		return true, exportConversation(session, args)

	case "/stats", "/s":
		printSessionStats(session)
		return true, nil

	case "/quit", "/q", "/exit":
		return false, nil

	default:
		return true, fmt.Errorf("unknown command: %s (try /help)", command)
	}
}

// switchModel shows or changes the active model.
func switchModel(session *ChatSession, args []string) error {
	if len(args) == 0 {
		fmt.Printf("%s %s\n", LabelStyle.Render("Current model:"), ValueStyle.Render(session.Model))
		return nil
	}

	name := args[0]
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if !session.Client.ModelExists(ctx, name) {
		return ErrNotFound("model", name)
	}

	session.Model = name
	session.Conv.Model = name
	fmt.Printf("%s %s\n", SuccessStyle.Render("[Model switched]"), name)
	return nil
}

// saveConversation saves the transcript to the chat store.
func saveConversation(session *ChatSession, args []string) error {
	if session.Conv.IsEmpty() {
		return fmt.Errorf("nothing to save yet")
	}

	name := session.SavedName
	if len(args) > 0 {
		name = strings.Join(args, " ")
	}
	if name == "" {
		name = session.Conv.Summary()
	}

	saved, err := session.Store.Save(name, session.Conv)
	if err != nil {
		return err
	}

	session.SavedName = saved
	session.Session.MarkClean()
	if session.Log != nil {
		session.Log.LogChatSaved(saved)
	}

	fmt.Printf("%s %s\n", SuccessStyle.Render("[Saved]"), saved)
	return nil
}

// loadConversation replaces the transcript with a saved chat.
func loadConversation(session *ChatSession, args []string) error {
	if len(args) == 0 {
		return ErrMissingArgument("name", "/load <name>")
	}

	name := strings.Join(args, " ")
	conv, err := session.Store.Load(name)
	if err != nil {
		return err
	}

	session.Conv = conv
	session.SavedName = history.SanitizeName(name)
	if conv.Model != "" {
		session.Model = conv.Model
	}

	if session.Log != nil {
		session.Log.LogChatLoaded(session.SavedName)
	}

	fmt.Printf("%s %s (%d messages, model %s)\n",
		SuccessStyle.Render("[Loaded]"), session.SavedName, conv.Len(), session.Model)
	return nil
}

// listChats prints the saved chat table.
func listChats(session *ChatSession) error {
	metas, err := session.Store.List()
	if err != nil {
		return err
	}
	if len(metas) == 0 {
		fmt.Println(DimStyle.Render("No saved chats."))
		return nil
	}

	rows := make([][]string, 0, len(metas))
	for _, meta := range metas {
		rows = append(rows, []string{
			meta.Name,
			meta.Model,
			fmt.Sprintf("%d", meta.MessageCount),
			FormatRelativeTime(meta.SavedAt),
			TruncateCell(meta.Preview, 40),
		})
	}
	fmt.Print(RenderTable([]string{"NAME", "MODEL", "MSGS", "SAVED", "PREVIEW"}, rows))
	return nil
}

// searchChats searches saved chats by content.
func searchChats(session *ChatSession, query string) error {
	if query == "" {
		return ErrMissingArgument("query", "/search <query>")
	}

	metas, err := session.Store.SearchMessages(query)
	if err != nil {
		return err
	}
	if len(metas) == 0 {
		fmt.Println(DimStyle.Render("No matches."))
		return nil
	}

	for _, meta := range metas {
		fmt.Printf("  %s %s\n", ValueStyle.Render(meta.Name),
			DimStyle.Render("("+TruncateCell(meta.Preview, 50)+")"))
	}
	return nil
}

// exportConversation writes the transcript to a file in the requested format.
func exportConversation(session *ChatSession, args []string) error {
	if session.Conv.IsEmpty() {
		return fmt.Errorf("nothing to export yet")
	}

	format := "md"
	if len(args) > 0 {
		format = args[0]
	}

	opts := export.DefaultOptions()
	opts.Theme = session.Config.UI.Theme

	exporter, err := export.ForFormat(format, opts)
	if err != nil {
		return ErrUnsupportedFormat(format, []string{"md", "json", "html"})
	}

	path, err := export.ExportToFile(session.Conv, exporter, opts)
	if err != nil {
		return err
	}

	fmt.Printf("%s %s\n", SuccessStyle.Render("[Exported]"), path)
	return nil
}

// =============================================================================
// DISPLAY
// =============================================================================

// printWelcome shows the chat banner.
func printWelcome(session *ChatSession) {
	fmt.Println(TitleStyle.Render("llmui chat"))
	fmt.Printf("%s %s\n", LabelStyle.Render("Model:"), ValueStyle.Render(session.Model))
	fmt.Printf("%s %s\n", LabelStyle.Render("Backend:"), ValueStyle.Render(session.Client.BaseURL()))
	fmt.Println(DimStyle.Render("Type /help for commands, /quit or Ctrl+D to exit."))
	fmt.Println()
}

// printChatHelp lists the interactive commands.
func printChatHelp() {
	help := [][]string{
		{"/help", "Show this help"},
		{"/clear", "Clear the conversation"},
		{"/model [name]", "Show or switch model"},
		{"/save [name]", "Save the conversation"},
		{"/load <name>", "Load a saved chat"},
		{"/list", "List saved chats"},
		{"/search <query>", "Search saved chats"},
		{"/export [format]", "Export (md|json|html)"},
		{"/stats", "Show session statistics"},
		{"/quit", "Exit chat"},
	}

	fmt.Println(SectionStyle.Render("Commands"))
	for _, entry := range help {
		fmt.Printf("  %s %s\n", RenderLabel(entry[0], 18), DimStyle.Render(entry[1]))
	}
}

// printSessionStats shows counters for the current session.
func printSessionStats(session *ChatSession) {
	fmt.Println(SectionStyle.Render("Session"))
	fmt.Printf("  %s %s\n", RenderLabel("Model:"), ValueStyle.Render(session.Model))
	fmt.Printf("  %s %d\n", RenderLabel("Messages:"), session.Conv.Len())
	fmt.Printf("  %s %d\n", RenderLabel("Turns:"), session.Turns)
	fmt.Printf("  %s %d\n", RenderLabel("Tokens:"), session.TotalTokens)
	fmt.Printf("  %s %s\n", RenderLabel("Elapsed:"), FormatDuration(time.Since(session.StartTime)))
	if session.SavedName != "" {
		fmt.Printf("  %s %s\n", RenderLabel("Saved as:"), ValueStyle.Render(session.SavedName))
	}
}

// printExitSummary shows the end-of-session summary.
func printExitSummary(session *ChatSession) {
	if session.Quiet || session.Turns == 0 {
		return
	}

	fmt.Println(RenderSeparator(40))
	fmt.Printf("%s %d turns, %d tokens, %s\n",
		DimStyle.Render("Session:"),
		session.Turns,
		session.TotalTokens,
		FormatDuration(time.Since(session.StartTime)))
	if session.SavedName == "" && !session.Conv.IsEmpty() {
		fmt.Println(DimStyle.Render("Conversation was not saved. Use /save next time to keep it."))
	}
}
