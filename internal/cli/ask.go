// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// ask.go - Single question command handler for the llmui CLI.
//
// Handles "llmui ask" which sends one question to Ollama and streams the
// reply to stdout.
//
// Command: ask [question]
// Short:   Ask a single question
//
// Examples:
//   llmui ask "What is a goroutine?"
//   llmui ask --json "List common HTTP status codes"
//   llmui ask "Review this code:" --file main.go
//   cat error.log | llmui ask "Explain this error"
//
// Flags:
//   -f, --file FILE     Include file content with the question
//   -m, --model NAME    Use specific model (overrides config)
//   --json              Output response as JSON
//   -q, --quiet         Minimal output

package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/jeranaias/llmui/internal/config"
	"github.com/jeranaias/llmui/internal/ollama"
)

const (
	// MaxFileSize is the maximum file size to include with a question (50KB).
	MaxFileSize = 50 * 1024
)

// askJSONResponse is the --json output shape for a completed ask.
type askJSONResponse struct {
	Success      bool    `json:"success"`
	Model        string  `json:"model"`
	Response     string  `json:"response"`
	PromptTokens int     `json:"prompt_tokens"`
	ReplyTokens  int     `json:"reply_tokens"`
	DurationMs   int64   `json:"duration_ms"`
	TokensPerSec float64 `json:"tokens_per_sec"`
}

// readFileForContext reads a file and formats it for inclusion in a prompt.
// Files larger than MaxFileSize are rejected.
func readFileForContext(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("file not found: %s", path)
		}
		return "", fmt.Errorf("cannot access file: %w", err)
	}

	if info.Size() > MaxFileSize {
		return "", fmt.Errorf("file too large: %d bytes (max %d bytes)", info.Size(), MaxFileSize)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read file: %w", err)
	}

	var builder strings.Builder
	builder.WriteString(fmt.Sprintf("\n--- File: %s ---\n", path))
	builder.Write(content)
	builder.WriteString("\n--- End of file ---\n")

	return builder.String(), nil
}

// readStdinQuestion reads a piped question from stdin. Returns empty
// string when stdin is a terminal.
func readStdinQuestion() string {
	stat, err := os.Stdin.Stat()
	if err != nil || (stat.Mode()&os.ModeCharDevice) != 0 {
		return ""
	}

	reader := bufio.NewReader(os.Stdin)
	data, err := io.ReadAll(reader)
	if err != nil || len(data) == 0 {
		return ""
	}
	return strings.TrimSpace(string(data))
}

// resolveModel picks the model to use: CLI flag > config > client default.
func resolveModel(args Args, cfg *config.Config, client *ollama.Client) string {
	if args.Model != "" {
		return args.Model
	}
	if cfg.Ollama.Model != "" {
		return cfg.Ollama.Model
	}
	return client.DefaultModel()
}

// HandleAskCommand handles the "ask" command.
func HandleAskCommand(args Args) error {
	cfg, err := config.Load()
	if err != nil {
		return WrapError(err, "failed to load configuration")
	}

	question := args.Query
	if question == "" {
		question = readStdinQuestion()
	}
	if question == "" {
		return ErrMissingArgument("question", `llmui ask "your question"`)
	}

	if args.File != "" {
		fileContent, err := readFileForContext(args.File)
		if err != nil {
			return err
		}
		question = question + "\n" + fileContent

		if !args.Quiet && !args.JSON {
			fmt.Fprintf(os.Stderr, "%s Including file: %s\n",
				InfoStyle.Render("[+]"), args.File)
		}
	}

	client := ollama.NewClientWithConfig(&ollama.ClientConfig{
		BaseURL:      cfg.Ollama.URL,
		DefaultModel: cfg.Ollama.Model,
	})

	ctx := context.Background()
	if err := client.CheckRunning(ctx); err != nil {
		return err
	}

	modelName := resolveModel(args, cfg, client)
	messages := []ollama.Message{ollama.NewUserMessage(question)}

	if args.JSON {
		return askBlocking(ctx, cfg, client, modelName, messages)
	}
	return askStreaming(ctx, cfg, client, modelName, messages, args.Quiet)
}

// askBlocking performs a non-streaming request and prints the reply as JSON.
func askBlocking(ctx context.Context, cfg *config.Config, client *ollama.Client, modelName string, messages []ollama.Message) error {
	reqCtx, cancel := context.WithTimeout(ctx, cfg.OllamaTimeout())
	defer cancel()

	resp, err := client.Chat(reqCtx, modelName, messages)
	if err != nil {
		return err
	}

	return PrintJSON(askJSONResponse{
		Success:      true,
		Model:        resp.Model,
		Response:     resp.Message.Content,
		PromptTokens: resp.PromptEvalCount,
		ReplyTokens:  resp.EvalCount,
		DurationMs:   resp.TotalTime().Milliseconds(),
		TokensPerSec: resp.TokensPerSecond(),
	})
}

// askStreaming streams the reply to stdout, rendering markdown when
// stdout is a TTY (collected first so code fences format correctly).
func askStreaming(ctx context.Context, cfg *config.Config, client *ollama.Client, modelName string, messages []ollama.Message, quiet bool) error {
	useMarkdown := IsStdoutTTY()
	start := time.Now()

	var content strings.Builder
	var promptTokens, replyTokens int

	err := client.ChatStream(ctx, modelName, messages, func(chunk ollama.StreamChunk) {
		if chunk.Error != nil {
			fmt.Fprintf(os.Stderr, "\n%s %v\n", ErrorStyle.Render("[ERROR]"), chunk.Error)
			return
		}

		if !useMarkdown {
			fmt.Print(chunk.Content)
		}
		content.WriteString(chunk.Content)

		if chunk.Done {
			promptTokens = chunk.PromptTokens
			replyTokens = chunk.CompletionTokens
		}
	})
	if err != nil {
		return err
	}

	if useMarkdown {
		displayResponse(content.String())
	}
	fmt.Println()

	if !quiet {
		elapsed := time.Since(start)
		tps := 0.0
		if elapsed > 0 {
			tps = float64(replyTokens) / elapsed.Seconds()
		}
		fmt.Fprintf(os.Stderr, "%s %s | %d tokens | %s | %.1f tok/s\n",
			DimStyle.Render("[Stats]"),
			modelName,
			promptTokens+replyTokens,
			FormatDuration(elapsed),
			tps)
	}

	return nil
}
