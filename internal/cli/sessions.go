// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// sessions.go - Saved chat management for the llmui CLI.
//
// Handles "llmui sessions" which lists, shows, searches, exports and
// deletes the same saved chats the web UI works with.
//
// Command: sessions [subcommand]
// Aliases: session, chats
//
// Examples:
//   llmui sessions list
//   llmui sessions show go-help
//   llmui sessions search "context cancellation"
//   llmui sessions export go-help --format html
//   llmui sessions delete go-help --confirm

package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/jeranaias/llmui/internal/config"
	"github.com/jeranaias/llmui/internal/export"
	"github.com/jeranaias/llmui/internal/history"
	"github.com/jeranaias/llmui/internal/index"
	"github.com/jeranaias/llmui/internal/model"
)

// HandleSessionsCommand dispatches sessions subcommands.
func HandleSessionsCommand(args Args) error {
	cfg, err := config.Load()
	if err != nil {
		return WrapError(err, "failed to load configuration")
	}

	store, err := openStore(cfg)
	if err != nil {
		return err
	}

	switch args.Subcommand {
	case "", "list", "ls", "l":
		return sessionsList(store, args)
	case "show":
		return sessionsShow(store, args)
	case "search":
		return sessionsSearch(store, args)
	case "export":
		return sessionsExport(store, cfg, args)
	case "delete", "rm":
		return sessionsDelete(store, args)
	default:
		return NewValidationError("subcommand", args.Subcommand,
			"expected list, show, search, export or delete")
	}
}

// sessionsList prints all saved chats.
func sessionsList(store *history.Store, args Args) error {
	metas, err := store.List()
	if err != nil {
		return err
	}

	if args.JSON {
		return PrintJSON(metas)
	}

	if len(metas) == 0 {
		fmt.Println(DimStyle.Render("No saved chats. Save one from the web UI or with /save in llmui chat."))
		return nil
	}

	rows := make([][]string, 0, len(metas))
	for _, meta := range metas {
		rows = append(rows, []string{
			meta.Name,
			meta.Model,
			fmt.Sprintf("%d", meta.MessageCount),
			FormatRelativeTime(meta.SavedAt),
			TruncateCell(meta.Preview, 48),
		})
	}

	fmt.Println(TitleStyle.Render(fmt.Sprintf("Saved chats (%d)", len(metas))))
	fmt.Print(RenderTable([]string{"NAME", "MODEL", "MSGS", "SAVED", "PREVIEW"}, rows))
	return nil
}

// sessionsShow prints a saved chat transcript.
func sessionsShow(store *history.Store, args Args) error {
	if args.Name == "" {
		return ErrMissingArgument("name", "llmui sessions show <name>")
	}

	conv, err := store.Load(args.Name)
	if err != nil {
		return err
	}

	if args.JSON {
		return PrintJSON(conv)
	}

	fmt.Println(TitleStyle.Render(history.SanitizeName(args.Name)))
	fmt.Printf("%s %s\n", LabelStyle.Render("Model:"), ValueStyle.Render(conv.Model))
	fmt.Printf("%s %d\n", LabelStyle.Render("Messages:"), conv.Len())
	fmt.Printf("%s %s\n", LabelStyle.Render("Created:"), conv.CreatedAt.Format("2006-01-02 15:04"))
	fmt.Println()

	for _, msg := range conv.Messages {
		printTranscriptMessage(msg)
	}
	return nil
}

// printTranscriptMessage prints one message with a role header.
func printTranscriptMessage(msg *model.Message) {
	var header string
	switch msg.Role {
	case model.RoleUser:
		header = PromptStyle.Render("[You]")
	case model.RoleAssistant:
		header = SuccessStyle.Render("[Assistant]")
	default:
		header = DimStyle.Render("[" + msg.Role.DisplayName() + "]")
	}

	fmt.Printf("%s %s\n", header, DimStyle.Render(msg.Timestamp.Format("15:04:05")))
	if msg.Role == model.RoleAssistant && IsStdoutTTY() {
		fmt.Print(renderMarkdown(msg.Content))
	} else {
		fmt.Println(WrapText(msg.Content, 0))
	}
	fmt.Println()
}

// sessionsSearch runs a full-text query across saved chats. The SQLite
// index gives ranked snippets; if it cannot be opened the store's
// substring scan still answers the query.
func sessionsSearch(store *history.Store, args Args) error {
	if args.Query == "" {
		return ErrMissingArgument("query", "llmui sessions search <query>")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	idxCfg := index.DefaultConfig(store)
	idxCfg.EnableWatch = false
	idx, err := index.New(store, idxCfg)
	if err == nil {
		defer idx.Close()

		if stats, statErr := idx.GetStats(); statErr == nil && stats.ChatCount == 0 {
			// First search on this machine: build the index
			if rebErr := idx.Rebuild(ctx); rebErr != nil {
				return rebErr
			}
		}

		hits, searchErr := idx.SearchMessages(ctx, args.Query, 25)
		if searchErr == nil {
			return printMessageHits(args, hits)
		}
		// Fall through to the store scan on FTS errors
	}

	metas, err := store.SearchMessages(args.Query)
	if err != nil {
		return err
	}

	if args.JSON {
		return PrintJSON(metas)
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

// printMessageHits prints ranked search results.
func printMessageHits(args Args, hits []index.MessageHit) error {
	if args.JSON {
		return PrintJSON(hits)
	}
	if len(hits) == 0 {
		fmt.Println(DimStyle.Render("No matches."))
		return nil
	}

	for _, hit := range hits {
		fmt.Printf("%s %s %s\n",
			ValueStyle.Render(hit.ChatName),
			DimStyle.Render("#"+fmt.Sprintf("%d", hit.Position)),
			DimStyle.Render(hit.Role))
		fmt.Printf("  %s\n", TruncateCell(hit.Snippet, GetTerminalWidth()-4))
	}
	return nil
}

// sessionsExport writes a saved chat to a file in the requested format.
func sessionsExport(store *history.Store, cfg *config.Config, args Args) error {
	if args.Name == "" {
		return ErrMissingArgument("name", "llmui sessions export <name> [--format md|json|html]")
	}

	conv, err := store.Load(args.Name)
	if err != nil {
		return err
	}

	format := args.Format
	if format == "" {
		format = "md"
	}

	opts := export.DefaultOptions()
	opts.Theme = cfg.UI.Theme

	exporter, err := export.ForFormat(format, opts)
	if err != nil {
		return ErrUnsupportedFormat(format, []string{"md", "json", "html"})
	}

	path, err := export.ExportToFile(conv, exporter, opts)
	if err != nil {
		return err
	}

	if args.JSON {
		return PrintJSON(map[string]string{"exported": path})
	}
	fmt.Printf("%s %s\n", SuccessStyle.Render("[Exported]"), path)
	return nil
}

// sessionsDelete removes a saved chat. Requires --confirm.
func sessionsDelete(store *history.Store, args Args) error {
	if args.Name == "" {
		return ErrMissingArgument("name", "llmui sessions delete <name> --confirm")
	}

	if !args.Confirm {
		return NewValidationError("confirm", "",
			"deleting a chat is permanent; re-run with --confirm")
	}

	if err := store.Delete(args.Name); err != nil {
		return err
	}

	if args.JSON {
		return PrintJSON(map[string]interface{}{"deleted": history.SanitizeName(args.Name), "success": true})
	}
	fmt.Printf("%s %s\n", SuccessStyle.Render("[Deleted]"), history.SanitizeName(args.Name))
	return nil
}
