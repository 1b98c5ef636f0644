// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// models.go - Model listing command for the llmui CLI.
//
// Command: models
// Short:   List installed Ollama models
//
// Examples:
//   llmui models
//   llmui models --json

package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/jeranaias/llmui/internal/config"
	"github.com/jeranaias/llmui/internal/ollama"
)

// modelJSON is the --json output shape for one installed model.
type modelJSON struct {
	Name       string `json:"name"`
	Size       string `json:"size"`
	Family     string `json:"family,omitempty"`
	Parameters string `json:"parameters,omitempty"`
	ModifiedAt string `json:"modified_at"`
	Default    bool   `json:"default"`
}

// HandleModelsCommand handles the "models" command.
func HandleModelsCommand(args Args) error {
	cfg, err := config.Load()
	if err != nil {
		return WrapError(err, "failed to load configuration")
	}

	client := ollama.NewClientWithConfig(&ollama.ClientConfig{
		BaseURL:      cfg.Ollama.URL,
		DefaultModel: cfg.Ollama.Model,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	models, err := client.ListModels(ctx)
	if err != nil {
		return err
	}

	if args.JSON {
		out := make([]modelJSON, 0, len(models))
		for _, m := range models {
			out = append(out, modelJSON{
				Name:       m.Name,
				Size:       m.FormatSize(),
				Family:     m.Details.Family,
				Parameters: m.Details.ParameterSize,
				ModifiedAt: m.ModifiedAt.Format(time.RFC3339),
				Default:    m.Name == cfg.Ollama.Model,
			})
		}
		return PrintJSON(out)
	}

	if len(models) == 0 {
		fmt.Println(DimStyle.Render("No models installed. Pull one with: ollama pull llama3.2"))
		return nil
	}

	rows := make([][]string, 0, len(models))
	for _, m := range models {
		name := m.Name
		if m.Name == cfg.Ollama.Model {
			name += " " + SuccessStyle.Render("(default)")
		}
		rows = append(rows, []string{
			name,
			m.FormatSize(),
			m.Details.ParameterSize,
			FormatRelativeTime(m.ModifiedAt),
		})
	}

	fmt.Println(TitleStyle.Render(fmt.Sprintf("Installed models (%d)", len(models))))
	fmt.Print(RenderTable([]string{"NAME", "SIZE", "PARAMS", "MODIFIED"}, rows))
	return nil
}
