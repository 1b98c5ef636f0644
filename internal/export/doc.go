// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package export converts saved chats to portable file formats.
//
// # Supported Formats
//
//   - JSON: machine-readable with full metadata
//   - Markdown: human-readable with YAML frontmatter
//   - HTML: standalone styled page with embedded CSS
//
// # Usage
//
// Pick an exporter by format name and write the file:
//
//	opts := export.DefaultOptions()
//	exporter, err := export.ForFormat("markdown", opts)
//	if err != nil {
//	    return err
//	}
//	path, err := export.ExportToFile(conv, exporter, opts)
//
// All HTML output is escaped; chat content cannot inject markup into
// the exported page.
package export
