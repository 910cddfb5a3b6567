// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package prompt assembles the text payload sent to the model provider.
package prompt

import (
	"strings"

	"github.com/jeranaias/chatrelay/internal/memory"
)

// SystemInstruction is the fixed instruction prepended to every prompt.
const SystemInstruction = `You are a helpful assistant. Your task is to respond to the user query as clearly and concisely as possible.
Maintain a friendly and informative tone. With a slightly big response message, you can break it down into smaller parts.`

// Build renders the full prompt: the system instruction, the conversation
// history so far, and the new query. The history is replayed verbatim in
// insertion order.
func Build(history []memory.Entry, query string) string {
	var b strings.Builder

	b.WriteString(SystemInstruction)
	b.WriteString("\n\nHistory of conversation so far:\n")
	b.WriteString(RenderHistory(history))
	b.WriteString("\nUser: ")
	b.WriteString(query)
	b.WriteString("\n")

	return b.String()
}

// RenderHistory renders prior exchanges as alternating User/Assistant lines.
// An empty history renders as an empty string.
func RenderHistory(history []memory.Entry) string {
	if len(history) == 0 {
		return ""
	}

	var b strings.Builder
	for _, e := range history {
		b.WriteString("User: ")
		b.WriteString(e.Input)
		b.WriteString("\nAssistant: ")
		b.WriteString(e.Output)
		b.WriteString("\n")
	}
	return b.String()
}
