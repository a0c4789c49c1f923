// Package command maps one-line text commands onto editor operations
package command

import (
	"fmt"
	"strings"

	"github.com/karcash/karcard/internal/bgremoval"
	"github.com/karcash/karcard/internal/store"
)

// Exporter saves the current card
type Exporter interface {
	SaveTo(dir string) (string, error)
}

// Deps are the collaborators commands act on. Exporter, Remover, Images and
// Assets may be nil; the commands that need them then report an error.
type Deps struct {
	Store     *store.Store
	Exporter  Exporter
	ExportDir string
	Remover   bgremoval.Remover
	Images    store.ImageSource
	Assets    store.AssetSink
}

// Executor executes commands
type Executor struct {
	deps Deps
}

// NewExecutor creates a new command executor
func NewExecutor(deps Deps) *Executor {
	return &Executor{deps: deps}
}

// Result represents the result of executing a command
type Result struct {
	Success bool                   `json:"success"`
	Message string                 `json:"message,omitempty"`
	Data    map[string]interface{} `json:"data,omitempty"`
	Error   string                 `json:"error,omitempty"`
}

func failure(format string, args ...interface{}) *Result {
	return &Result{
		Success: false,
		Error:   fmt.Sprintf(format, args...),
	}
}

// Execute executes a command string and returns a result
func (e *Executor) Execute(cmdStr string) *Result {
	parts := parseCommand(cmdStr)
	if len(parts) == 0 {
		return failure("empty command")
	}

	command := parts[0]
	args := parts[1:]

	switch command {
	case "data":
		return e.handleData(args)
	case "config":
		return e.handleConfig(args)
	case "format":
		return e.handleFormat(args)
	case "background", "bg":
		return e.handleBackground(args)
	case "defaults":
		return e.handleDefaults(args)
	case "image":
		return e.handleImage(args)
	case "state":
		return e.handleState(args)
	case "export":
		return e.handleExport(args)
	case "help":
		return e.handleHelp(args)
	default:
		return failure("unknown command: %s. Type 'help' for available commands", command)
	}
}

// parseCommand parses a command string into parts, handling quoted strings
func parseCommand(cmdStr string) []string {
	cmdStr = strings.TrimSpace(cmdStr)
	if cmdStr == "" {
		return []string{}
	}

	var parts []string
	var current strings.Builder
	inQuotes := false
	quoted := false
	quoteChar := rune(0)

	for _, char := range cmdStr {
		switch {
		case (char == '"' || char == '\'') && !inQuotes:
			inQuotes = true
			quoted = true
			quoteChar = char
		case inQuotes && char == quoteChar:
			inQuotes = false
			quoteChar = 0
		case (char == ' ' || char == '\t') && !inQuotes:
			if current.Len() > 0 || quoted {
				parts = append(parts, current.String())
				current.Reset()
				quoted = false
			}
		default:
			current.WriteRune(char)
		}
	}

	if current.Len() > 0 || quoted {
		parts = append(parts, current.String())
	}

	return parts
}
