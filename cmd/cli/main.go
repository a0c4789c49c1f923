package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

const (
	defaultServerURL = "http://localhost:12212"
)

var (
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981")).Bold(true)
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444")).Bold(true)
	keyStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#CCFF00"))
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#64748B"))
)

func main() {
	var serverURL string
	flag.StringVar(&serverURL, "server", defaultServerURL, "Server URL")
	flag.StringVar(&serverURL, "s", defaultServerURL, "Server URL (short)")
	flag.Parse()

	if flag.NArg() == 0 {
		printUsage()
		os.Exit(1)
	}

	args := flag.Args()

	// download runs locally against /render.png
	if args[0] == "download" {
		path := ""
		if len(args) > 1 {
			path = args[1]
		}
		if err := download(serverURL, path); err != nil {
			fmt.Fprintln(os.Stderr, errorStyle.Render("Error: ")+err.Error())
			os.Exit(1)
		}
		return
	}

	result := executeCommand(serverURL, joinArgs(args))

	if result.Success {
		printSuccess(result)
		os.Exit(0)
	} else {
		printError(result)
		os.Exit(1)
	}
}

// joinArgs rebuilds the command line, re-quoting arguments the shell split
// on so multi-word values survive the trip
func joinArgs(args []string) string {
	parts := make([]string, len(args))
	for i, arg := range args {
		if arg == "" || strings.ContainsAny(arg, " \t") {
			if strings.Contains(arg, `"`) {
				parts[i] = "'" + arg + "'"
			} else {
				parts[i] = `"` + arg + `"`
			}
			continue
		}
		parts[i] = arg
	}
	return strings.Join(parts, " ")
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `KarCard CLI

Usage:
  karcard-cli [flags] <command>

Flags:
  -s, -server <url>    Server URL (default: %s)

Commands:
  data <field> <value>
    Set brand, model, year, detailsText, fipePrice or salePrice

  config <field> <value>
  config <element>.<property> <value>
    Change the canvas or one element of the active layout

  format <story|poster>
    Switch the active format

  background <solid|gradient|image|overlay> <args...>
    Change the active background

  defaults
    Restore the active format's default layout

  image <ref|clear|remove-bg>
    Set, clear or cut out the vehicle photo

  state
    Show the current state

  export
    Save the card as PNG on the server

  download [path]
    Download the rendered card

  help
    Show the server's command help

Examples:
  karcard-cli data brand Honda
  karcard-cli data model "Civic Touring 1.5 Turbo"
  karcard-cli data fipePrice 120000
  karcard-cli config brand.fontSize 60
  karcard-cli format poster
  karcard-cli download ./card.png
  karcard-cli -s http://localhost:8080 state

`, defaultServerURL)
}

type CommandResult struct {
	Success bool                   `json:"success"`
	Message string                 `json:"message,omitempty"`
	Data    map[string]interface{} `json:"-"`
	Error   string                 `json:"error,omitempty"`
}

func executeCommand(serverURL, command string) *CommandResult {
	url := strings.TrimSuffix(serverURL, "/") + "/command"

	reqBody := map[string]string{
		"command": command,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return &CommandResult{
			Success: false,
			Error:   fmt.Sprintf("failed to marshal request: %v", err),
		}
	}

	resp, err := http.Post(url, "application/json", strings.NewReader(string(jsonData)))
	if err != nil {
		return &CommandResult{
			Success: false,
			Error:   fmt.Sprintf("failed to connect to server: %v", err),
		}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &CommandResult{
			Success: false,
			Error:   fmt.Sprintf("failed to read response: %v", err),
		}
	}

	var result CommandResult
	if err := json.Unmarshal(body, &result); err != nil {
		return &CommandResult{
			Success: false,
			Error:   fmt.Sprintf("failed to parse response: %v", err),
		}
	}

	// The server merges result data into the top-level object
	var fields map[string]interface{}
	if err := json.Unmarshal(body, &fields); err == nil {
		delete(fields, "success")
		delete(fields, "message")
		delete(fields, "error")
		if len(fields) > 0 {
			result.Data = fields
		}
	}

	return &result
}

func printSuccess(result *CommandResult) {
	if result.Message != "" {
		fmt.Println(successStyle.Render("✓ ") + result.Message)
	}

	if len(result.Data) == 0 {
		return
	}

	keys := make([]string, 0, len(result.Data))
	for k := range result.Data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		pretty, err := json.MarshalIndent(result.Data[k], "  ", "  ")
		if err != nil {
			continue
		}
		fmt.Printf("%s %s\n", keyStyle.Render(k+":"), string(pretty))
	}
}

func printError(result *CommandResult) {
	if result.Error != "" {
		fmt.Fprintln(os.Stderr, errorStyle.Render("Error: ")+result.Error)
	} else if result.Message != "" {
		fmt.Fprintln(os.Stderr, result.Message)
	}
}

// download saves /render.png to path, or under the server's suggested name
func download(serverURL, path string) error {
	url := strings.TrimSuffix(serverURL, "/") + "/render.png"

	resp, err := http.Get(url)
	if err != nil {
		return fmt.Errorf("failed to connect to server: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var body struct {
			Error string `json:"error"`
		}
		json.NewDecoder(resp.Body).Decode(&body)
		return fmt.Errorf("render failed (%d): %s", resp.StatusCode, body.Error)
	}

	if path == "" {
		path = "karcash.png"
		if _, name, ok := strings.Cut(resp.Header.Get("Content-Disposition"), "filename="); ok {
			path = strings.Trim(name, `"`)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	n, err := io.Copy(f, resp.Body)
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	fmt.Println(successStyle.Render("✓ ") + "Saved " + path + mutedStyle.Render(fmt.Sprintf(" (%d bytes)", n)))
	return nil
}
