package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"
	"github.com/urfave/cli/v2"
	"github.com/xhad/agentic/pkg/config"
)

var (
	userPrompt      = color.New(color.FgGreen).PrintfFunc()
	assistantPrompt = color.New(color.FgCyan).PrintfFunc()
	heading         = color.New(color.FgYellow, color.Bold).PrintlnFunc()
)

func barTheme(ui config.UIConfig) progressbar.Theme {
	if ui.Theme == "ascii" {
		return progressbar.Theme{Saucer: "=", SaucerHead: ">", SaucerPadding: " ", BarStart: "[", BarEnd: "]"}
	}
	return progressbar.Theme{Saucer: "█", SaucerHead: "█", SaucerPadding: "░", BarStart: "[", BarEnd: "]"}
}

func getProgressBar(ui config.UIConfig, total int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetDescription(color.BlueString(description)),
		progressbar.OptionSetItsString("items"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetTheme(barTheme(ui)),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionSetRenderBlankState(true),
		progressbar.OptionClearOnFinish(),
	)
}

func getSpinner(description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(-1,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetDescription(color.CyanString(description)),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionSetWidth(20),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetRenderBlankState(true),
		progressbar.OptionClearOnFinish(),
	)
}

// spin runs fn behind a spinner.
func spin[T any](description string, fn func() (T, error)) (T, error) {
	s := getSpinner(description)
	v, err := fn()
	s.Finish()
	return v, err
}

// readInput returns the --file contents, stdin for "-", or the joined
// arguments.
func readInput(c *cli.Context) (string, error) {
	var text string
	switch path := c.String("file"); {
	case path == "-" || (path == "" && c.Args().First() == "-"):
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", fmt.Errorf("failed to read stdin: %w", err)
		}
		text = string(data)
	case path != "":
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("failed to read input file: %w", err)
		}
		text = string(data)
	default:
		text = strings.Join(c.Args().Slice(), " ")
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", cli.Exit("no input given: pass text as arguments, --file or -", 2)
	}
	return text, nil
}

var fileFlag = &cli.StringFlag{Name: "file", Aliases: []string{"f"}, Usage: "read input from `PATH` (- for stdin)"}

var jsonFlag = &cli.BoolFlag{Name: "json", Usage: "print the result as JSON"}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// writeOutput saves text to --out when the flag is set.
func writeOutput(c *cli.Context, text string) error {
	path := c.String("out")
	if path == "" {
		return nil
	}
	if err := os.WriteFile(path, []byte(text+"\n"), 0644); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	color.Green("✓ Saved to %s", path)
	return nil
}

// chatLoop reads lines from stdin until EOF or "exit" and hands each one to
// fn. Errors are printed and the loop continues.
func chatLoop(title string, fn func(line string) error) error {
	color.Cyan("\n%s (type 'exit' to quit)", title)

	scanner := bufio.NewScanner(os.Stdin)
	for {
		userPrompt("\nYou: ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.EqualFold(line, "exit") {
			break
		}
		if err := fn(line); err != nil {
			color.Red("Error: %v", err)
		}
	}
	return scanner.Err()
}
