// Package repl runs the interactive command-line chat loop.
package repl

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/fabfab/archipelago-assistant/chat"
)

const banner = `🏨 Archipelago International Assistant
==================================================
Welcome! I'm here to help you with questions about
Archipelago International - Southeast Asia's largest
privately owned hospitality group with 13 award-winning brands.

Ask me about:
  • Hotel brands (ASTON, Huxley, ALANA, etc.)
  • Properties and locations
  • Services and amenities
  • Membership programs
  • Company information and history
  • Type 'quit' to exit

`

const farewell = `
✨ Thank you for choosing Archipelago International!
We look forward to welcoming you soon! 🏨

`

const maxLineBytes = 1 << 20

// Run prompts for questions on in and prints answers to out until the user
// quits, in is exhausted or ctx is done. Answer failures are printed and the
// loop continues.
func Run(ctx context.Context, in io.Reader, out io.Writer, answerer chat.Answerer) error {
	if _, err := io.WriteString(out, banner); err != nil {
		return err
	}

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 4096), maxLineBytes)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		fmt.Fprint(out, "You: ")
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return fmt.Errorf("read input: %w", err)
			}
			fmt.Fprintln(out)
			return nil
		}

		input := strings.TrimSpace(scanner.Text())
		if isQuit(input) {
			_, err := io.WriteString(out, farewell)
			return err
		}
		if input == "" {
			continue
		}

		fmt.Fprint(out, "\nAssistant: ")
		answer, err := answerer.Answer(ctx, input)
		if err != nil {
			fmt.Fprintf(out, "Apologies! We encountered a small issue: %v\n", err)
		} else {
			fmt.Fprintln(out, answer)
		}
		fmt.Fprintln(out)
	}
}

func isQuit(input string) bool {
	switch strings.ToLower(input) {
	case "quit", "exit", "q":
		return true
	default:
		return false
	}
}
