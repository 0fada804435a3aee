// Package confirmation asks the operator before destructive backup operations.
package confirmation

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"bizadmin/internal/backup"
	"bizadmin/internal/display"
)

// ErrInterrupted is returned when the prompt is cancelled with a signal
var ErrInterrupted = errors.New("operation cancelled by user")

// Prompt describes one destructive operation awaiting approval
type Prompt struct {
	Title       string
	Summary     []string
	Details     []string
	Destructive bool
}

// ConfirmationService handles user confirmation for destructive operations
type ConfirmationService interface {
	Confirm(prompt Prompt, autoApprove bool) (bool, error)
	DisplaySummary(prompt Prompt)
}

type confirmationService struct {
	printer *display.Printer
	reader  *bufio.Reader
	out     io.Writer
	signals func() (<-chan os.Signal, func())
}

// NewConfirmationService creates a service that reads answers from in and
// writes through printer. A nil in reads from stdin.
func NewConfirmationService(printer *display.Printer, in io.Reader) ConfirmationService {
	if in == nil {
		in = os.Stdin
	}
	return &confirmationService{
		printer: printer,
		reader:  bufio.NewReader(in),
		out:     printer.Writer(),
		signals: notifyInterrupt,
	}
}

func notifyInterrupt() (<-chan os.Signal, func()) {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
	return ch, func() { signal.Stop(ch) }
}

// DisplaySummary prints what the operation will do
func (cs *confirmationService) DisplaySummary(prompt Prompt) {
	colors := cs.printer.Colors()

	fmt.Fprintln(cs.out, colors.Colorize(prompt.Title, colors.Theme().Primary))
	fmt.Fprintln(cs.out, strings.Repeat("=", 50))
	for _, line := range prompt.Summary {
		fmt.Fprintf(cs.out, "  %s\n", line)
	}
	if prompt.Destructive {
		cs.printer.Warning("This operation cannot be undone.")
	}
	fmt.Fprintln(cs.out)
}

// Confirm shows the summary and loops on the answer until it is yes, no or
// interrupted. "d" prints the details and asks again.
func (cs *confirmationService) Confirm(prompt Prompt, autoApprove bool) (bool, error) {
	cs.DisplaySummary(prompt)

	if autoApprove {
		cs.printer.Success("Auto-approving operation")
		return true, nil
	}

	interrupt, stop := cs.signals()
	defer stop()

	for {
		inputChan := make(chan string, 1)
		errorChan := make(chan error, 1)

		go func() {
			input, err := cs.promptForConfirmation(len(prompt.Details) > 0)
			if err != nil {
				errorChan <- err
				return
			}
			inputChan <- input
		}()

		select {
		case <-interrupt:
			fmt.Fprintln(cs.out)
			cs.printer.Warning("Operation cancelled by user")
			return false, ErrInterrupted
		case err := <-errorChan:
			return false, fmt.Errorf("failed to read user input: %w", err)
		case input := <-inputChan:
			switch parseAnswer(input) {
			case answerYes:
				return true, nil
			case answerNo:
				cs.printer.Info("Operation cancelled")
				return false, nil
			case answerDetails:
				cs.displayDetails(prompt)
			default:
				fmt.Fprintf(cs.out, "Invalid input '%s'. Please enter 'y' for yes, 'n' for no, or 'd' for details.\n", input)
			}
		}
	}
}

func (cs *confirmationService) promptForConfirmation(withDetails bool) (string, error) {
	choices := "[y/N]"
	if withDetails {
		choices = "[y/N/d]"
	}
	fmt.Fprintf(cs.out, "Do you want to continue? %s: ", choices)

	input, err := cs.reader.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && input != "") {
		return "", err
	}
	return strings.TrimSpace(input), nil
}

func (cs *confirmationService) displayDetails(prompt Prompt) {
	fmt.Fprintln(cs.out)
	for i, line := range prompt.Details {
		fmt.Fprintf(cs.out, "%3d. %s\n", i+1, line)
	}
	fmt.Fprintln(cs.out)
}

type answer int

const (
	answerInvalid answer = iota
	answerYes
	answerNo
	answerDetails
)

func parseAnswer(input string) answer {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "y", "yes":
		return answerYes
	case "n", "no", "":
		return answerNo
	case "d", "details":
		return answerDetails
	default:
		return answerInvalid
	}
}

// DeletePrompt describes deleting artifact
func DeletePrompt(artifact *backup.Artifact) Prompt {
	return Prompt{
		Title: "Delete Backup",
		Summary: []string{
			fmt.Sprintf("Backup:  %s", artifact.Name),
			fmt.Sprintf("Created: %s", artifact.CreatedAt.UTC().Format("2006-01-02 15:04:05 MST")),
			fmt.Sprintf("Size:    %s", display.FormatBytes(artifact.Size)),
		},
		Destructive: true,
	}
}

// RestorePrompt describes replaying artifact into the database. With
// overwrite every table in tables is dropped first and listed as a detail.
func RestorePrompt(artifact *backup.Artifact, database string, overwrite bool, tables []string) Prompt {
	prompt := Prompt{
		Title: "Restore Backup",
		Summary: []string{
			fmt.Sprintf("Backup:   %s", artifact.Name),
			fmt.Sprintf("Database: %s", database),
		},
	}
	if overwrite {
		prompt.Destructive = true
		prompt.Summary = append(prompt.Summary, fmt.Sprintf("Existing tables to drop: %d", len(tables)))
		for _, table := range tables {
			prompt.Details = append(prompt.Details, "DROP TABLE "+table)
		}
	}
	return prompt
}
