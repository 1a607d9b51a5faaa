// Package cli collects invoice input interactively and prints run reports.
package cli

import (
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/chzyer/readline"

	appinvoicing "github.com/dandroos/node-invoicer/internal/application/invoicing"
	"github.com/dandroos/node-invoicer/internal/infrastructure/config"
)

var (
	// ErrNoInput is returned when the input ends before a question is answered
	ErrNoInput = errors.New("input ended before all questions were answered")
	// ErrInterrupted is returned when the operator presses Ctrl-C at a prompt
	ErrInterrupted = errors.New("input interrupted")
)

// Prompter asks the invoice questions through a readline session. On a
// terminal the answers are line-edited; piped input is read line by line.
type Prompter struct {
	rl          *readline.Instance
	stdin       *readline.CancelableStdin
	out         io.Writer
	interactive bool
	defaults    config.DefaultsConfig
	now         func() time.Time
}

// NewPrompter creates a Prompter reading answers from in. Empty answers take
// the value from defaults. Close it when done.
func NewPrompter(in io.Reader, out io.Writer, defaults config.DefaultsConfig) (*Prompter, error) {
	interactive := isTerminal(in) && isTerminal(out)
	stdin := readline.NewCancelableStdin(in)

	cfg := &readline.Config{
		Stdin:                  stdin,
		Stdout:                 out,
		HistoryLimit:           -1,
		DisableAutoSaveHistory: true,
		FuncIsTerminal:         func() bool { return interactive },
	}
	if !interactive {
		// leave the process terminal alone
		cfg.FuncMakeRaw = func() error { return nil }
		cfg.FuncExitRaw = func() error { return nil }
		cfg.FuncGetWidth = func() int { return 80 }
		cfg.FuncOnWidthChanged = func(func()) {}
	}

	rl, err := readline.NewEx(cfg)
	if err != nil {
		stdin.Close()
		return nil, fmt.Errorf("failed to start prompt: %w", err)
	}
	return &Prompter{
		rl:          rl,
		stdin:       stdin,
		out:         out,
		interactive: interactive,
		defaults:    defaults,
		now:         time.Now,
	}, nil
}

// Close ends the readline session
func (p *Prompter) Close() error {
	err := p.rl.Close()
	p.stdin.Close()
	return err
}

// CollectInvoice asks for the recipient and then for line items until the
// operator declines to add another. The issue date is today.
func (p *Prompter) CollectInvoice() (appinvoicing.IssueInvoiceInput, error) {
	var in appinvoicing.IssueInvoiceInput
	var err error

	if in.RecipientName, err = p.ask("RECIPIENT NAME", p.defaults.RecipientName); err != nil {
		return in, err
	}
	if in.RecipientTaxID, err = p.ask("RECIPIENT TAX ID", p.defaults.RecipientTaxID); err != nil {
		return in, err
	}
	if in.RecipientAddress, err = p.ask("RECIPIENT ADDRESS (separate with commas)", p.defaults.RecipientAddress); err != nil {
		return in, err
	}
	if in.RecipientEmail, err = p.ask("RECIPIENT EMAIL", p.defaults.RecipientEmail); err != nil {
		return in, err
	}

	for {
		n := len(in.Items) + 1
		description, err := p.ask(fmt.Sprintf("DESCRIPTION #%d", n), p.defaults.Description)
		if err != nil {
			return in, err
		}
		amount, err := p.askAmount(fmt.Sprintf("AMOUNT #%d", n))
		if err != nil {
			return in, err
		}
		in.Items = append(in.Items, appinvoicing.LineItemInput{Description: description, Amount: amount})

		more, err := p.Confirm("ADD ANOTHER?", true)
		if err != nil {
			return in, err
		}
		if !more {
			break
		}
	}

	in.Date = p.now()
	return in, nil
}

// CollectOptions asks which e-mails to send
func (p *Prompter) CollectOptions(purge bool) (appinvoicing.IssueOptions, error) {
	opts := appinvoicing.IssueOptions{Purge: purge}
	var err error
	if opts.EmailRecipient, err = p.Confirm("EMAIL TO RECIPIENT?", true); err != nil {
		return opts, err
	}
	if opts.EmailAccountant, err = p.Confirm("EMAIL TO ACCOUNTANT?", true); err != nil {
		return opts, err
	}
	return opts, nil
}

// Confirm asks a yes/no question. An empty answer returns def.
func (p *Prompter) Confirm(question string, def bool) (bool, error) {
	hint := "(y/N)"
	if def {
		hint = "(Y/n)"
	}
	for {
		line, err := p.readLine(fmt.Sprintf("%s %s ", question, hint))
		if err != nil {
			return false, err
		}
		switch strings.ToLower(line) {
		case "":
			return def, nil
		case "y", "yes":
			return true, nil
		case "n", "no":
			return false, nil
		}
		fmt.Fprintln(p.out, "Please answer y or n.")
	}
}

func (p *Prompter) ask(label, def string) (string, error) {
	prompt := label + ": "
	if def != "" {
		prompt = fmt.Sprintf("%s: (%s) ", label, def)
	}
	line, err := p.readLine(prompt)
	if err != nil {
		return "", err
	}
	if line == "" {
		return def, nil
	}
	return line, nil
}

func (p *Prompter) askAmount(label string) (float64, error) {
	for {
		line, err := p.readLine(label + ": ")
		if err != nil {
			return 0, err
		}
		amount, err := strconv.ParseFloat(strings.ReplaceAll(line, ",", "."), 64)
		if err == nil && amount >= 0 && !math.IsInf(amount, 0) {
			return amount, nil
		}
		fmt.Fprintln(p.out, "Please enter a non-negative number.")
	}
}

// readLine shows prompt and returns the next trimmed answer. A last line
// without a newline is still returned; EOF with nothing read is ErrNoInput.
func (p *Prompter) readLine(prompt string) (string, error) {
	if p.interactive {
		p.rl.SetPrompt(prompt)
	} else {
		// readline only draws the prompt on a terminal
		fmt.Fprint(p.out, prompt)
	}

	line, err := p.rl.Readline()
	switch {
	case errors.Is(err, io.EOF):
		return "", ErrNoInput
	case errors.Is(err, readline.ErrInterrupt):
		return "", ErrInterrupted
	case err != nil:
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	return strings.TrimSpace(line), nil
}

func isTerminal(v any) bool {
	f, ok := v.(interface{ Fd() uintptr })
	return ok && readline.IsTerminal(int(f.Fd()))
}
