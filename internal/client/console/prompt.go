package console

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Prompter reads answers line by line. Every line read counts as operator
// activity through OnInput.
type Prompter struct {
	scanner *bufio.Scanner
	out     io.Writer
	// ReadPassword reads a secret without echo. When nil a plain line is read.
	ReadPassword func() (string, error)
	// OnInput is called after every line read.
	OnInput func()
}

// NewPrompter reads from in and writes questions to out.
func NewPrompter(in io.Reader, out io.Writer) *Prompter {
	return &Prompter{scanner: bufio.NewScanner(in), out: out}
}

// Line reads the next line. ok is false at end of input.
func (p *Prompter) Line() (line string, ok bool) {
	if !p.scanner.Scan() {
		return "", false
	}
	if p.OnInput != nil {
		p.OnInput()
	}
	return strings.TrimSpace(p.scanner.Text()), true
}

// Ask prints label and returns the answer.
func (p *Prompter) Ask(label string) string {
	fmt.Fprintf(p.out, "%s: ", label)
	line, _ := p.Line()
	return line
}

// AskPassword prints label and reads a secret.
func (p *Prompter) AskPassword(label string) (string, error) {
	fmt.Fprintf(p.out, "%s: ", label)
	if p.ReadPassword == nil {
		line, _ := p.Line()
		return line, nil
	}
	pw, err := p.ReadPassword()
	fmt.Fprintln(p.out)
	if err != nil {
		return "", err
	}
	if p.OnInput != nil {
		p.OnInput()
	}
	return pw, nil
}

// PromptDish asks for the fields of a new dish.
func (p *Prompter) PromptDish() DishInput {
	return DishInput{
		Title:       p.Ask("Title"),
		Description: p.Ask("Description"),
		ImageURL:    p.Ask("Image URL"),
		CategoryID:  p.Ask("Category id"),
	}
}

// PromptMenuItem asks for the fields of a new menu item.
func (p *Prompter) PromptMenuItem() (MenuItemInput, error) {
	in := MenuItemInput{
		Name:        p.Ask("Name"),
		Description: p.Ask("Description"),
		Section:     p.Ask("Section"),
		Available:   true,
	}
	raw := strings.ReplaceAll(p.Ask("Price"), ",", ".")
	price, err := strconv.ParseFloat(raw, 64)
	if err != nil || price < 0 {
		return in, fmt.Errorf("invalid price %q", raw)
	}
	in.Price = price
	if answer := strings.ToLower(p.Ask("Available [Y/n]")); answer == "n" || answer == "no" {
		in.Available = false
	}
	return in, nil
}
