// Package repl implements the interactive Read-Compile-Run loop for PL/0.
//
// The REPL provides an interactive interface for users to enter a PL/0
// program, have it compiled to p-machine code and executed, and see the
// output immediately. It uses the Charm libraries (Bubbletea, Bubbles,
// and Lipgloss) for a modern terminal interface with syntax highlighting
// and session history.
//
// A PL/0 program is a single block terminated by a period, so input
// accumulates line by line and a program runs once its terminating
// period has been entered.
//
// The main entry point is the Start function, which initializes and runs
// the REPL with the given options.
package repl

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dr8co/plz/gen"
	"github.com/dr8co/plz/lexer"
	"github.com/dr8co/plz/token"
	"github.com/dr8co/plz/vm"
)

const (
	// Prompt is the default prompt for the REPL.
	Prompt = ">> "

	// ContPrompt is the continuation prompt shown while a program is
	// still missing its terminating period.
	ContPrompt = ".. "
)

// Options contains configuration options for the REPL.
type Options struct {
	NoColor bool // Disable syntax highlighting and colored output
}

// Start initializes and runs the REPL.
// If an error occurs while running the program, it is printed to the console.
func Start(options Options) {
	p := tea.NewProgram(initialModel(options))
	if _, err := p.Run(); err != nil {
		fmt.Println("Error running program:", err)
	}
}

// Styling
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#7D56F4")).
			Bold(true)

	resultStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#04B575"))

	compileErrorStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#FF5F87")).
				Bold(true)

	runtimeErrorStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#FF8700")).
				Bold(true)

	historyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#767676"))

	// Syntax highlighting styles
	keywordStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF79C6")).
			Bold(true)

	identifierStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F8F8F2"))

	literalStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F1FA8C"))

	operatorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF5555"))

	delimiterStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#BD93F9"))
)

// ErrorType represents the kind of error that occurred.
type ErrorType int

const (
	// NoError indicates that the program compiled and ran to completion.
	NoError ErrorType = iota

	// CompileError indicates that code generation failed.
	CompileError

	// RuntimeError indicates that the p-machine stopped with an error.
	RuntimeError
)

// runResultMsg carries the outcome of an asynchronous compile-and-run.
type runResultMsg struct {
	output    string
	errorType ErrorType
	elapsed   time.Duration
}

// historyEntry represents a single program in the session history.
type historyEntry struct {
	input     string
	output    string
	errorType ErrorType
	elapsed   time.Duration
}

// The model represents the state of the application.
type model struct {
	textInput textinput.Model
	spinner   spinner.Model
	history   []historyEntry
	buffer    string // program text accumulated so far
	current   string // program being run
	running   bool
	options   Options
}

// initialModel creates a new model with default values.
func initialModel(options Options) model {
	ti := textinput.New()
	ti.Placeholder = "Enter PL/0 code"
	ti.Focus()
	ti.Width = 80
	ti.Prompt = promptStyle.Render(Prompt)

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF79C6"))

	return model{
		textInput: ti,
		spinner:   s,
		options:   options,
	}
}

// applyStyle applies a lipgloss style to a string, respecting the NoColor option.
func (m model) applyStyle(style lipgloss.Style, text string) string {
	if m.options.NoColor {
		return text
	}
	return style.Render(text)
}

// Init is the first function that will be called.
func (m model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick)
}

// complete reports whether the accumulated input forms a whole program,
// which in PL/0 means the terminating period has been entered.
func complete(input string) bool {
	l := lexer.New(input)
	for {
		tok := l.NextToken()
		switch tok.Type {
		case token.Period:
			return true
		case token.Null:
			return false
		}
	}
}

// runCmd compiles and executes a program asynchronously.
// The program's write output is captured; read statements see an empty
// input and fail, which surfaces as a runtime error.
func runCmd(input string) tea.Cmd {
	return func() tea.Msg {
		start := time.Now()

		program, err := gen.Generate(lexer.New(input).Tokens())
		if err != nil {
			return runResultMsg{
				output:    err.Error(),
				errorType: CompileError,
				elapsed:   time.Since(start),
			}
		}

		var out bytes.Buffer
		machine := vm.New(program, strings.NewReader(""), &out)
		if err := machine.Run(); err != nil {
			return runResultMsg{
				output:    fmt.Sprintf("runtime error: %s", err),
				errorType: RuntimeError,
				elapsed:   time.Since(start),
			}
		}

		output := strings.TrimRight(out.String(), "\n")
		if output == "" {
			output = "(no output)"
		}
		return runResultMsg{
			output:    output,
			errorType: NoError,
			elapsed:   time.Since(start),
		}
	}
}

// Update handles all the updates to our model.
func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case spinner.TickMsg:
		if m.running {
			m.spinner, cmd = m.spinner.Update(msg)
			return m, cmd
		}

	case runResultMsg:
		m.running = false
		m.history = append(m.history, historyEntry{
			input:     m.current,
			output:    msg.output,
			errorType: msg.errorType,
			elapsed:   msg.elapsed,
		})
		m.current = ""
		return m, nil

	case tea.KeyMsg:
		if m.running && msg.Type != tea.KeyCtrlC {
			return m, m.spinner.Tick
		}

		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc, tea.KeyCtrlD:
			return m, tea.Quit
		case tea.KeyEnter:
			line := m.textInput.Value()
			m.textInput.SetValue("")

			if m.buffer == "" {
				m.buffer = line
			} else {
				m.buffer += "\n" + line
			}
			if strings.TrimSpace(m.buffer) == "" {
				m.buffer = ""
				return m, nil
			}

			if !complete(m.buffer) {
				return m, nil
			}

			m.running = true
			m.current = m.buffer
			m.buffer = ""
			return m, runCmd(m.current)
		}
	}

	if !m.running {
		m.textInput, cmd = m.textInput.Update(msg)
	}

	if m.running {
		return m, m.spinner.Tick
	}

	return m, cmd
}

// View renders the current UI.
func (m model) View() string {
	var s strings.Builder

	s.WriteString(m.applyStyle(titleStyle, " PL/0 "))
	s.WriteString("\n\n")

	// History
	for _, entry := range m.history {
		for i, line := range strings.Split(entry.input, "\n") {
			if i == 0 {
				s.WriteString(m.applyStyle(promptStyle, Prompt))
			} else {
				s.WriteString(m.applyStyle(promptStyle, ContPrompt))
			}
			s.WriteString(m.highlightCode(line))
			s.WriteString("\n")
		}

		switch entry.errorType {
		case CompileError:
			s.WriteString(m.applyStyle(compileErrorStyle, entry.output))
		case RuntimeError:
			s.WriteString(m.applyStyle(runtimeErrorStyle, entry.output))
		default:
			s.WriteString(m.applyStyle(resultStyle, entry.output))
		}

		if entry.elapsed > 10*time.Millisecond {
			s.WriteString(m.applyStyle(historyStyle, fmt.Sprintf(" (%.2fs)", entry.elapsed.Seconds())))
		}

		s.WriteString("\n\n")
	}

	// Current run
	if m.running {
		s.WriteString(m.applyStyle(promptStyle, Prompt))
		s.WriteString(m.highlightCode(m.current))
		s.WriteString("\n")
		s.WriteString(m.spinner.View())
		s.WriteString(" Running...")
		s.WriteString("\n\n")
	}

	// Pending program text
	if m.buffer != "" && !m.running {
		for _, line := range strings.Split(m.buffer, "\n") {
			s.WriteString(m.applyStyle(promptStyle, ContPrompt))
			s.WriteString(m.highlightCode(line))
			s.WriteString("\n")
		}
	}

	// Input
	if !m.running {
		if m.buffer != "" {
			m.textInput.Prompt = m.applyStyle(promptStyle, ContPrompt)
		} else {
			m.textInput.Prompt = m.applyStyle(promptStyle, Prompt)
		}
		s.WriteString(m.textInput.View())
		s.WriteString("\n")
	}

	helpText := "\nPress Esc or Ctrl+C/D to exit"
	if m.buffer != "" {
		helpText += " | program runs once the terminating '.' is entered"
	}
	s.WriteString(m.applyStyle(historyStyle, helpText))

	return s.String()
}

// highlightCode applies syntax highlighting to a line of PL/0 code.
// The line is re-rendered from its tokens, so the original spacing is
// normalized rather than preserved.
func (m model) highlightCode(line string) string {
	if m.options.NoColor {
		return line
	}

	l := lexer.New(line)
	var s strings.Builder
	first := true

	for {
		tok := l.NextToken()
		if tok.Type == token.Null {
			break
		}
		if !first && wantsSpace(tok.Type) {
			s.WriteString(" ")
		}
		first = false

		switch tok.Type {
		case token.Const, token.Var, token.Procedure, token.Call, token.Begin, token.End,
			token.If, token.Then, token.Else, token.While, token.Do,
			token.Read, token.Write, token.Odd:
			s.WriteString(keywordStyle.Render(tok.Literal))
		case token.Ident:
			s.WriteString(identifierStyle.Render(tok.Literal))
		case token.Number:
			s.WriteString(literalStyle.Render(tok.Literal))
		case token.Plus, token.Minus, token.Star, token.Slash, token.Becomes,
			token.Eq, token.Neq, token.Less, token.Leq, token.Greater, token.Geq:
			s.WriteString(operatorStyle.Render(tok.Literal))
		case token.Lparen, token.Rparen, token.Comma, token.Semicolon, token.Period:
			s.WriteString(delimiterStyle.Render(tok.Literal))
		default:
			s.WriteString(tok.Literal)
		}
	}

	return s.String()
}

// wantsSpace reports whether a space is rendered before a token of the
// given kind when re-rendering a highlighted line.
func wantsSpace(t token.Type) bool {
	switch t {
	case token.Comma, token.Semicolon, token.Period, token.Rparen:
		return false
	}
	return true
}
