package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/wippyai/stackvm/interp"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	opStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#98FB98"))

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	currentStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4"))

	skippedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666")).
			Italic(true)

	resultStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

// listingRadius is how many instructions are shown around the pc.
const listingRadius = 6

type inputMode int

const (
	modeStep inputMode = iota
	modeBreakpoint
	modeSave
)

type stepModel struct {
	it       *interp.Interpreter
	err      error
	breaks   map[int]bool
	filename string
	savePath string
	status   string
	trace    []string
	input    textinput.Model
	log      viewport.Model
	mode     inputMode
	ready    bool
}

func newStepModel(filename string, it *interp.Interpreter, savePath string) *stepModel {
	ti := textinput.New()
	ti.Width = 40
	return &stepModel{
		it:       it,
		err:      it.Err(),
		breaks:   make(map[int]bool),
		filename: filename,
		savePath: savePath,
		input:    ti,
		log:      viewport.New(80, 8),
	}
}

func (m *stepModel) Init() tea.Cmd {
	return nil
}

// step dispatches one instruction and records it in the trace.
func (m *stepModel) step() bool {
	if m.err != nil || m.it.Done() {
		return false
	}
	res, err := m.it.Step()
	if err != nil {
		m.err = err
		m.appendTrace(errorStyle.Render(err.Error()))
		return false
	}
	if res.Executed >= 0 {
		in := m.it.Program().Instructions[res.Executed]
		line := fmt.Sprintf("%4d %-28s [%s]", res.Executed, in, formatValues(res.Stack))
		if res.Skipped {
			line = skippedStyle.Render(line)
		}
		m.appendTrace(line)
	}
	if res.Done {
		m.appendTrace(resultStyle.Render("done: [" + formatValues(res.Stack) + "]"))
		return false
	}
	return true
}

// continueRun steps until a breakpoint, the end or an error.
func (m *stepModel) continueRun() {
	for m.step() {
		if m.breaks[m.it.PC()] {
			m.status = fmt.Sprintf("breakpoint at %d", m.it.PC())
			return
		}
	}
}

func (m *stepModel) appendTrace(line string) {
	m.trace = append(m.trace, line)
	m.log.SetContent(strings.Join(m.trace, "\n"))
	m.log.GotoBottom()
}

func (m *stepModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.log.Width = msg.Width
		m.log.Height = max(msg.Height-2*listingRadius-12, 4)
		m.ready = true

	case tea.KeyMsg:
		if m.mode != modeStep {
			return m.updateInput(msg)
		}
		m.status = ""
		switch msg.String() {
		case "ctrl+c", "q":
			if m.savePath != "" && m.err == nil && !m.it.Done() {
				if err := saveSnapshot(m.it, m.savePath); err != nil {
					m.err = err
				}
			}
			return m, tea.Quit

		case "n", " ", "right":
			m.step()

		case "c":
			m.continueRun()

		case "b":
			m.mode = modeBreakpoint
			m.input.Prompt = "break at pc: "
			m.input.Placeholder = strconv.Itoa(m.it.PC())
			m.input.Focus()

		case "s":
			m.mode = modeSave
			m.input.Prompt = "save to: "
			m.input.Placeholder = "session.cbor"
			m.input.SetValue(m.savePath)
			m.input.Focus()

		default:
			var cmd tea.Cmd
			m.log, cmd = m.log.Update(msg)
			return m, cmd
		}
	}
	return m, nil
}

func (m *stepModel) updateInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.leaveInput()
		return m, nil

	case "enter":
		value := strings.TrimSpace(m.input.Value())
		switch m.mode {
		case modeBreakpoint:
			pc, err := strconv.Atoi(value)
			if err != nil || pc < 0 || pc >= len(m.it.Program().Instructions) {
				m.status = errorStyle.Render(fmt.Sprintf("no instruction %q", value))
				break
			}
			m.breaks[pc] = !m.breaks[pc]
			m.status = fmt.Sprintf("breakpoint at %d: %v", pc, m.breaks[pc])
		case modeSave:
			if value == "" {
				value = m.input.Placeholder
			}
			if err := saveSnapshot(m.it, value); err != nil {
				m.status = errorStyle.Render(err.Error())
				break
			}
			m.savePath = value
			m.status = "saved " + value
		}
		m.leaveInput()
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *stepModel) leaveInput() {
	m.mode = modeStep
	m.input.Reset()
	m.input.Blur()
}

func (m *stepModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("stackvm step"))
	b.WriteString(" ")
	b.WriteString(m.filename)
	fmt.Fprintf(&b, "  pc %d  steps %d/%d\n\n", m.it.PC(), m.it.Steps(), m.it.Budget())

	instrs := m.it.Program().Instructions
	pc := m.it.PC()
	for i := max(pc-listingRadius, 0); i < min(pc+listingRadius+1, len(instrs)); i++ {
		mark := "  "
		if m.breaks[i] {
			mark = "● "
		}
		line := fmt.Sprintf("%s%4d  %s", mark, i, opStyle.Render(instrs[i].String()))
		if i == pc && !m.it.Done() {
			line = currentStyle.Render(fmt.Sprintf("%s%4d  %s", mark, i, instrs[i].String()))
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	if pc >= len(instrs) {
		b.WriteString(helpStyle.Render("      <end of program>"))
		b.WriteString("\n")
	}

	b.WriteString("\nstack:  ")
	b.WriteString(valueStyle.Render("[" + formatValues(m.it.Stack()) + "]"))
	b.WriteString("\nframes: ")
	for i, f := range m.it.Frames() {
		if i > 0 {
			b.WriteString(" < ")
		}
		b.WriteString(f.String())
	}
	b.WriteString("\n\n")

	if m.ready {
		b.WriteString(m.log.View())
		b.WriteString("\n")
	}
	if m.err != nil {
		b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
		b.WriteString("\n")
	}
	if m.status != "" {
		b.WriteString(m.status)
		b.WriteString("\n")
	}
	if m.mode != modeStep {
		b.WriteString(m.input.View())
		b.WriteString("\n")
	}
	b.WriteString(helpStyle.Render("n/space step • c continue • b breakpoint • s save • ↑/↓ scroll • q quit"))

	return b.String()
}

func runInteractive(filename string, it *interp.Interpreter, savePath string) error {
	p := tea.NewProgram(newStepModel(filename, it, savePath), tea.WithAltScreen())
	final, err := p.Run()
	if err != nil {
		return err
	}
	if m, ok := final.(*stepModel); ok && m.err != nil {
		return m.err
	}
	return nil
}
