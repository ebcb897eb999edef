// Package ask provides the question and answer view for the TUI.
package ask

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/custodia-labs/grantkb/internal/adapters/driving/tui/components/input"
	"github.com/custodia-labs/grantkb/internal/adapters/driving/tui/components/list"
	"github.com/custodia-labs/grantkb/internal/adapters/driving/tui/components/status"
	"github.com/custodia-labs/grantkb/internal/adapters/driving/tui/keymap"
	"github.com/custodia-labs/grantkb/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/grantkb/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/grantkb/internal/core/domain"
	"github.com/custodia-labs/grantkb/internal/core/ports/driving"
)

// View holds the question input, the latest answer and its sources.
type View struct {
	styles    *styles.Styles
	keymap    *keymap.KeyMap
	input     *input.QuestionInput
	sources   *list.SourceList
	statusbar *status.Bar

	knowledge driving.KnowledgeService
	ctx       context.Context

	opts     domain.QueryOptions
	question string
	result   *domain.QueryResult

	width      int
	height     int
	ready      bool
	err        error
	focusInput bool // true = typing a question, false = reading the answer
}

// NewView creates a new ask view.
func NewView(s *styles.Styles, km *keymap.KeyMap, knowledge driving.KnowledgeService) *View {
	if s == nil {
		s = styles.DefaultStyles()
	}
	if km == nil {
		km = keymap.DefaultKeyMap()
	}

	return &View{
		styles:     s,
		keymap:     km,
		input:      input.NewQuestionInput(s),
		sources:    list.NewSourceList(s),
		statusbar:  status.NewBar(s, km),
		knowledge:  knowledge,
		ctx:        context.Background(),
		width:      80,
		height:     24,
		focusInput: true,
	}
}

// WithContext sets the context for the view.
func (v *View) WithContext(ctx context.Context) *View {
	v.ctx = ctx
	return v
}

// WithOptions sets the starting retrieval scope.
func (v *View) WithOptions(opts domain.QueryOptions) *View {
	v.opts = opts
	return v
}

// Init initialises the view.
func (v *View) Init() tea.Cmd {
	return v.input.Init()
}

// Update handles messages for the ask view.
func (v *View) Update(msg tea.Msg) (*View, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.SetDimensions(msg.Width, msg.Height)
		return v, nil

	case tea.KeyMsg:
		return v.handleKeyMsg(msg)

	case messages.QueryCompleted:
		v.handleQueryCompleted(msg)
		return v, nil

	case messages.ErrorOccurred:
		v.setError(msg.Err)
		return v, nil
	}

	var cmd tea.Cmd
	v.input, cmd = v.input.Update(msg)
	return v, cmd
}

func (v *View) handleKeyMsg(msg tea.KeyMsg) (*View, tea.Cmd) {
	if msg.Type == tea.KeyEsc {
		return v, func() tea.Msg {
			return messages.ViewChanged{View: messages.ViewMenu}
		}
	}

	if v.focusInput {
		if msg.Type == tea.KeyEnter {
			return v, v.submit(strings.TrimSpace(v.input.Value()))
		}
		var cmd tea.Cmd
		v.input, cmd = v.input.Update(msg)
		return v, cmd
	}

	// Answer mode.
	k := msg.String()
	switch {
	case keymap.Matches(k, v.keymap.NewQuestion):
		v.focusInput = true
		v.input.SetValue("")
		return v, v.input.Focus()
	case msg.Type == tea.KeyEnter:
		// Ask the same question again under the current scope.
		return v, v.submit(v.question)
	case keymap.Matches(k, v.keymap.ToggleGuide):
		v.opts.IncludeGuide = !v.opts.IncludeGuide
	case keymap.Matches(k, v.keymap.ToggleStudies):
		v.opts.IncludeStudies = !v.opts.IncludeStudies
	case keymap.Matches(k, v.keymap.ToggleStatistics):
		v.opts.IncludeStatistics = !v.opts.IncludeStatistics
	case keymap.Matches(k, v.keymap.ToggleOther):
		v.opts.IncludeOther = !v.opts.IncludeOther
	default:
		v.sources, _ = v.sources.Update(msg)
	}
	return v, nil
}

func (v *View) submit(question string) tea.Cmd {
	if question == "" {
		return nil
	}
	v.question = question
	v.err = nil
	v.focusInput = false
	v.input.Blur()
	v.statusbar.SetMessage("")
	v.statusbar.SetState(status.StateThinking)
	return v.performQuery(question, v.opts)
}

// performQuery runs the RAG query off the update loop.
func (v *View) performQuery(question string, opts domain.QueryOptions) tea.Cmd {
	knowledge := v.knowledge
	ctx := v.ctx
	return func() tea.Msg {
		if knowledge == nil {
			return messages.ErrorOccurred{Err: ErrNoKnowledgeService}
		}
		result, err := knowledge.QueryWithRAG(ctx, question, opts)
		return messages.QueryCompleted{Question: question, Result: result, Err: err}
	}
}

func (v *View) handleQueryCompleted(msg messages.QueryCompleted) {
	// A slower answer to an earlier question is dropped.
	if msg.Question != v.question {
		return
	}
	if msg.Err != nil {
		v.setError(msg.Err)
		return
	}
	if msg.Result == nil {
		msg.Result = &domain.QueryResult{}
	}

	v.err = nil
	v.result = msg.Result
	v.sources.SetSources(msg.Result.Sources)
	v.statusbar.SetState(status.StateAnswered)
	v.statusbar.SetSourceCount(len(msg.Result.Sources))
	v.statusbar.SetMessage("")
}

func (v *View) setError(err error) {
	v.err = err
	v.statusbar.SetState(status.StateError)
	v.statusbar.SetMessage(err.Error())
}

// View renders the ask view.
func (v *View) View() string {
	if !v.ready {
		return "Initialising..."
	}

	sections := make([]string, 0, 12)
	sections = append(sections,
		v.styles.Title.Render("Ask"), "",
		v.input.View(),
		v.renderScope(), "",
	)

	if v.err != nil {
		sections = append(sections, v.styles.Error.Render("Error: "+v.err.Error()), "")
	}

	if v.result != nil {
		answer := v.result.Answer
		if answer == "" {
			answer = "(no answer)"
		}
		sections = append(sections,
			v.styles.Answer.Width(max(v.width-4, 20)).Render(answer), "",
			v.sources.View(),
		)
		if v.result.Model != "" {
			sections = append(sections, "", v.styles.Muted.Render(
				fmt.Sprintf("%s · %d context chunks", v.result.Model, v.result.ContextChunks)))
		}
	}

	sections = append(sections, "", v.statusbar.View())

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// renderScope shows which optional document groups feed retrieval.
func (v *View) renderScope() string {
	flag := func(label, keyName string, on bool) string {
		mark := "[ ]"
		if on {
			mark = "[x]"
		}
		return fmt.Sprintf("%s %s (%s)", mark, label, keyName)
	}
	parts := []string{
		flag("guide", "g", v.opts.IncludeGuide),
		flag("studies", "s", v.opts.IncludeStudies),
		flag("statistics", "t", v.opts.IncludeStatistics),
		flag("other", "o", v.opts.IncludeOther),
	}
	line := "Scope: " + strings.Join(parts, "  ")
	if v.opts.Language != "" {
		line += "  lang=" + v.opts.Language
	}
	return v.styles.Muted.Render(line)
}

// SetDimensions sets the view dimensions.
func (v *View) SetDimensions(width, height int) {
	v.width = width
	v.height = height
	v.ready = true

	v.input.SetWidth(width)
	v.sources.SetDimensions(width, max(height/3, 4))
	v.statusbar.SetWidth(width)
}

// Ready returns whether the view is ready to render.
func (v *View) Ready() bool {
	return v.ready
}

// Question returns the last submitted question.
func (v *View) Question() string {
	return v.question
}

// SetQuestion fills the input.
func (v *View) SetQuestion(question string) {
	v.input.SetValue(question)
}

// Result returns the latest answer, or nil.
func (v *View) Result() *domain.QueryResult {
	return v.result
}

// Options returns the current retrieval scope.
func (v *View) Options() domain.QueryOptions {
	return v.opts
}

// Err returns the current error, if any.
func (v *View) Err() error {
	return v.err
}

// InputFocused returns whether the input has focus.
func (v *View) InputFocused() bool {
	return v.focusInput
}

// Reset returns the view to an empty question.
func (v *View) Reset() {
	v.focusInput = true
	v.input.Focus()
	v.input.SetValue("")
	v.question = ""
	v.result = nil
	v.sources.SetSources(nil)
	v.err = nil
	v.statusbar.SetState(status.StateReady)
	v.statusbar.SetMessage("")
}
