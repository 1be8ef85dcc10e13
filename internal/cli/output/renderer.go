// Package output renders command results for terminals, pipes and tools.
//
// Output adapts to the environment: a terminal gets styled text, anything
// else gets markdown. JSON is available on request.
package output

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/goccy/go-json"
	"github.com/muesli/termenv"
	"golang.org/x/term"
)

// Mode selects how a Renderer formats output.
type Mode string

// Output modes.
const (
	ModeAuto     Mode = "auto"
	ModeText     Mode = "text"
	ModeMarkdown Mode = "markdown"
	ModeJSON     Mode = "json"
)

// Renderer writes command output in the effective mode.
type Renderer struct {
	out    io.Writer
	errOut io.Writer
	mode   Mode
	isTTY  bool
	styles *Styles

	mu       sync.Mutex
	progress bool
}

// NewRenderer creates a renderer, detecting whether out is a terminal.
func NewRenderer(out, errOut io.Writer, mode Mode) *Renderer {
	return NewRendererWithTTY(out, errOut, isTerminal(out), mode)
}

// NewRendererWithTTY creates a renderer with an explicit TTY state.
func NewRendererWithTTY(out, errOut io.Writer, isTTY bool, mode Mode) *Renderer {
	if mode == "" {
		mode = ModeAuto
	}
	lr := lipgloss.NewRenderer(out)
	if !isTTY || termenv.EnvNoColor() {
		lr.SetColorProfile(termenv.Ascii)
	}
	return &Renderer{
		out:    out,
		errOut: errOut,
		mode:   mode,
		isTTY:  isTTY,
		styles: NewStyles(lr),
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// EffectiveMode resolves ModeAuto: text on a terminal, markdown otherwise.
func (r *Renderer) EffectiveMode() Mode {
	if r.mode != ModeAuto {
		return r.mode
	}
	if r.isTTY {
		return ModeText
	}
	return ModeMarkdown
}

// IsTTY reports whether the output is a terminal.
func (r *Renderer) IsTTY() bool { return r.isTTY }

// Styles returns the renderer's styles.
func (r *Renderer) Styles() *Styles { return r.styles }

// Writer returns the standard output writer.
func (r *Renderer) Writer() io.Writer { return r.out }

// ErrWriter returns the error output writer.
func (r *Renderer) ErrWriter() io.Writer { return r.errOut }

// Println writes a line to standard output.
func (r *Renderer) Println(a ...any) {
	_, _ = fmt.Fprintln(r.out, a...)
}

// Printf writes formatted text to standard output.
func (r *Renderer) Printf(format string, a ...any) {
	_, _ = fmt.Fprintf(r.out, format, a...)
}

// Header writes a level 1 or 2 header in the effective mode.
func (r *Renderer) Header(level int, text string) {
	if r.EffectiveMode() == ModeMarkdown {
		r.Println(FormatHeader(level, text))
		r.Println()
		return
	}
	style := r.styles.Header2
	if level <= 1 {
		style = r.styles.Header1
	}
	r.Println(style.Render(text))
}

// KeyValue writes a labelled value.
func (r *Renderer) KeyValue(key, value string) {
	if r.EffectiveMode() == ModeMarkdown {
		r.Println(FormatKeyValue(key, value))
		return
	}
	r.Printf("  %s %s\n", r.styles.Muted.Render(key+":"), value)
}

// Success writes a success message.
func (r *Renderer) Success(msg string) {
	r.Println(r.styles.Success.Render(msg))
}

// Warning writes a warning to the error output.
func (r *Renderer) Warning(msg string) {
	_, _ = fmt.Fprintln(r.errOut, r.styles.Warning.Render(msg))
}

// Muted writes de-emphasized text.
func (r *Renderer) Muted(msg string) {
	r.Println(r.styles.Muted.Render(msg))
}

// JSON writes v as indented JSON.
func (r *Renderer) JSON(v any) error {
	enc := json.NewEncoder(r.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// Progress shows a progress bar on the error output of a terminal.
// Finish with ProgressDone.
func (r *Renderer) Progress(label string, fraction float64) {
	if !r.isTTY || r.EffectiveMode() != ModeText {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.progress = true
	_, _ = fmt.Fprintf(r.errOut, "\r%s %s %3.0f%%", label, progressBar(fraction, 24), fraction*100)
}

// ProgressDone ends a progress line started with Progress.
func (r *Renderer) ProgressDone() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.progress {
		_, _ = fmt.Fprintln(r.errOut)
		r.progress = false
	}
}

func progressBar(fraction float64, width int) string {
	if fraction < 0 {
		fraction = 0
	}
	if fraction > 1 {
		fraction = 1
	}
	filled := int(fraction * float64(width))
	bar := make([]rune, width)
	for i := range bar {
		if i < filled {
			bar[i] = '█'
		} else {
			bar[i] = '░'
		}
	}
	return string(bar)
}
