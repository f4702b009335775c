package hostfunc

import (
	"sync"

	"github.com/dop251/goja"
)

// Violation is a single finding reported by a rule file.
type Violation struct {
	Message string `json:"message" yaml:"message"`
	File    string `json:"file,omitempty" yaml:"file,omitempty"`
	Line    int    `json:"line,omitempty" yaml:"line,omitempty"`
}

// Results accumulates findings written by the review capabilities.
type Results struct {
	Fails     []Violation `json:"fails" yaml:"fails"`
	Warnings  []Violation `json:"warnings" yaml:"warnings"`
	Messages  []Violation `json:"messages" yaml:"messages"`
	Markdowns []Violation `json:"markdowns" yaml:"markdowns"`

	mu sync.Mutex
}

func NewResults() *Results {
	return &Results{
		Fails:     []Violation{},
		Warnings:  []Violation{},
		Messages:  []Violation{},
		Markdowns: []Violation{},
	}
}

func (r *Results) Fail(v Violation) {
	r.mu.Lock()
	r.Fails = append(r.Fails, v)
	r.mu.Unlock()
}

func (r *Results) Warn(v Violation) {
	r.mu.Lock()
	r.Warnings = append(r.Warnings, v)
	r.mu.Unlock()
}

func (r *Results) Message(v Violation) {
	r.mu.Lock()
	r.Messages = append(r.Messages, v)
	r.mu.Unlock()
}

func (r *Results) Markdown(v Violation) {
	r.mu.Lock()
	r.Markdowns = append(r.Markdowns, v)
	r.mu.Unlock()
}

// Failed reports whether any fail was recorded.
func (r *Results) Failed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.Fails) > 0
}

// Count returns the total number of findings.
func (r *Results) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.Fails) + len(r.Warnings) + len(r.Messages) + len(r.Markdowns)
}

// AsResults type-asserts a bundle's results member.
func AsResults(v any) (*Results, bool) {
	r, ok := v.(*Results)
	return r, ok && r != nil
}

// NewReviewBundle returns a bundle with warn, fail, message and markdown
// writing into results, and results itself under ResultsKey.
func NewReviewBundle(results *Results) *Bundle {
	return NewBundle().
		MustRegister("fail", reporter(results.Fail)).
		MustRegister("warn", reporter(results.Warn)).
		MustRegister("message", reporter(results.Message)).
		MustRegister("markdown", reporter(results.Markdown)).
		MustRegister(ResultsKey, results)
}

// reporter adapts a sink to the script calling convention
// fn(message, file?, line?).
func reporter(sink func(Violation)) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		v := Violation{Message: call.Argument(0).String()}
		if file := call.Argument(1); !goja.IsUndefined(file) && !goja.IsNull(file) {
			v.File = file.String()
		}
		if line := call.Argument(2); !goja.IsUndefined(line) && !goja.IsNull(line) {
			v.Line = int(line.ToInteger())
		}
		sink(v)
		return goja.Undefined()
	}
}
