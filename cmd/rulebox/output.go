package main

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	jsoniter "github.com/json-iterator/go"
	"gopkg.in/yaml.v3"

	"github.com/caffeineduck/rulebox/hostfunc"
)

type scriptFailure struct {
	File  string `json:"file" yaml:"file"`
	Error string `json:"error" yaml:"error"`
}

// report is the printed form of a run.
type report struct {
	Fails     []hostfunc.Violation `json:"fails" yaml:"fails"`
	Warnings  []hostfunc.Violation `json:"warnings" yaml:"warnings"`
	Messages  []hostfunc.Violation `json:"messages" yaml:"messages"`
	Markdowns []hostfunc.Violation `json:"markdowns" yaml:"markdowns"`
	Errors    []scriptFailure      `json:"errors,omitempty" yaml:"errors,omitempty"`
}

func newReport(results *hostfunc.Results, failures []scriptFailure) report {
	return report{
		Fails:     results.Fails,
		Warnings:  results.Warnings,
		Messages:  results.Messages,
		Markdowns: results.Markdowns,
		Errors:    failures,
	}
}

func validFormat(format string) bool {
	switch format {
	case "text", "json", "yaml":
		return true
	}
	return false
}

func writeReport(w io.Writer, format string, rep report) error {
	switch format {
	case "json":
		enc := jsoniter.ConfigCompatibleWithStandardLibrary.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rep)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(rep); err != nil {
			return err
		}
		return enc.Close()
	default:
		writeText(w, rep)
		return nil
	}
}

var (
	failLabel     = color.New(color.FgHiRed, color.Bold)
	warnLabel     = color.New(color.FgYellow, color.Bold)
	messageLabel  = color.New(color.FgCyan)
	markdownLabel = color.New(color.FgHiWhite, color.Faint)
	errorLabel    = color.New(color.FgRed)
	passLabel     = color.New(color.FgHiGreen)
)

func writeText(w io.Writer, rep report) {
	section(w, failLabel, "fail", rep.Fails)
	section(w, warnLabel, "warn", rep.Warnings)
	section(w, messageLabel, "message", rep.Messages)
	for _, md := range rep.Markdowns {
		markdownLabel.Fprintln(w, md.Message)
	}
	for _, f := range rep.Errors {
		errorLabel.Fprintf(w, "error  %s: %s\n", f.File, f.Error)
	}

	total := len(rep.Fails) + len(rep.Warnings) + len(rep.Messages) + len(rep.Markdowns)
	switch {
	case len(rep.Fails) > 0 || len(rep.Errors) > 0:
		failLabel.Fprintf(w, "%d failed, %d warnings, %d errors\n", len(rep.Fails), len(rep.Warnings), len(rep.Errors))
	case total == 0:
		passLabel.Fprintln(w, "no findings")
	default:
		passLabel.Fprintf(w, "passed with %d warnings\n", len(rep.Warnings))
	}
}

func section(w io.Writer, label *color.Color, name string, vs []hostfunc.Violation) {
	for _, v := range vs {
		label.Fprintf(w, "%-7s", name)
		fmt.Fprintf(w, " %s", v.Message)
		if v.File != "" {
			fmt.Fprintf(w, " (%s", v.File)
			if v.Line > 0 {
				fmt.Fprintf(w, ":%d", v.Line)
			}
			fmt.Fprint(w, ")")
		}
		fmt.Fprintln(w)
	}
}
