package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/goliatone/go-formfield"
	"github.com/goliatone/go-formfield/internal/prompt"
	"github.com/goliatone/go-formfield/pkg/dom"
	"github.com/goliatone/go-formfield/pkg/field"
)

// newDriver is swapped in tests.
var newDriver = prompt.Survey

var tryCmd = &cobra.Command{
	Use:   "try [flags] <file.html>",
	Short: "Bind the first <field> in a file and validate values interactively",
	Args:  cobra.ExactArgs(1),
	RunE:  runTry,
}

func runTry(cmd *cobra.Command, args []string) error {
	markup, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read %s: %w", args[0], err)
	}
	_, binderOpts, err := binderOptions(cmd)
	if err != nil {
		return err
	}
	s, err := loadScope(cmd)
	if err != nil {
		return err
	}
	f, err := formfield.Bind(cmd.Context(), string(markup), s, formfield.WithBinderOptions(binderOpts...))
	if err != nil {
		return reportBindError(err)
	}
	defer f.Destroy()

	out := cmd.OutOrStdout()
	label := f.Label()
	if label == "" {
		label = f.Binding().ModelPath
	}
	fmt.Fprintf(out, "%s %s %s\n", success("bound"), label, faint("("+f.Binding().ModelPath+")"))

	driver := newDriver()
	for {
		value, err := ask(cmd, driver, f, label)
		if err != nil {
			return quietAbort(err)
		}
		if err := f.SetViewValue(value); err != nil {
			return err
		}
		printState(out, f)

		again, err := driver.Confirm(cmd.Context(), prompt.ConfirmConfig{Message: "Try another value?", Default: true})
		if err != nil {
			return quietAbort(err)
		}
		if !again {
			return nil
		}
	}
}

// ask picks the prompt matching the composed input element.
func ask(cmd *cobra.Command, driver prompt.Driver, f *field.Field, label string) (string, error) {
	ctx := cmd.Context()
	cfg := prompt.InputConfig{
		Message: label + ":",
		Default: f.Controller().ViewValue(),
		Help:    "rules: " + strings.Join(f.Controller().Keys(), ", "),
	}
	kind, _ := dom.Attr(f.Composed().Input, "type")
	switch strings.ToLower(kind) {
	case "password":
		return driver.Password(ctx, cfg)
	case "checkbox":
		current, _ := strconv.ParseBool(cfg.Default)
		checked, err := driver.Confirm(ctx, prompt.ConfirmConfig{Message: cfg.Message, Default: current, Help: cfg.Help})
		if err != nil {
			return "", err
		}
		return strconv.FormatBool(checked), nil
	default:
		return driver.Input(ctx, cfg)
	}
}

func printState(out io.Writer, f *field.Field) {
	errs := f.Errors()
	if len(errs) == 0 {
		fmt.Fprintf(out, "  %s valid, model value %v\n", success("✓"), f.Controller().ModelValue())
		return
	}
	fmt.Fprintf(out, "  %s $fieldErrors = [%s]\n", failure("✗"), strings.Join(errs, ", "))
	msg, err := f.Message()
	if err != nil {
		fmt.Fprintf(out, "  %s %v\n", failure("message:"), err)
		return
	}
	if msg != "" {
		fmt.Fprintf(out, "  %s\n", notice(messageText(msg)))
	}
}

// messageText collapses message whitespace for the terminal.
func messageText(msg string) string {
	return strings.Join(strings.Fields(msg), " ")
}

func quietAbort(err error) error {
	if errors.Is(err, prompt.ErrAborted) {
		return nil
	}
	return err
}
