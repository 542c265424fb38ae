package main

import (
	"errors"
	"log"

	"github.com/fatih/color"

	"github.com/goliatone/go-formfield/pkg/field"
)

var (
	success = color.New(color.FgGreen, color.Bold).SprintFunc()
	failure = color.New(color.FgRed, color.Bold).SprintFunc()
	notice  = color.New(color.FgYellow).SprintFunc()
	faint   = color.New(color.Faint).SprintFunc()
)

// reportBindError logs a classified description of err and returns it so
// cobra exits non-zero.
func reportBindError(err error) error {
	var conflict *field.StructuralConflictError
	var message *field.MessageTemplateError
	var resolution *field.TemplateResolutionError
	switch {
	case errors.As(err, &conflict):
		log.Printf("%s host also carries %q", failure("structural conflict:"), conflict.Directive)
	case errors.As(err, &message):
		log.Printf("%s validator %q: %v", failure("message template:"), message.Key, message.Err)
	case errors.As(err, &resolution):
		log.Printf("%s %s", failure("template:"), resolution.Error())
	default:
		log.Printf("%s %v", failure("error:"), err)
	}
	return err
}
