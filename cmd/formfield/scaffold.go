package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/goliatone/go-formfield/pkg/openapi"
)

var scaffoldCmd = &cobra.Command{
	Use:   "scaffold [flags] <openapi.yaml|url>",
	Short: "Print <field> hosts for an operation's request body",
	Args:  cobra.ExactArgs(1),
	RunE:  runScaffold,
}

func init() {
	scaffoldCmd.Flags().String("operation", "", "operation ID (lists operations when empty)")
	scaffoldCmd.Flags().String("prefix", "", "model path prefix, e.g. user")
	scaffoldCmd.Flags().Uint64("textarea-threshold", 255, "maxLength above which strings use the textarea template (0 disables)")
}

func runScaffold(cmd *cobra.Command, args []string) error {
	src, err := parseSource(args[0])
	if err != nil {
		return err
	}
	data, err := openapi.Load(cmd.Context(), src)
	if err != nil {
		return err
	}

	operation, _ := cmd.Flags().GetString("operation")
	if operation == "" {
		ops, err := openapi.Operations(cmd.Context(), data)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.ErrOrStderr(), notice("no --operation given; available operations:"))
		for _, op := range ops {
			fmt.Fprintln(cmd.OutOrStdout(), op)
		}
		return nil
	}

	prefix, _ := cmd.Flags().GetString("prefix")
	threshold, _ := cmd.Flags().GetUint64("textarea-threshold")
	markup, err := openapi.Scaffold(cmd.Context(), data, operation,
		openapi.WithPrefix(prefix),
		openapi.WithTextareaThreshold(threshold),
	)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), markup)
	return nil
}

func parseSource(raw string) (openapi.Source, error) {
	path := strings.TrimSpace(raw)
	if path == "" {
		return openapi.Source{}, fmt.Errorf("empty source")
	}
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return openapi.SourceFromURL(path)
	}
	return openapi.SourceFromFile(path), nil
}
