package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/goliatone/go-formfield"
)

var renderCmd = &cobra.Command{
	Use:   "render [flags] <file.html>...",
	Short: "Bind every <field> in one or more HTML files and print the result",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runRender,
}

func init() {
	renderCmd.Flags().Bool("sanitize", false, "run the output through the form sanitizing policy")
	renderCmd.Flags().Bool("fragment", false, "treat the input as a fragment instead of a full document")
	renderCmd.Flags().StringP("output", "o", "", "output file, or directory when rendering several files (stdout if empty)")
	renderCmd.Flags().IntP("jobs", "j", 0, "files rendered in parallel (0 = GOMAXPROCS)")
}

func runRender(cmd *cobra.Command, args []string) error {
	cfg, binderOpts, err := binderOptions(cmd)
	if err != nil {
		return err
	}
	opts := []formfield.Option{formfield.WithBinderOptions(binderOpts...)}
	if sanitize, _ := cmd.Flags().GetBool("sanitize"); sanitize || cfg.Sanitize {
		opts = append(opts, formfield.WithSanitizer(nil))
	}
	fragment, _ := cmd.Flags().GetBool("fragment")

	jobs, _ := cmd.Flags().GetInt("jobs")
	if jobs <= 0 {
		jobs = runtime.GOMAXPROCS(0)
	}

	// Each file gets its own scope; scopes are not shared across goroutines.
	results := make([]string, len(args))
	g, gctx := errgroup.WithContext(cmd.Context())
	g.SetLimit(min(jobs, len(args)))
	for i, path := range args {
		g.Go(func() error {
			out, err := renderFile(gctx, cmd, path, fragment, opts)
			if err != nil {
				return err
			}
			results[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return reportBindError(err)
	}

	output, _ := cmd.Flags().GetString("output")
	if output == "" {
		for _, out := range results {
			fmt.Fprintln(cmd.OutOrStdout(), out)
		}
		return nil
	}
	targets := []string{output}
	if len(args) > 1 {
		if err := os.MkdirAll(output, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", output, err)
		}
		targets = targets[:0]
		for _, path := range args {
			targets = append(targets, filepath.Join(output, filepath.Base(path)))
		}
	}
	for i, target := range targets {
		if err := os.WriteFile(target, []byte(results[i]), 0o644); err != nil {
			return fmt.Errorf("write %s: %w", target, err)
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "%s %s\n", success("rendered"), target)
	}
	return nil
}

func renderFile(ctx context.Context, cmd *cobra.Command, path string, fragment bool, opts []formfield.Option) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	markup, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	s, err := loadScope(cmd)
	if err != nil {
		return "", err
	}
	render := formfield.RenderDocument
	if fragment || !looksLikeDocument(string(markup)) {
		render = formfield.RenderFragment
	}
	out, err := render(ctx, string(markup), s, opts...)
	if err != nil {
		return "", fmt.Errorf("%s: %w", path, err)
	}
	return out, nil
}

func looksLikeDocument(markup string) bool {
	head := strings.ToLower(strings.TrimSpace(markup))
	return strings.HasPrefix(head, "<!doctype") || strings.HasPrefix(head, "<html")
}
