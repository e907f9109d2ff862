// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Command blackout-suppress reviews and edits the suppression file written
// by blackout -generate-suppressions.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/fatih/color"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	"blackout/internal/suppressions"
)

const timeLayout = "2006-01-02 15:04:05"

var actions = []string{"list", "remove", "cleanup", "enable", "disable"}

type options struct {
	file        string
	action      string
	id          string
	hash        string
	reason      string
	format      string
	enabledOnly bool
	noColor     bool
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	var opts options
	fs := flag.NewFlagSet("blackout-suppress", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&opts.file, "suppression-file", "", "Path to suppression configuration file (default: "+suppressions.DefaultFile+")")
	fs.StringVar(&opts.action, "action", "", "Action to perform: "+strings.Join(actions, ", "))
	fs.StringVar(&opts.id, "id", "", "Suppression rule ID (for remove)")
	fs.StringVar(&opts.hash, "hash", "", "Finding hash (for enable and disable)")
	fs.StringVar(&opts.reason, "reason", "", "Reason for suppression (for enable)")
	fs.StringVar(&opts.format, "format", "text", "Output format for list: text or yaml")
	fs.BoolVar(&opts.enabledOnly, "enabled-only", false, "List only enabled rules")
	fs.BoolVar(&opts.noColor, "no-color", false, "Disable colored output")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	if opts.action == "" {
		fmt.Fprintln(stderr, "Error: -action is required")
		fmt.Fprintln(stderr, "Usage: blackout-suppress -action <"+strings.Join(actions, "|")+"> [options]")
		return 2
	}

	manager := suppressions.NewSuppressionManager(opts.file)

	var err error
	switch opts.action {
	case "list":
		err = listSuppressions(manager, opts, stdout)
	case "remove":
		if opts.id == "" {
			err = fmt.Errorf("-id is required for remove")
			break
		}
		if err = manager.RemoveSuppression(opts.id); err == nil {
			fmt.Fprintf(stdout, "Removed suppression rule %s\n", opts.id)
		}
	case "cleanup":
		var removed int
		if removed, err = manager.CleanupExpired(); err == nil {
			fmt.Fprintf(stdout, "Cleaned up %d expired suppression rules\n", removed)
		}
	case "enable", "disable":
		if opts.hash == "" {
			err = fmt.Errorf("-hash is required for %s", opts.action)
			break
		}
		if opts.action == "enable" {
			err = manager.EnableSuppressionByHash(opts.hash, opts.reason)
		} else {
			err = manager.DisableSuppressionByHash(opts.hash)
		}
		if err == nil {
			fmt.Fprintf(stdout, "Suppression %sd for hash %s\n", opts.action, shortHash(opts.hash))
		}
	default:
		err = fmt.Errorf("unknown action '%s'. Valid actions: %s", opts.action, strings.Join(actions, ", "))
	}

	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func listSuppressions(manager *suppressions.SuppressionManager, opts options, stdout io.Writer) error {
	rules := manager.ListSuppressions()
	if opts.enabledOnly {
		kept := rules[:0]
		for _, rule := range rules {
			if rule.Enabled {
				kept = append(kept, rule)
			}
		}
		rules = kept
	}
	sort.SliceStable(rules, func(i, j int) bool { return rules[i].CreatedAt.Before(rules[j].CreatedAt) })

	switch opts.format {
	case "yaml":
		data, err := yaml.Marshal(suppressions.SuppressionConfig{Version: "1.0", Rules: rules})
		if err != nil {
			return fmt.Errorf("marshal rules: %w", err)
		}
		_, err = stdout.Write(data)
		return err
	case "text":
	default:
		return fmt.Errorf("unsupported format '%s'. Available formats: text, yaml", opts.format)
	}

	if len(rules) == 0 {
		fmt.Fprintln(stdout, "No suppression rules found.")
		return nil
	}

	enabled := color.New(color.FgGreen)
	disabled := color.New(color.FgYellow)
	if opts.noColor || !isTerminal(stdout) {
		enabled.DisableColor()
		disabled.DisableColor()
	}

	fmt.Fprintf(stdout, "Found %d suppression rules in %s:\n\n", len(rules), manager.GetConfigPath())
	for _, rule := range rules {
		state := disabled.Sprint("disabled")
		if rule.Enabled {
			state = enabled.Sprint("enabled")
		}
		fmt.Fprintf(stdout, "%s [%s] %s\n", rule.ID, state, rule.Hash)
		fmt.Fprintf(stdout, "  Reason: %s\n", rule.Reason)
		if rule.CreatedBy != "" {
			fmt.Fprintf(stdout, "  Created By: %s\n", rule.CreatedBy)
		}
		fmt.Fprintf(stdout, "  Created At: %s\n", rule.CreatedAt.Format(timeLayout))
		if rule.LastSeenAt != nil {
			fmt.Fprintf(stdout, "  Last Seen At: %s\n", rule.LastSeenAt.Format(timeLayout))
		}
		if rule.ExpiresAt != nil {
			fmt.Fprintf(stdout, "  Expires At: %s\n", rule.ExpiresAt.Format(timeLayout))
		}
		keys := make([]string, 0, len(rule.Metadata))
		for k := range rule.Metadata {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(stdout, "  %s: %s\n", k, rule.Metadata[k])
		}
	}
	return nil
}

func shortHash(hash string) string {
	return hash[:min(8, len(hash))]
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
