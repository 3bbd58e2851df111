// Copyright (C) 2022-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.
package flags

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

type flagGroup struct {
	title string
	set   *pflag.FlagSet
}

var groups = map[*cobra.Command][]flagGroup{}

// RegisterFlagGroup adds the flags built by register to cmd and lists them
// under their own heading in the command usage.
func RegisterFlagGroup(cmd *cobra.Command, title string, register func(set *pflag.FlagSet)) {
	set := pflag.NewFlagSet(title, pflag.ContinueOnError)
	register(set)
	cmd.Flags().AddFlagSet(set)
	if _, ok := groups[cmd]; !ok {
		cmd.SetUsageFunc(groupedUsage)
	}
	groups[cmd] = append(groups[cmd], flagGroup{title: title, set: set})
}

func groupedUsage(cmd *cobra.Command) error {
	w := cmd.OutOrStderr()
	fmt.Fprintf(w, "Usage:\n  %s\n", cmd.UseLine())
	if cmd.HasExample() {
		fmt.Fprintf(w, "\nExamples:\n%s\n", cmd.Example)
	}

	grouped := map[string]bool{}
	for _, g := range groups[cmd] {
		g.set.VisitAll(func(f *pflag.Flag) { grouped[f.Name] = true })
	}
	rest := pflag.NewFlagSet("flags", pflag.ContinueOnError)
	cmd.LocalFlags().VisitAll(func(f *pflag.Flag) {
		if !grouped[f.Name] {
			rest.AddFlag(f)
		}
	})
	if rest.HasFlags() {
		fmt.Fprintf(w, "\nFlags:\n%s", rest.FlagUsages())
	}
	for _, g := range groups[cmd] {
		fmt.Fprintf(w, "\n%s:\n%s", g.title, g.set.FlagUsages())
	}
	if cmd.HasAvailableInheritedFlags() {
		fmt.Fprintf(w, "\nGlobal Flags:\n%s", cmd.InheritedFlags().FlagUsages())
	}
	return nil
}
