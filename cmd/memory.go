package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var (
	factsLimit  int
	forgetForce bool
)

var memoryCmd = &cobra.Command{
	Use:   "memory",
	Short: "Inspect and manage what parley remembers",
}

var memoryShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the memory document as JSON",
	RunE:  runMemoryShow,
}

var memoryFactsCmd = &cobra.Command{
	Use:   "facts [query]",
	Short: "List remembered facts, or search them",
	RunE:  runMemoryFacts,
}

var memoryRememberCmd = &cobra.Command{
	Use:   "remember <fact>",
	Short: "Add a key fact",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runMemoryRemember,
}

var memoryClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Erase the memory document",
	RunE:  runMemoryClear,
}

func init() {
	rootCmd.AddCommand(memoryCmd)
	memoryCmd.AddCommand(memoryShowCmd)
	memoryCmd.AddCommand(memoryFactsCmd)
	memoryCmd.AddCommand(memoryRememberCmd)
	memoryCmd.AddCommand(memoryClearCmd)

	memoryFactsCmd.Flags().IntVarP(&factsLimit, "limit", "n", 10, "maximum facts returned by a search")
	memoryClearCmd.Flags().BoolVarP(&forgetForce, "force", "f", false, "do not ask for confirmation")
}

func runMemoryShow(cmd *cobra.Command, _ []string) error {
	rt, err := buildRuntime(cmd.Context())
	if err != nil {
		return err
	}
	defer rt.Close()

	o, err := rt.session()
	if err != nil {
		return err
	}
	doc, err := o.Memory().Get(cmd.Context())
	if err != nil {
		return err
	}
	return writeJSON(cmd.OutOrStdout(), doc)
}

func runMemoryFacts(cmd *cobra.Command, args []string) error {
	rt, err := buildRuntime(cmd.Context())
	if err != nil {
		return err
	}
	defer rt.Close()

	o, err := rt.session()
	if err != nil {
		return err
	}
	store := o.Memory()
	out := cmd.OutOrStdout()

	if len(args) == 0 {
		facts, err := store.KeyFacts(cmd.Context())
		if err != nil {
			return err
		}
		for _, f := range facts {
			fmt.Fprintf(out, "%s  %s\n", f.AddedAt.Format("2006-01-02 15:04"), f.Fact)
		}
		return nil
	}

	facts, err := store.RecallFacts(cmd.Context(), strings.Join(args, " "), factsLimit)
	if err != nil {
		return err
	}
	for _, f := range facts {
		fmt.Fprintln(out, f.Fact)
	}
	return nil
}

func runMemoryRemember(cmd *cobra.Command, args []string) error {
	rt, err := buildRuntime(cmd.Context())
	if err != nil {
		return err
	}
	defer rt.Close()

	o, err := rt.session()
	if err != nil {
		return err
	}
	kf, err := o.Memory().AddKeyFact(cmd.Context(), strings.Join(args, " "), map[string]any{"source": "cli"})
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Remembered (%s).\n", kf.ID)
	return nil
}

func runMemoryClear(cmd *cobra.Command, _ []string) error {
	if !forgetForce && !confirm(cmd, "Erase everything remembered for this user?") {
		return nil
	}
	rt, err := buildRuntime(cmd.Context())
	if err != nil {
		return err
	}
	defer rt.Close()

	o, err := rt.session()
	if err != nil {
		return err
	}
	if err := o.Memory().ClearMemory(cmd.Context()); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Memory cleared.")
	return nil
}
