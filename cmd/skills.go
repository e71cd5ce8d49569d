package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	coreskills "github.com/adalundhe/parley/core/skills"
)

var (
	skillsCategory string
	skillsAll      bool
	skillParams    []string
)

var skillsCmd = &cobra.Command{
	Use:   "skills",
	Short: "List and run skills",
}

var skillsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List available skills",
	Long: `List enabled skills. --category accepts glob patterns such as "home*".
Use --all to include disabled skills.`,
	RunE: runSkillsList,
}

var skillsRunCmd = &cobra.Command{
	Use:   "run <skill-id>",
	Short: "Execute a skill",
	Example: `  parley skills run calculate --param expression="21 * 2"
  parley skills run create_reminder --param content="call mom" --param time="at 5pm"`,
	Args: cobra.ExactArgs(1),
	RunE: runSkillsRun,
}

func init() {
	rootCmd.AddCommand(skillsCmd)
	skillsCmd.AddCommand(skillsListCmd)
	skillsCmd.AddCommand(skillsRunCmd)

	skillsListCmd.Flags().StringVar(&skillsCategory, "category", "", "filter by category (glob)")
	skillsListCmd.Flags().BoolVar(&skillsAll, "all", false, "include disabled skills")
	skillsRunCmd.Flags().StringArrayVarP(&skillParams, "param", "p", nil, "parameter as key=value (repeatable)")
}

func runSkillsList(cmd *cobra.Command, _ []string) error {
	rt, err := buildRuntime(cmd.Context())
	if err != nil {
		return err
	}
	defer rt.Close()

	var infos []coreskills.Info
	if skillsAll {
		infos = rt.skills.List()
	} else {
		infos = rt.skills.ListAvailable(skillsCategory)
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tKIND\tCATEGORY\tENABLED\tDESCRIPTION")
	for _, info := range infos {
		fmt.Fprintf(w, "%s\t%s\t%s\t%t\t%s\n", info.ID, info.Kind, info.Category, info.Enabled, info.Description)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	stats := rt.skills.Stats()
	fmt.Fprintf(cmd.OutOrStdout(), "\n%d skills, %d enabled\n", stats.Total, stats.Enabled)
	return nil
}

func runSkillsRun(cmd *cobra.Command, args []string) error {
	params, err := parseParams(skillParams)
	if err != nil {
		return err
	}
	rt, err := buildRuntime(cmd.Context())
	if err != nil {
		return err
	}
	defer rt.Close()

	res := rt.skills.Execute(cmd.Context(), args[0], params, coreskills.ExecContext{UserID: rt.user})
	if err := writeJSON(cmd.OutOrStdout(), res); err != nil {
		return err
	}
	if !res.Success {
		return fmt.Errorf("skill %s failed: %s", args[0], res.Error)
	}
	return nil
}
