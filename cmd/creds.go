package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/adalundhe/parley/core/credentials"
	"github.com/adalundhe/parley/core/storage"
)

var (
	credsValue   string
	credsProfile string
)

var credsCmd = &cobra.Command{
	Use:   "creds",
	Short: "Manage stored integration secrets",
	Long: `Manage secrets stored in the encrypted credential file.

Known names:
  workflow   API key for external workflow skills
  anthropic  Anthropic API key for persona replies
  openai     OpenAI API key for persona replies

Environment variables (PARLEY_WORKFLOW_API_KEY, ANTHROPIC_API_KEY,
OPENAI_API_KEY) take precedence over stored values.`,
}

var credsSetCmd = &cobra.Command{
	Use:   "set <name>",
	Short: "Store a secret",
	Args:  cobra.ExactArgs(1),
	RunE:  runCredsSet,
}

var credsDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Remove a stored secret",
	Args:  cobra.ExactArgs(1),
	RunE:  runCredsDelete,
}

var credsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored secret names",
	RunE:  runCredsList,
}

func init() {
	rootCmd.AddCommand(credsCmd)
	credsCmd.AddCommand(credsSetCmd)
	credsCmd.AddCommand(credsDeleteCmd)
	credsCmd.AddCommand(credsListCmd)

	credsCmd.PersistentFlags().StringVar(&credsProfile, "profile", "", "credential profile")
	credsSetCmd.Flags().StringVar(&credsValue, "value", "", "secret value (prompted for when omitted)")
}

func credsManager() (*credentials.Manager, error) {
	return credentials.NewManager(storage.ResolveDirs(), credsProfile)
}

func runCredsSet(cmd *cobra.Command, args []string) error {
	name := strings.ToLower(args[0])
	value := credsValue
	if value == "" {
		var err error
		if value, err = readSecret(cmd, name); err != nil {
			return err
		}
	}
	mgr, err := credsManager()
	if err != nil {
		return err
	}
	if err := mgr.Set(name, value); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Stored %s for profile %s.\n", name, mgr.CurrentProfile())
	return nil
}

func runCredsDelete(cmd *cobra.Command, args []string) error {
	mgr, err := credsManager()
	if err != nil {
		return err
	}
	name := strings.ToLower(args[0])
	if err := mgr.Delete(name); err != nil {
		if errors.Is(err, credentials.ErrCredentialNotFound) {
			fmt.Fprintf(cmd.OutOrStdout(), "No stored %s.\n", name)
			return nil
		}
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Removed %s.\n", name)
	return nil
}

func runCredsList(cmd *cobra.Command, _ []string) error {
	mgr, err := credsManager()
	if err != nil {
		return err
	}
	names, err := mgr.List()
	if err != nil {
		return err
	}
	for _, name := range names {
		fmt.Fprintln(cmd.OutOrStdout(), name)
	}
	return nil
}

// readSecret reads without echo from a terminal, or one line otherwise.
func readSecret(cmd *cobra.Command, name string) (string, error) {
	fmt.Fprintf(cmd.ErrOrStderr(), "Enter %s: ", name)
	if f, ok := cmd.InOrStdin().(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		raw, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(cmd.ErrOrStderr())
		if err != nil {
			return "", fmt.Errorf("reading secret: %w", err)
		}
		return strings.TrimSpace(string(raw)), nil
	}
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("reading secret: %w", err)
	}
	return strings.TrimSpace(line), nil
}

// confirm asks a yes/no question on the command's input.
func confirm(cmd *cobra.Command, question string) bool {
	fmt.Fprintf(cmd.ErrOrStderr(), "%s [y/N]: ", question)
	line, _ := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	}
	return false
}
