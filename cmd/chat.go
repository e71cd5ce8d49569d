package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/adalundhe/parley/core/offline"
	"github.com/adalundhe/parley/core/orchestrator"
)

var chatJSON bool

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start a conversation",
	Long: `Start a conversation. Each line is routed to the agent best suited to
answer it. Lines starting with / are commands:

  /agents          list agents
  /switch <agent>  talk to a specific agent
  /reset           start the conversation over
  /offline         mark connectivity as unavailable (with --offline)
  /online          mark connectivity as available and replay the queue
  /quit            leave`,
	RunE: runChat,
}

var askCmd = &cobra.Command{
	Use:   "ask <message>",
	Short: "Send a single message",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runAsk,
}

func init() {
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(askCmd)
	askCmd.Flags().BoolVar(&chatJSON, "json", false, "print the full response envelope as JSON")
}

func runChat(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := buildRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	interactive := false
	if f, ok := cmd.InOrStdin().(*os.File); ok {
		interactive = term.IsTerminal(int(f.Fd()))
	}
	return chatLoop(ctx, rt, cmd.InOrStdin(), cmd.OutOrStdout(), interactive)
}

func chatLoop(ctx context.Context, rt *runtime, in io.Reader, out io.Writer, interactive bool) error {
	scanner := bufio.NewScanner(in)
	for {
		if interactive {
			fmt.Fprint(out, "> ")
		}
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "/") {
			quit, err := chatCommand(ctx, rt, line, out)
			if err != nil {
				fmt.Fprintln(out, "error:", err)
			}
			if quit {
				return nil
			}
			continue
		}
		if err := respond(ctx, rt, line, out, false); err != nil {
			return err
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

func chatCommand(ctx context.Context, rt *runtime, line string, out io.Writer) (quit bool, err error) {
	fields := strings.Fields(line)
	o, err := rt.session()
	if err != nil {
		return false, err
	}

	switch fields[0] {
	case "/quit", "/exit":
		return true, nil
	case "/agents":
		for _, d := range rt.agents.Descriptors() {
			marker := " "
			if d.ID == o.ActiveAgent() {
				marker = "*"
			}
			fmt.Fprintf(out, "%s %-8s %s - %s\n", marker, d.ID, d.Name, d.Description)
		}
	case "/switch":
		if len(fields) < 2 {
			return false, fmt.Errorf("usage: /switch <agent>")
		}
		name := strings.Join(fields[1:], " ")
		if !o.SwitchAgent(name) {
			return false, fmt.Errorf("unknown agent %q", name)
		}
		fmt.Fprintf(out, "Now talking to %s.\n", o.ActiveAgent())
	case "/reset":
		o.ResetConversation()
		fmt.Fprintln(out, "Conversation reset.")
	case "/offline", "/online":
		static, ok := rt.monitor.(*offline.StaticMonitor)
		if !ok {
			return false, fmt.Errorf("connectivity is probed automatically; start with --offline to toggle it")
		}
		static.SetOnline(fields[0] == "/online")
		fmt.Fprintf(out, "Connectivity: %s.\n", onlineLabel(static.Online()))
	default:
		return false, fmt.Errorf("unknown command %s", fields[0])
	}
	return false, nil
}

// respond answers one message, offline if connectivity is down.
func respond(ctx context.Context, rt *runtime, text string, out io.Writer, asJSON bool) error {
	if !rt.monitor.Online() {
		resp := rt.offline.ProcessOfflineRequest(ctx, text)
		if asJSON {
			return writeJSON(out, resp)
		}
		fmt.Fprintf(out, "[offline] %s\n", resp.Text)
		return nil
	}

	o, err := rt.session()
	if err != nil {
		return err
	}
	env := o.RouteMessage(ctx, text, orchestrator.Session{Channel: "cli"})
	if asJSON {
		return writeJSON(out, env)
	}
	printEnvelope(out, env)
	return nil
}

func printEnvelope(out io.Writer, env *orchestrator.Envelope) {
	fmt.Fprintf(out, "%s: %s\n", env.ActiveAgent, env.Text)
	for _, a := range env.Actions {
		fmt.Fprintf(out, "  action %s %v\n", a.Type, a.Payload)
	}
	if len(env.SuggestedFollowups) > 0 {
		fmt.Fprintf(out, "  try: %s\n", strings.Join(env.SuggestedFollowups, " | "))
	}
}

func onlineLabel(online bool) string {
	if online {
		return "online"
	}
	return "offline"
}

func runAsk(cmd *cobra.Command, args []string) error {
	rt, err := buildRuntime(cmd.Context())
	if err != nil {
		return err
	}
	defer rt.Close()
	return respond(cmd.Context(), rt, strings.Join(args, " "), cmd.OutOrStdout(), chatJSON)
}
