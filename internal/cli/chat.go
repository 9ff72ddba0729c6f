package cli

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fennelworks/convo/internal/app"
	"github.com/fennelworks/convo/pkg/chat"
	"github.com/fennelworks/convo/pkg/draft"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive chat session",
	Long: `Starts an interactive prompt. Plain input is submitted as a user
turn; slash commands control sessions and selections:

  /new                start a new session
  /list               list sessions
  /switch <id>        switch to a session
  /regen              regenerate the last reply
  /mode [id]          select a content mode (empty clears)
  /persona [id]       select a persona (empty clears)
  /delete <id>        delete a session
  /quit               exit`,
}

func init() {
	// Assigned here rather than in the literal: runChat reaches back to
	// chatCmd.Long through handleCommand, which would otherwise be an
	// initialization cycle.
	chatCmd.RunE = runChat
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, args []string) error {
	a, log, err := buildApp(false)
	if err != nil {
		return err
	}
	defer log.Close()

	if err := a.Start(); err != nil {
		a.Stop()
		return err
	}
	defer a.Stop()

	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "convo: type a message, /help for commands, /quit to exit")

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "/") {
			quit, err := handleCommand(cmd, a, line)
			if err != nil {
				fmt.Fprintf(out, "error: %v\n", err)
			}
			if quit {
				return nil
			}
			continue
		}

		a.Drafts.Update(draft.Update{Text: &line})
		if err := a.Engine.Submit(ctx, ""); err != nil {
			fmt.Fprintf(out, "error: %v\n", err)
			if !errors.As(err, new(*chat.TerminalError)) {
				continue
			}
		}
		printLastReply(cmd, a)
	}
}

func handleCommand(cmd *cobra.Command, a *app.App, line string) (quit bool, err error) {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	fields := strings.Fields(line)
	arg := ""
	if len(fields) > 1 {
		arg = fields[1]
	}

	switch fields[0] {
	case "/quit", "/exit":
		return true, nil

	case "/help":
		fmt.Fprintln(out, chatCmd.Long)

	case "/new":
		s, err := a.Engine.StartNewSession(ctx)
		if err != nil {
			return false, err
		}
		fmt.Fprintf(out, "session %s\n", s.ID)

	case "/list":
		sums, err := a.Engine.ListSessions(ctx)
		if err != nil {
			return false, err
		}
		for _, s := range sums {
			fmt.Fprintf(out, "%s  %-50s  %d messages  %s\n",
				s.ID, s.Title, s.MessageCount, s.UpdatedAt.Format("2006-01-02 15:04"))
		}

	case "/switch":
		if arg == "" {
			return false, errors.New("usage: /switch <session-id>")
		}
		if err := a.Engine.SwitchSession(ctx, arg); err != nil {
			return false, err
		}
		printHistory(cmd, a, arg)

	case "/regen":
		if err := a.Engine.Regenerate(ctx, ""); err != nil {
			return false, err
		}
		printLastReply(cmd, a)

	case "/mode":
		if arg != "" {
			if _, ok := chat.LookupMode(arg); !ok {
				return false, chat.ErrUnknownMode
			}
		}
		a.Drafts.Update(draft.Update{SelectedMode: &arg})

	case "/persona":
		if arg != "" {
			if _, err := a.Personas.Lookup(arg); err != nil {
				return false, err
			}
		}
		a.Drafts.Update(draft.Update{SelectedPersonaID: &arg})

	case "/delete":
		if arg == "" {
			return false, errors.New("usage: /delete <session-id>")
		}
		if err := a.Engine.DeleteSession(ctx, arg); err != nil {
			return false, err
		}
		fmt.Fprintln(out, "deleted")

	default:
		return false, fmt.Errorf("unknown command %s", fields[0])
	}
	return false, nil
}

func printLastReply(cmd *cobra.Command, a *app.App) {
	id := a.Registry.Active()
	if id == "" {
		return
	}
	s, err := a.Registry.Get(id)
	if err != nil {
		return
	}
	if msg, ok := s.LastMessage(); ok && msg.Role == chat.RoleAssistant {
		prefix := "assistant"
		if msg.ErrorFlag {
			prefix = "assistant (error)"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", prefix, msg.Content)
	}
}

func printHistory(cmd *cobra.Command, a *app.App, id string) {
	s, err := a.Registry.Get(id)
	if err != nil {
		return
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "-- %s --\n", s.Title)
	for _, msg := range s.Messages {
		fmt.Fprintf(out, "%s: %s\n", msg.Role, msg.Content)
	}
}
