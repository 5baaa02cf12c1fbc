package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/wren-reads/wren/internal/interview"
	"github.com/wren-reads/wren/internal/messaging"
	"github.com/wren-reads/wren/internal/models"
	"github.com/wren-reads/wren/internal/profile"
)

func (c *cli) chatCmd() *cobra.Command {
	var sessionID string
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Run an interview in the terminal",
		Long: `Run an interview over stdin and stdout. Type /done to finish early.
Pass --session to resume an unfinished interview.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			st, err := c.deps.openStore(ctx, c.cfg)
			if err != nil {
				return err
			}
			defer st.Close()
			engine, err := c.deps.newEngine(c.cfg, st)
			if err != nil {
				return err
			}
			if sessionID == "" {
				sessionID = uuid.New().String()
			}
			return runChat(ctx, engine, sessionID, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&sessionID, "session", "", "session id to start or resume")
	return cmd
}

// runChat drives one session from in until it completes or in is exhausted.
func runChat(ctx context.Context, engine *interview.Engine, sessionID string, in io.Reader, out io.Writer) error {
	res, err := engine.Start(ctx, sessionID)
	if errors.Is(err, models.ErrSessionAlreadyComplete) {
		sess, gerr := engine.Get(ctx, sessionID)
		if gerr != nil {
			return gerr
		}
		fmt.Fprintf(out, "Session %s is already complete.\n\n%s\n", sessionID, profile.Summary(sess.Profile))
		return nil
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Session %s\n\nwren> %s\n", sessionID, res.Message)

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "you> ")
		if !scanner.Scan() {
			break
		}
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}

		if strings.EqualFold(text, messaging.DoneCommand) {
			res, err = engine.ForceComplete(ctx, sessionID)
		} else {
			res, err = engine.Advance(ctx, sessionID, text)
		}
		switch {
		case err != nil && models.IsRetryable(err):
			fmt.Fprintf(out, "\n(%v)\nPlease send that again.\n", err)
			continue
		case err != nil:
			return err
		}

		fmt.Fprintf(out, "\nwren> %s\n", res.Message)
		if res.IsComplete {
			return nil
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	fmt.Fprintf(out, "\nSession saved. Resume with: wren chat --session %s\n", sessionID)
	return nil
}
