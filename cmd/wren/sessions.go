package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/wren-reads/wren/internal/models"
	"github.com/wren-reads/wren/internal/profile"
	"github.com/wren-reads/wren/internal/store"
)

// withStore opens the checkpoint store for a read-only command. No model
// client is needed to inspect sessions.
func (c *cli) withStore(ctx context.Context, fn func(store.Store) error) error {
	st, err := c.deps.openStore(ctx, c.cfg)
	if err != nil {
		return err
	}
	defer st.Close()
	return fn(st)
}

func loadSession(ctx context.Context, st store.Store, id string) (*models.Session, error) {
	sess, err := st.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, fmt.Errorf("%w: %s", models.ErrSessionNotFound, id)
	}
	return sess, nil
}

func (c *cli) sessionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sessions",
		Short: "List stored interview sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withStore(cmd.Context(), func(st store.Store) error {
				infos, err := st.List(cmd.Context())
				if err != nil {
					return err
				}
				printSessions(cmd.OutOrStdout(), st.Backend(), infos)
				return nil
			})
		},
	}
}

func printSessions(out io.Writer, backend string, infos []store.SessionInfo) {
	if len(infos) == 0 {
		fmt.Fprintf(out, "No sessions in %s store.\n", backend)
		return
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SESSION\tTURNS\tSTATUS\tREADER TYPE\tEXPIRES IN")
	for _, info := range infos {
		status := "in progress"
		if info.IsComplete {
			status = "complete"
		}
		expires := "-"
		if info.ExpiresIn > 0 {
			expires = info.ExpiresIn.Round(time.Minute).String()
		}
		archetype := info.ReaderArchetype
		if archetype == "" {
			archetype = "-"
		}
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%s\n", info.SessionID, info.TurnCount, status, archetype, expires)
	}
	tw.Flush()
}

func (c *cli) showCmd() *cobra.Command {
	var rationale bool
	cmd := &cobra.Command{
		Use:   "show <session-id>",
		Short: "Print a session transcript",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withStore(cmd.Context(), func(st store.Store) error {
				sess, err := loadSession(cmd.Context(), st, args[0])
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				status := "in progress"
				if sess.IsComplete {
					status = "complete"
				}
				fmt.Fprintf(out, "Session %s (%d turns, %s)\n\n", sess.ID, sess.TurnCount, status)
				fmt.Fprintln(out, profile.RenderTranscript(sess.Messages, rationale))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&rationale, "rationale", false, "include the model's rationale for each question")
	return cmd
}

func (c *cli) profileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "profile <session-id>",
		Short: "Print the reading profile of a finished session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withStore(cmd.Context(), func(st store.Store) error {
				sess, err := loadSession(cmd.Context(), st, args[0])
				if err != nil {
					return err
				}
				if !sess.IsComplete || sess.Profile == nil {
					return fmt.Errorf("session %s has no profile yet (%d turns so far)", sess.ID, sess.TurnCount)
				}
				rubric := profile.LoadRubricOrDefault(c.cfg.RubricPath)
				out := cmd.OutOrStdout()
				fmt.Fprintln(out, profile.Summary(sess.Profile))
				fmt.Fprintln(out)
				fmt.Fprintln(out, profile.StyleSummary(sess.Profile, rubric))
				return nil
			})
		},
	}
}
