package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/hupe1980/roundtable"
	"github.com/hupe1980/roundtable/core"
)

func newRunCommand(envFile *string) *cobra.Command {
	var (
		modeID     string
		topic      string
		vars       map[string]string
		collection string
		stream     bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one discussion and print its report",
		Long: `Run executes one discussion of the given mode on a topic and prints the
final report. With --stream the agents' answers are printed as they are
generated.

Examples:
  roundtable run --mode dialectical_mode --topic "Four-day work week"
  roundtable run --mode brainstorm_mode --topic "City transport" --context budget=low --stream`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) (err error) {
			a, err := newApp(*envFile)
			if err != nil {
				return err
			}
			defer func() { err = a.joinClose(err) }()

			out := cmd.OutOrStdout()

			in := roundtable.RunInput{
				ModeID:     modeID,
				Topic:      topic,
				Context:    toContext(vars),
				Collection: collection,
				Stream:     stream,
			}
			if stream {
				in.OnEvent = streamPrinter(out)
			}

			state, err := a.rt.Run(cmd.Context(), in)
			if err != nil {
				return err
			}

			if stream {
				fmt.Fprintln(out)
			}
			fmt.Fprintln(out, state.FinalReport)

			return nil
		},
	}

	cmd.Flags().StringVarP(&modeID, "mode", "m", "", "mode id (see 'roundtable templates')")
	cmd.Flags().StringVarP(&topic, "topic", "t", "", "discussion topic")
	cmd.Flags().StringToStringVarP(&vars, "context", "c", nil, "topic context key=value pairs")
	cmd.Flags().StringVar(&collection, "collection", "", "document collection for the notebook reader")
	cmd.Flags().BoolVarP(&stream, "stream", "s", false, "print answers while they are generated")
	_ = cmd.MarkFlagRequired("mode")
	_ = cmd.MarkFlagRequired("topic")

	return cmd
}

func toContext(vars map[string]string) map[string]any {
	out := make(map[string]any, len(vars))
	for k, v := range vars {
		out[k] = v
	}
	return out
}

// streamPrinter writes agent headers and chunks as they arrive.
func streamPrinter(out io.Writer) func(ev core.Event) {
	return func(ev core.Event) {
		switch ev.Type {
		case core.EventAgentStart:
			fmt.Fprintf(out, "\n--- %s (round %d) ---\n", ev.AgentID, ev.Round)
		case core.EventAgentChunk:
			fmt.Fprint(out, ev.Text)
		case core.EventAgentComplete:
			if ev.Message != nil && ev.Message.Error {
				fmt.Fprint(out, ev.Message.Content)
			}
			fmt.Fprintln(out)
		case core.EventError:
			fmt.Fprintf(out, "\n✗ %s\n", ev.ErrorMessage)
		}
	}
}
