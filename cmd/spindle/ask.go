package main

import (
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"github.com/spindleworks/spindle/pkg/stream"
)

var askCmd = &cobra.Command{
	Use:   "ask [prompt...]",
	Short: "Send one prompt and stream the reply",
	Long: `Ask sends the prompt to the configured provider, prints the reply as
it streams, and records both sides of the exchange in the target
thread. Interrupting with Ctrl-C aborts the stream cleanly; whatever
arrived before the abort is kept.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := initRuntime()
		if err != nil {
			return err
		}

		threadID, _ := cmd.Flags().GetString("thread")
		if threadID != "" {
			rt.Store.SwitchThread(threadID)
		}
		prompt := strings.Join(args, " ")

		printer := stream.HandlerFunc{
			EventFunc: func(event stream.Event) error {
				if event.Kind == stream.EventChunk {
					fmt.Print(event.Content)
				}
				return nil
			},
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		handle, err := rt.Send(ctx, threadID, prompt, printer)
		if err != nil {
			return err
		}
		<-handle.Done()
		fmt.Println()
		return handle.Err()
	},
}

func init() {
	askCmd.Flags().StringP("thread", "t", "", "thread id (defaults to the current thread)")
	rootCmd.AddCommand(askCmd)
}
