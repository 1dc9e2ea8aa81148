/*
 * MIT License
 *
 * Copyright (c) 2022-2025  Arsene Tochemey Gandote
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 */

package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/tochemey/eventsourced/actor"
	"github.com/tochemey/eventsourced/log"
	"github.com/tochemey/eventsourced/persistence"
	"github.com/tochemey/eventsourced/persistence/bolt"
)

const shutdownTimeout = 5 * time.Second

const (
	printMessage = "print"
	snapMessage  = "snap"
)

// sendCmd hands every argument to the actor
var sendCmd = &cobra.Command{
	Use:   "send <message>...",
	Short: "Send messages to the actor",
	Long: `Send hands every message to the actor in order.
"print" writes the current state, "snap" saves a snapshot and anything else is persisted.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSend(cmd.Context(), cmd.OutOrStdout(), args)
	},
}

// printCmd writes the current state
var printCmd = &cobra.Command{
	Use:   "print",
	Short: "Print the current state of the actor",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runSend(cmd.Context(), cmd.OutOrStdout(), []string{printMessage})
	},
}

func init() {
	rootCmd.AddCommand(sendCmd, printCmd)
}

func runSend(ctx context.Context, out io.Writer, messages []string) error {
	if ctx == nil {
		ctx = context.Background()
	}

	config, err := LoadConfig()
	if err != nil {
		return err
	}

	logger := log.NewZap(config.LogLevel, os.Stderr)
	defer func() {
		_ = logger.Flush()
	}()

	return send(ctx, config, logger, out, messages)
}

// send opens the journal, recovers the actor and hands it the messages.
// A rejected message does not stop the following ones.
func send(ctx context.Context, config *Config, logger log.Logger, out io.Writer, messages []string) (err error) {
	store, err := bolt.Open(config.Path)
	if err != nil {
		return err
	}

	defer func() {
		err = multierr.Append(err, store.Close(ctx))
	}()

	observer := actor.ObserverFunc(func(_ context.Context, _ persistence.ID, _ uint64, state actor.State) {
		fmt.Fprintf(out, "current state = %v\n", state)
	})

	behavior := actor.NewReceivedBehavior(config.persistenceID())
	pid, err := actor.Spawn(ctx, behavior, store, store, config.options(logger, observer)...)
	if err != nil {
		return err
	}

	defer func() {
		stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		err = multierr.Append(err, pid.Shutdown(stopCtx))
	}()

	for _, message := range messages {
		if _, askErr := pid.Ask(ctx, toCommand(message)); askErr != nil {
			logger.Errorf("message %q rejected: %v", message, askErr)
			err = multierr.Append(err, fmt.Errorf("%s: %w", message, askErr))
		}
	}
	return err
}

func toCommand(message string) actor.Command {
	switch message {
	case printMessage:
		return actor.Inspect()
	case snapMessage:
		return actor.Checkpoint()
	default:
		return actor.Domain(wrapperspb.String(message))
	}
}
