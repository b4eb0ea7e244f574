// Command avre loads an AVR/XMEGA firmware image and replays its
// architectural state: registers, flags, memory, and USART output.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"avre/engine"
	"avre/internal/tui"
	"avre/loader"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "avre",
		Short: "AVR/XMEGA firmware replay interpreter",
	}
	root.AddCommand(runCmd(), stepCmd(), debugCmd())
	return root
}

func runCmd() *cobra.Command {
	var usartInput string
	cmd := &cobra.Command{
		Use:   "run BIN",
		Short: "load and run a firmware image to halt",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := newEngine(args[0], usartInput)
			if err != nil {
				return err
			}
			ctx, cancel := withSignals(e)
			defer cancel()
			if err := e.Run(ctx); err != nil {
				return err
			}
			fmt.Printf("halted at pc=%#06x after %d instructions\n", e.PC, e.InstructionCount())
			return nil
		},
	}
	cmd.Flags().StringVar(&usartInput, "usart-input", "", "file of bytes to pre-load into the USART input FIFO")
	return cmd
}

func stepCmd() *cobra.Command {
	var count int
	var usartInput string
	cmd := &cobra.Command{
		Use:   "step BIN",
		Short: "execute N instructions, dumping state after each",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := newEngine(args[0], usartInput)
			if err != nil {
				return err
			}
			for i := 0; i < count; i++ {
				if e.Halted() {
					break
				}
				if err := e.Step(); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&count, "count", 1, "number of instructions to execute")
	cmd.Flags().StringVar(&usartInput, "usart-input", "", "file of bytes to pre-load into the USART input FIFO")
	return cmd
}

func debugCmd() *cobra.Command {
	var usartInput string
	cmd := &cobra.Command{
		Use:   "debug BIN",
		Short: "launch the interactive step debugger",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := newEngine(args[0], usartInput)
			if err != nil {
				return err
			}
			return tui.Run(e)
		},
	}
	cmd.Flags().StringVar(&usartInput, "usart-input", "", "file of bytes to pre-load into the USART input FIFO")
	return cmd
}

func newEngine(binPath, usartInputPath string) (*engine.Engine, error) {
	mem, err := loader.LoadFile(binPath)
	if err != nil {
		return nil, err
	}
	e := engine.New(mem)
	if usartInputPath != "" {
		b, err := loader.LoadUsartInputFile(usartInputPath)
		if err != nil {
			return nil, err
		}
		e.IO.LoadUsartInput(b)
	}
	return e, nil
}

// withSignals wires SIGUSR1 to a non-blocking diagnostic-dump request the
// engine polls at each instruction boundary, and SIGINT/SIGTERM to the
// context passed to Run/Until for a clean, in-order stop.
func withSignals(e *engine.Engine) (context.Context, context.CancelFunc) {
	dumpSig := make(chan os.Signal, 1)
	signal.Notify(dumpSig, syscall.SIGUSR1)
	e.Signals = dumpSig

	ctx, cancel := context.WithCancel(context.Background())
	stopSig := make(chan os.Signal, 1)
	signal.Notify(stopSig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-stopSig:
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}
