package main

import (
	"context"
	"fmt"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/quirelabs/quire/internal/action"
	"github.com/quirelabs/quire/internal/compute"
	"github.com/quirelabs/quire/internal/document"
	"github.com/quirelabs/quire/internal/executor"
	"github.com/quirelabs/quire/internal/logger"
	"github.com/quirelabs/quire/internal/notebook"
	"github.com/quirelabs/quire/internal/notify"
)

var (
	flagRunServer  string
	flagRunOutput  string
	flagRunTimeout time.Duration
)

var runCmd = &cobra.Command{
	Use:   "run <notebook>",
	Short: "Evaluate all input cells against the compute kernel",
	Long: "Run opens the notebook, submits every input cell to the configured " +
		"kernel, waits for the results to land back in the document, and saves " +
		"the updated notebook.",
	Args: cobra.ExactArgs(1),
	RunE: runNotebook,
}

func init() {
	runCmd.Flags().StringVar(&flagRunServer, "server", "", "kernel websocket URL (overrides config)")
	runCmd.Flags().StringVarP(&flagRunOutput, "output", "o", "", "write results here instead of overwriting the input")
	runCmd.Flags().DurationVar(&flagRunTimeout, "timeout", 2*time.Minute, "maximum time to wait for results")
	rootCmd.AddCommand(runCmd)
}

func runNotebook(cmd *cobra.Command, args []string) error {
	serverURL := cfg.Compute.ServerURL
	if flagRunServer != "" {
		serverURL = flagRunServer
	}
	if serverURL == "" {
		return fmt.Errorf("no kernel configured: set compute.server_url or pass --server")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// The bus lets us watch run-status changes without touching the tree
	// from this goroutine.
	bus := notify.NewBus()
	tree := document.NewTree()
	ex := executor.New(action.Env{
		Doc:    tree,
		UI:     bus,
		Loader: notebook.FileLoader{},
	}, cfg.History.MaxEntries)
	disp := executor.NewDispatcher(ex, 64)

	client, err := compute.Dial(ctx, serverURL, disp, nil)
	if err != nil {
		return err
	}
	defer client.Close()
	ex.SetEngine(client)

	// Everything below goes through the dispatcher; the owner loop is the
	// only goroutine that touches the tree until it stops.
	loopCtx, cancelLoop := context.WithCancel(ctx)
	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		disp.Run(loopCtx)
	}()

	if err := disp.Perform(ctx, action.NewOpen(args[0])); err != nil {
		cancelLoop()
		<-loopDone
		return err
	}

	want, err := countInputCells(ctx, disp)
	if err != nil {
		cancelLoop()
		<-loopDone
		return err
	}

	// Count one completion per cell: the kernel's closing SetRunStatus
	// (running=false) marks a cell done.
	var (
		mu   sync.Mutex
		done = make(map[document.ID]bool)
	)
	// Sized so the owner loop never blocks handing us completions.
	finished := make(chan document.ID, want+1)
	bus.Subscribe(notify.TypeRunStatusChanged, func(e notify.Event) bool {
		data := e.Data.(notify.RunStatusData)
		if data.Running {
			return true
		}
		mu.Lock()
		first := !done[data.ID]
		done[data.ID] = true
		mu.Unlock()
		if first {
			finished <- data.ID
		}
		return true
	})

	token := ex.RegisterContinuation(func() {
		logger.Infof("run: all cells submitted")
	})
	runAll := action.NewRunAll()
	runAll.Completion = token
	if err := disp.Perform(ctx, runAll); err != nil {
		cancelLoop()
		<-loopDone
		return err
	}

	deadline := time.NewTimer(flagRunTimeout)
	defer deadline.Stop()
	got := 0
	for got < want {
		select {
		case <-finished:
			got++
		case <-deadline.C:
			logger.Warnf("run: timed out with %d/%d cells finished", got, want)
			got = want
		case <-ctx.Done():
			cancelLoop()
			<-loopDone
			return ctx.Err()
		}
	}

	// Stop the owner loop before reading the tree for the save.
	cancelLoop()
	<-loopDone

	out := flagRunOutput
	if out == "" {
		out = args[0]
	}
	return notebook.Save(tree, out, "")
}

// countInputCells asks the owner loop for the input-cell count so the read
// does not race the tree.
func countInputCells(ctx context.Context, disp *executor.Dispatcher) (int, error) {
	n := 0
	err := disp.Inspect(ctx, func(doc *document.Tree) {
		for _, c := range doc.Cells() {
			if c.Type == document.CellInput {
				n++
			}
		}
	})
	return n, err
}
