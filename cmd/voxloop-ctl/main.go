package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	cli "github.com/spf13/pflag"

	"voxloop/internal/config"
	"voxloop/internal/history"
	"voxloop/internal/ipc"
	"voxloop/internal/turn"
)

func main() {
	socket := cli.StringP("socket", "s", ipc.DefaultSocketPath, "Control socket path")
	cfgFile := cli.StringP("config", "c", "", "YAML config file (for the history path)")
	historyPath := cli.String("history", "", "Sqlite history journal path")
	limit := cli.IntP("count", "n", 10, "Number of turns to show")
	cli.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: voxloop-ctl [flags] <command>\n\ncommands:\n  stop\tend the running loop\n  history\tshow the latest turns\n\n")
		cli.PrintDefaults()
	}
	cli.Parse()

	cmd := ipc.CmdStop
	if cli.NArg() > 0 {
		cmd = cli.Arg(0)
	}

	if cmd == "history" {
		if err := showHistory(os.Stdout, *cfgFile, *historyPath, *limit); err != nil {
			fmt.Fprintln(os.Stderr, "history:", err)
			os.Exit(1)
		}
		return
	}

	if err := ipc.SendCommand(*socket, cmd); err != nil {
		fmt.Fprintln(os.Stderr, "voxloop not running:", err)
		os.Exit(1)
	}
}

func showHistory(w io.Writer, cfgFile, path string, n int) error {
	if path == "" {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		path = cfg.History
	}
	if path == "" {
		return errors.New("no history journal configured (set history in the config or pass --history)")
	}
	if _, err := os.Stat(path); err != nil {
		return err
	}

	db, err := history.Open(path)
	if err != nil {
		return err
	}
	defer db.Close()

	recs, err := db.Recent(context.Background(), n)
	if err != nil {
		return err
	}
	printTurns(w, recs)
	return nil
}

func printTurns(w io.Writer, recs []turn.Record) {
	if len(recs) == 0 {
		fmt.Fprintln(w, "no turns recorded")
		return
	}
	for _, r := range recs {
		outcome := r.Reply
		if r.Failure != "" {
			outcome = "failed: " + r.Failure
		}
		fmt.Fprintf(w, "%s  %-13s  %q -> %s\n",
			r.StartedAt.Local().Format("2006-01-02 15:04:05"),
			orDash(r.Intent), r.Transcript, strings.TrimSpace(outcome))
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
