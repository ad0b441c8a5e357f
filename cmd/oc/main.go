package main

import (
	"fmt"
	"os"
	"strings"

	_ "embed"

	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"
)

//go:embed VERSION.txt
var versionFile string

var version = strings.TrimSpace(versionFile)

const usage = `oc - Open Collective expense client

Usage:
  oc <command> [flags]

Commands:
  reimbursement   Submit a receipt-backed reimbursement
  invoice         Submit an invoice expense
  expenses        List expenses for a collective
  expense         Show one expense with its items
  approve         Approve a pending expense
  reject          Reject a pending expense
  delete          Delete an expense
  me              Show the authenticated account
  auth            Obtain and store an access token
  scan            Extract expense data from a receipt file
  history         List locally recorded submissions
  serve-tools     Run the HTTP tool-calling server
  version         Print the version

Run 'oc <command> --help' for command flags.
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}

	cmd, args := os.Args[1], os.Args[2:]

	switch cmd {
	case "version", "--version", "-v":
		fmt.Println(version)
		return
	case "help", "--help", "-h":
		fmt.Print(usage)
		return
	}

	run, ok := commands[cmd]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", cmd)
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}

	if err := run(args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var commands = map[string]func(args []string) error{
	"reimbursement": runReimbursement,
	"invoice":       runInvoice,
	"expenses":      runExpenses,
	"expense":       runExpense,
	"approve":       runApprove,
	"reject":        runReject,
	"delete":        runDelete,
	"me":            runMe,
	"auth":          runAuth,
	"scan":          runScan,
	"history":       runHistory,
	"serve-tools":   runServeTools,
}

// parse runs ff over the command's flags, printing flag help on failure.
func parse(fs *ff.FlagSet, args []string) error {
	if err := ff.Parse(fs, args, ff.WithEnvVarPrefix("OC")); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		return err
	}
	return nil
}

// popArg splits one leading positional argument off the command line,
// so commands can be invoked as "oc approve 285182 --flag ...".
func popArg(args []string, name string) (string, []string, error) {
	if len(args) == 0 || strings.HasPrefix(args[0], "-") {
		return "", nil, fmt.Errorf("missing required argument: %s", name)
	}
	return args[0], args[1:], nil
}
