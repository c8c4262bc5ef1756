package main

import (
	flags "github.com/jessevdk/go-flags"
	mbp "go.gazette.dev/core/mainboilerplate"
)

const iniFilename = "chronokvd.ini"

func main() {
	var parser = flags.NewParser(nil, flags.HelpFlag|flags.PassDoubleDash)

	addCmd(parser, "serve", "Serve the backup endpoint", `
Serve the backup gRPC endpoint, backed by an embedded RocksDB instance and
an etcd-resident shard topology, until signaled to exit.
`, &cmdServe{})

	addCmd(parser, "backup", "Trigger a backup task against a running endpoint", `
Invoke the Backup RPC against a running chronokvd endpoint and print each
streamed response until the terminal sentinel.
`, &cmdBackup{})

	addCmd(parser, "plan-diff", "Diff two plans for the same key range", `
Run the ShardPlanner twice against the same shard directory, --interval apart,
and print a structural diff of the resulting PlanUnits. Useful for debugging
topology flapping between two poll cycles.
`, &cmdPlanDiff{})

	mbp.AddPrintConfigCmd(parser, iniFilename)
	mbp.MustParseConfig(parser, iniFilename)
}

func addCmd(to interface {
	AddCommand(string, string, string, interface{}) (*flags.Command, error)
}, a, b, c string, iface interface{}) *flags.Command {
	var cmd, err = to.AddCommand(a, b, c, iface)
	mbp.Must(err, "failed to add flags parser command")
	return cmd
}
