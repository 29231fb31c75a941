/*
Package cli provides command-line helpers for the larder command.

Output Formatting:

Command results can be printed as text, JSON, or CSV. Values that
implement Table are rendered as aligned columns in text mode and as rows
in CSV mode:

	formatter := cli.NewFormatter(cli.FormatJSON)
	if err := formatter.FormatTo(os.Stdout, result); err != nil {
		return err
	}

Progress Reporting:

Warming the cache over many paths reports progress on stderr:

	progress := cli.NewProgressReporter(os.Stderr)
	progress.Start(int64(len(paths)))
	for i, p := range paths {
		// fetch p
		progress.Update(int64(i + 1))
	}
	progress.Finish()

Signal Handling:

	ctx, stop := cli.SetupSignalHandler(context.Background())
	defer stop()
	// ctx is canceled on SIGINT or SIGTERM

Exit Codes:

ExitCode maps an error returned by a command to the process exit status:
configuration errors exit with 2, everything else with 1.
*/
package cli
