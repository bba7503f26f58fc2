/*
Package cli provides command-line helpers for the certify command.

Output Formatting:

Command results are rendered as text or JSON:

	formatter, err := cli.NewFormatter(cli.FormatJSON)
	if err != nil {
		return err
	}
	if err := formatter.FormatTo(os.Stdout, result); err != nil {
		return err
	}

Values that implement TextRenderer control their own text output; other
values are printed with %v.

Output Files:

OpenOutput returns stdout for an empty path and a created file otherwise,
so that --output flags share one code path.

Signal Handling:

For cancellation on SIGINT/SIGTERM:

	ctx, stop := cli.SetupSignalHandler()
	defer stop()
*/
package cli
