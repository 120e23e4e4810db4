package main

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/steveyegge/cockpit/internal/remediate"
)

// filteredCmd builds list, retry and cancel, which differ only in action and
// whether a filter is mandatory.
func (a *app) filteredCmd(action remediate.Action, requireFilter bool, cmd *cobra.Command) *cobra.Command {
	var filters filterFlags
	filters.register(cmd.Flags())
	cmd.Args = cobra.NoArgs
	cmd.RunE = func(cmd *cobra.Command, _ []string) error {
		if err := filters.validate(requireFilter); err != nil {
			return err
		}
		filter, err := filters.build(a.now())
		if err != nil {
			return err
		}
		return a.execute(cmd, remediate.Request{Action: action, Filter: filter})
	}
	return cmd
}

func (a *app) listCmd() *cobra.Command {
	return a.filteredCmd(remediate.ActionList, false, &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List failed jobs",
		Long: `List the failed jobs of the selected engines: every failedJob incident
joined with its job. Prints nothing when there are none.`,
		Example: `  cockpit list -e prod --all
  cockpit list -e prod -n order-engine -m 'Connection (refused|reset)' --from -6h`,
	})
}

func (a *app) retryCmd() *cobra.Command {
	return a.filteredCmd(remediate.ActionRetry, true, &cobra.Command{
		Use:     "retry",
		Aliases: []string{"resolve"},
		Short:   "Resolve incidents by retrying their failed jobs",
		Long: `Set the retries of every matching failed job back to 1 so the engine runs
it again. A failure on one job is reported and the rest still run.`,
		Example: `  cockpit retry -e prod -n order-engine -i 8f1c0b9e-...
  cockpit retry -e prod --all -m 'timed out' --from "yesterday 9am" --to "today 9am"`,
	})
}

func (a *app) cancelCmd() *cobra.Command {
	return a.filteredCmd(remediate.ActionCancel, true, &cobra.Command{
		Use:   "cancel",
		Short: "Cancel the process instances of failed jobs",
		Long: `Delete the process instance of every matching failed job, then every
process instance that started it, up to the top of the call chain.`,
		Example: `  cockpit cancel -e prod -n order-engine -m NullPointerException`,
	})
}

func (a *app) cancelInstanceCmd() *cobra.Command {
	var id string
	cmd := &cobra.Command{
		Use:   "cancel-instance [process-instance-id]",
		Short: "Cancel one process instance and its parents, with or without incidents",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				if id != "" && id != args[0] {
					return errors.New("process instance id given twice with different values")
				}
				id = args[0]
			}
			if id == "" {
				return errors.New("cancel-instance requires a process instance id")
			}
			return a.execute(cmd, remediate.Request{Action: remediate.ActionCancelInstance, ProcessInstanceID: id})
		},
	}
	cmd.Flags().StringVarP(&id, "process-instance-id", "i", "", "Process instance to cancel")
	return cmd
}

func (a *app) statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show instance and incident counts per process definition",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.execute(cmd, remediate.Request{Action: remediate.ActionStats})
		},
	}
}
