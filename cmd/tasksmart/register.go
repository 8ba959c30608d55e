package main

import (
	"fmt"
	"sync/atomic"

	"github.com/spf13/cobra"

	"github.com/Utre17/tasksmart/internal/migrate"
)

// migrationInFlight is the single-flight guard the coordinator requires
// from its caller. The coordinator itself performs no locking.
var migrationInFlight atomic.Bool

func newRegisterCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "register <name>",
		Short: "Create an account and migrate guest tasks into it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := openDevice(cmd)
			if err != nil {
				return err
			}
			defer d.close()

			if !migrationInFlight.CompareAndSwap(false, true) {
				return fmt.Errorf("a migration is already running")
			}
			defer migrationInFlight.Store(false)

			state := d.sessions.State()
			account := state.Account
			if !state.Authenticated {
				result, err := d.remote.Register(cmd.Context(), args[0])
				if err != nil {
					return fmt.Errorf("register: %w", err)
				}
				if err := d.sessions.SignIn(cmd.Context(), result.Account, result.Token); err != nil {
					return err
				}
				account = result.Account
			}

			coordinator := migrate.New(d.guest, d.remote, d.sessions, d.logger)
			report, err := coordinator.Run(cmd.Context())
			if err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			d.manager.InvalidateCache()

			fmt.Printf("registered as %s\n", account)
			if report.Attempted == 0 {
				fmt.Println("no guest tasks to transfer")
				return nil
			}
			fmt.Printf("transferred %d of %d task(s)\n", report.Succeeded, report.Attempted)
			for _, failure := range report.Failures {
				fmt.Printf("  failed: %s (%s)\n", failure.Title, failure.Reason)
			}
			if !report.Complete() {
				fmt.Println("guest tasks kept on device; run register again to retry")
			}
			return nil
		},
	}
}
