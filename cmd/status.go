package cmd

import (
	"github.com/habedi/reauth/auth"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

// statusCmd shows which token slots are filled.
func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the stored tokens and login state",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, cleanup, err := setupApp(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			table := tablewriter.NewWriter(cmd.OutOrStdout())
			table.SetHeader([]string{"Slot", "Store", "Present", "Token"})
			table.SetAlignment(tablewriter.ALIGN_LEFT)
			table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
			table.SetAutoWrapText(false)
			table.SetRowLine(false)

			access, ok := a.svc.AccessToken()
			table.Append(slotRow(auth.AccessSlot, a.cfg.AccessStore, access, ok))
			if a.svc.SupportsRefresh() {
				refresh, ok := a.svc.RefreshToken()
				table.Append(slotRow(auth.RefreshSlot, a.cfg.RefreshStore, refresh, ok))
			} else {
				table.Append([]string{auth.RefreshSlot, "none", "-", "-"})
			}
			table.Render()

			if a.svc.IsLoggedIn() {
				cmd.Println("Logged in: yes")
			} else {
				cmd.Println("Logged in: no")
			}
			return nil
		},
	}
}

func slotRow(name, store, token string, ok bool) []string {
	if !ok {
		return []string{name, store, "no", "-"}
	}
	return []string{name, store, "yes", mask(token)}
}
