package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func statusCmd(opts *inspectOpts) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Cluster status summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := opts.connect()
			if err != nil {
				return err
			}
			defer client.Close()

			members, err := loadMembers(client, opts.root)
			if err != nil {
				return err
			}
			entries, err := client.Children(opts.root + "/queue")
			if err != nil {
				return fmt.Errorf("list queue entries: %w", err)
			}

			master := mutedStyle.Render("none")
			for _, m := range members {
				if m.Joined {
					master = accentStyle.Render(string(m.Node))
					break
				}
			}

			locked, err := client.Exists(opts.root + "/lock")
			if err != nil {
				return fmt.Errorf("check join lock: %w", err)
			}

			fmt.Printf("members:     %d\n", len(members))
			fmt.Printf("master:      %s\n", master)
			fmt.Printf("log entries: %d\n", len(entries))
			fmt.Printf("join lock:   %s\n", boolCell(locked))
			return nil
		},
	}
}
