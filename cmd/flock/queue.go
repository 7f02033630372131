package main

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/spf13/cobra"

	"flock"
)

func queueCmd(opts *inspectOpts) *cobra.Command {
	var tail int

	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Dump the tail of the ordered event log",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := opts.connect()
			if err != nil {
				return err
			}
			defer client.Close()

			kids, err := client.Children(opts.root + "/queue")
			if err != nil {
				return fmt.Errorf("list queue entries: %w", err)
			}
			sort.Strings(kids)
			if len(kids) > tail {
				kids = kids[len(kids)-tail:]
			}
			if len(kids) == 0 {
				fmt.Println(mutedStyle.Render("empty queue"))
				return nil
			}

			rows := make([][]string, 0, len(kids))
			for _, name := range kids {
				data, err := client.Get(opts.root + "/queue/" + name)
				if err != nil {
					continue
				}
				ev, err := flock.DecodeEvent(data)
				if err != nil {
					return fmt.Errorf("decode entry %s: %w", name, err)
				}
				rows = append(rows, []string{
					name,
					ev.Kind.String(),
					string(ev.Sender.Node),
					boolCell(ev.Blocked),
					ev.JoinResult.String(),
					strconv.Itoa(len(ev.Payload)),
				})
			}
			fmt.Println(renderTable([]string{"ENTRY", "KIND", "SENDER", "BLOCKED", "RESULT", "LEN"}, rows))
			return nil
		},
	}
	cmd.Flags().IntVar(&tail, "tail", 20, "Number of trailing entries to show")
	return cmd
}
