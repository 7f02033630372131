package main

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/spf13/cobra"

	"flock"
	"flock/internal/zoo"
)

func membersCmd(opts *inspectOpts) *cobra.Command {
	return &cobra.Command{
		Use:   "members",
		Short: "List member records, sorted by seq",
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
			if len(members) == 0 {
				fmt.Println(mutedStyle.Render("no members"))
				return nil
			}

			rows := make([][]string, 0, len(members))
			for _, m := range members {
				rows = append(rows, []string{
					strconv.Itoa(int(m.Seq)),
					string(m.Node),
					m.Addr,
					boolCell(m.Joined),
					fmt.Sprintf("0x%x", m.ClientID),
				})
			}
			fmt.Println(renderTable([]string{"SEQ", "NODE", "ADDR", "JOINED", "SESSION"}, rows))
			return nil
		},
	}
}

func loadMembers(client *zoo.Client, root string) ([]flock.Member, error) {
	kids, err := client.Children(root + "/member")
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	var members []flock.Member
	for _, name := range kids {
		data, err := client.Get(root + "/member/" + name)
		if err != nil {
			continue
		}
		m, err := flock.DecodeMember(data)
		if err != nil {
			return nil, fmt.Errorf("decode member %s: %w", name, err)
		}
		members = append(members, m)
	}
	sort.Slice(members, func(i, j int) bool { return members[i].Seq < members[j].Seq })
	return members, nil
}
