package commands

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/use-agent/slotwatch/config"
)

var selectorsCmd = &cobra.Command{
	Use:   "selectors [--file <groups.yaml>]",
	Short: "Validates and lists the slot selector groups in query order.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		path, _ := cmd.Flags().GetString("file")
		groups, err := selectorGroups(path)
		if err != nil {
			return err
		}
		renderGroups(cmd.OutOrStdout(), groups)
		return nil
	},
}

func init() {
	selectorsCmd.Flags().String("file", "", "YAML selector file (default: SLOTWATCH_SELECTORS_FILE or the built-in groups)")
	rootCmd.AddCommand(selectorsCmd)
}

func selectorGroups(path string) ([]config.SlotGroup, error) {
	if path == "" {
		path = config.Load().Extract.GroupsFile
	}
	groups := config.DefaultSlotGroups()
	if path != "" {
		var err error
		if groups, err = config.LoadGroupsFile(path); err != nil {
			return nil, err
		}
	}
	if err := config.ValidateGroups(groups); err != nil {
		return nil, err
	}
	return groups, nil
}

func renderGroups(w io.Writer, groups []config.SlotGroup) {
	t := newTable(w)
	t.AppendHeader(tableRow("#", "Group", "Selector"))
	for i, g := range groups {
		t.AppendRow(tableRow(i+1, g.Name, g.Selector))
	}
	t.Render()
}
