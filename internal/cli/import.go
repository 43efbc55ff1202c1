package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dukerupert/chorewheel/internal/importer"
	"github.com/dukerupert/chorewheel/internal/store"
)

func NewImportCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file.yaml>",
		Short: "Load family members and recurring chores from YAML",
		Long: `Import family members and recurring chore definitions.

Members are matched by name and created when missing. Chores whose title
already exists are left alone, so the same file can be imported again.

Example file:
  members:
    - {name: Mom, role: parent}
    - {name: Sam}
  chores:
    - title: Dishes
      points: 5
      rule: FREQ=DAILY
      start: 2024-01-01
      mode: round_robin
      rotation: [Sam, Mom]`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := importer.LoadFile(args[0])
			if err != nil {
				return err
			}

			db, err := rootOpts.openDB()
			if err != nil {
				return err
			}
			defer db.Close()

			im := importer.New(store.NewFamilyMemberStore(db), store.NewChoreStore(db), rootOpts.Logger.With("component", "import"))
			res, err := im.Import(cmd.Context(), f)
			fmt.Fprintf(cmd.OutOrStdout(), "members created: %d\nchores created: %d\nchores skipped: %d\n",
				res.MembersCreated, res.ChoresCreated, res.ChoresSkipped)
			return err
		},
	}
}
