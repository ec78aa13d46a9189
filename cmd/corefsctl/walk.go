package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/coldtree/corefs/btreeid"
	"github.com/coldtree/corefs/txn"
)

func newWalkCmd() *cobra.Command {
	var snapshot uint32
	cmd := &cobra.Command{
		Use:   "walk <btree> <dir>",
		Short: "dump every key visible in one tree via a read-only transaction",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseBtreeID(args[0])
			if err != nil {
				return err
			}
			return runWalk(args[1], id, snapshot)
		},
	}
	cmd.Flags().Uint32Var(&snapshot, "snapshot", 0, "snapshot id to resolve reads against (0 = root line)")
	return cmd
}

func parseBtreeID(name string) (btreeid.ID, error) {
	for _, id := range btreeid.All() {
		if id.String() == name {
			return id, nil
		}
	}
	return 0, fmt.Errorf("unknown btree %q", name)
}

func runWalk(dir string, id btreeid.ID, snap uint32) error {
	fs, err := txn.Open(dir)
	if err != nil {
		return fmt.Errorf("open %s: %w", dir, err)
	}
	defer fs.Close()

	return txn.RunReadOnly(fs, "corefsctl_walk", snap, func(tx *txn.Transaction) error {
		it, err := tx.IterInit(id, txn.WithFilterSnapshots())
		if err != nil {
			return err
		}
		defer it.Close()

		n := 0
		for ok := it.SeekFirst(); ok; ok = it.Next() {
			k := it.Key()
			fmt.Printf("inode=%d offset=%d snapshot=%d type=%s size=%d version=%d payload=%d bytes\n",
				k.Pos.Inode, k.Pos.Offset, k.Pos.Snapshot,
				k.Header.Type, k.Header.Size, k.Header.Version, len(k.Payload))
			n++
		}
		if err := it.Err(); err != nil {
			return err
		}
		fmt.Printf("%d keys\n", n)
		return nil
	})
}
