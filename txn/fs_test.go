// Copyright 2025 dacapoday
// SPDX-License-Identifier: Apache-2.0

package txn

import (
	"bytes"
	"sync"
	"testing"

	"github.com/coldtree/corefs/bkey"
	"github.com/coldtree/corefs/btreeid"
)

func openTestFS(t *testing.T) *Filesystem {
	t.Helper()
	fs, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { fs.Close() })
	return fs
}

func TestOpenCloseRoundTripsSuperblockIdentity(t *testing.T) {
	dir := t.TempDir()
	fs, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	wantUUID := fs.Superblock.FilesystemUUID
	if err := fs.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := Open(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	if reopened.Superblock.FilesystemUUID != wantUUID {
		t.Errorf("filesystem uuid changed across remount: got %s, want %s",
			reopened.Superblock.FilesystemUUID, wantUUID)
	}
}

func TestUpdateCommitLookupRoundTrip(t *testing.T) {
	fs := openTestFS(t)

	err := Run(fs, "test_create_inode", 0, func(tx *Transaction) error {
		key := bkey.Key{
			Pos:    bkey.Position{Inode: 42},
			Header: bkey.Header{Type: bkey.TypeInodeV3},
			Payload: bkey.InodeV3{Mode: 0o644, Size: 0}.Encode(),
		}
		if err := tx.Update(btreeid.Inodes, key); err != nil {
			return err
		}
		_, err := tx.Commit(true)
		return err
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	err = RunReadOnly(fs, "test_lookup_inode", 0, func(tx *Transaction) error {
		k, ok, err := tx.Lookup(btreeid.Inodes, 42, 0)
		if err != nil {
			return err
		}
		if !ok {
			t.Fatal("lookup: not found")
		}
		inode, ok := bkey.DecodeInodeV3(k.Payload)
		if !ok {
			t.Fatal("decode inode_v3: failed")
		}
		if inode.Mode != 0o644 {
			t.Errorf("mode = %o, want %o", inode.Mode, 0o644)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
}

func TestDeleteRemovesOwnLineRecord(t *testing.T) {
	fs := openTestFS(t)

	commit := func(label string, fn func(tx *Transaction) error) {
		t.Helper()
		err := Run(fs, label, 0, func(tx *Transaction) error {
			if err := fn(tx); err != nil {
				return err
			}
			_, err := tx.Commit(true)
			return err
		})
		if err != nil {
			t.Fatalf("%s: %v", label, err)
		}
	}

	commit("test_set_xattr", func(tx *Transaction) error {
		return tx.Update(btreeid.Xattrs, bkey.Key{
			Pos:     bkey.Position{Inode: 7, Offset: 1},
			Header:  bkey.Header{Type: bkey.TypeXattr},
			Payload: bkey.Xattr{Name: "user.a", Value: []byte("v")}.Encode(),
		})
	})
	commit("test_delete_xattr", func(tx *Transaction) error {
		return tx.Delete(btreeid.Xattrs, bkey.Position{Inode: 7, Offset: 1})
	})

	// The record lived at exactly the line it was deleted on, so it is
	// physically gone, not merely hidden behind a stored whiteout.
	err := RunReadOnly(fs, "test_check_gone", 0, func(tx *Transaction) error {
		_, ok, err := tx.Lookup(btreeid.Xattrs, 7, 1)
		if err != nil {
			return err
		}
		if ok {
			t.Error("lookup after delete: expected not-found")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("check: %v", err)
	}
}

func TestDeleteOfInheritedRecordLeavesWhiteout(t *testing.T) {
	fs := openTestFS(t)

	err := Run(fs, "test_seed_parent_line", 0, func(tx *Transaction) error {
		if err := tx.Update(btreeid.Xattrs, bkey.Key{
			Pos:     bkey.Position{Inode: 8, Offset: 2},
			Header:  bkey.Header{Type: bkey.TypeXattr},
			Payload: bkey.Xattr{Name: "user.b", Value: []byte("w")}.Encode(),
		}); err != nil {
			return err
		}
		_, err := tx.Commit(true)
		return err
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	var childID uint32
	err = Run(fs, "test_fork_child", 0, func(tx *Transaction) error {
		id, err := tx.CreateSnapshot(0)
		if err != nil {
			return err
		}
		childID = id
		_, err = tx.Commit(true)
		return err
	})
	if err != nil {
		t.Fatalf("fork: %v", err)
	}

	// The child has no record of its own at this slot; deleting there must
	// store a whiteout so the parent's copy survives for its own readers.
	err = Run(fs, "test_delete_in_child", childID, func(tx *Transaction) error {
		if err := tx.Delete(btreeid.Xattrs, bkey.Position{Inode: 8, Offset: 2, Snapshot: childID}); err != nil {
			return err
		}
		_, err := tx.Commit(true)
		return err
	})
	if err != nil {
		t.Fatalf("delete in child: %v", err)
	}

	err = RunReadOnly(fs, "test_check_child_hidden", childID, func(tx *Transaction) error {
		_, ok, err := tx.Lookup(btreeid.Xattrs, 8, 2)
		if err != nil {
			return err
		}
		if ok {
			t.Error("child line: whiteout should hide the inherited value")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("check child: %v", err)
	}

	err = RunReadOnly(fs, "test_check_parent_survives", 0, func(tx *Transaction) error {
		k, ok, err := tx.Lookup(btreeid.Xattrs, 8, 2)
		if err != nil {
			return err
		}
		if !ok || k.IsTombstone() {
			t.Error("parent line: value should be untouched by the child's whiteout")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("check parent: %v", err)
	}
}

func TestIteratorWalksInsertedKeysInOrder(t *testing.T) {
	fs := openTestFS(t)

	offsets := []uint64{30, 10, 20}
	err := Run(fs, "test_seed_dirents", 0, func(tx *Transaction) error {
		for _, off := range offsets {
			if err := tx.Update(btreeid.Dirents, bkey.Key{
				Pos:     bkey.Position{Inode: 1, Offset: off},
				Header:  bkey.Header{Type: bkey.TypeDirent},
				Payload: bkey.Dirent{ChildInode: off, Name: "n"}.Encode(),
			}); err != nil {
				return err
			}
		}
		_, err := tx.Commit(true)
		return err
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	var got []uint64
	err = RunReadOnly(fs, "test_walk_dirents", 0, func(tx *Transaction) error {
		it, err := tx.IterInit(btreeid.Dirents, WithFilterSnapshots())
		if err != nil {
			return err
		}
		defer it.Close()
		for ok := it.SeekFirst(); ok; ok = it.Next() {
			got = append(got, it.Key().Pos.Offset)
		}
		return it.Err()
	})
	if err != nil {
		t.Fatalf("walk: %v", err)
	}

	want := []uint64{10, 20, 30}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("position %d: got %d, want %d", i, got[i], want[i])
		}
	}
}

func TestSnapshotIsolation(t *testing.T) {
	fs := openTestFS(t)

	err := Run(fs, "test_seed_root", 0, func(tx *Transaction) error {
		if err := tx.Update(btreeid.Dirents, bkey.Key{
			Pos:     bkey.Position{Inode: 5, Offset: 1},
			Header:  bkey.Header{Type: bkey.TypeDirent},
			Payload: bkey.Dirent{ChildInode: 100, Name: "k"}.Encode(),
		}); err != nil {
			return err
		}
		_, err := tx.Commit(true)
		return err
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	var childID uint32
	err = Run(fs, "test_create_snapshot", 0, func(tx *Transaction) error {
		id, err := tx.CreateSnapshot(0)
		if err != nil {
			return err
		}
		childID = id
		_, err = tx.Commit(true)
		return err
	})
	if err != nil {
		t.Fatalf("create snapshot: %v", err)
	}

	err = Run(fs, "test_overwrite_in_child", childID, func(tx *Transaction) error {
		if err := tx.Update(btreeid.Dirents, bkey.Key{
			Pos:     bkey.Position{Inode: 5, Offset: 1, Snapshot: childID},
			Header:  bkey.Header{Type: bkey.TypeDirent},
			Payload: bkey.Dirent{ChildInode: 200, Name: "k"}.Encode(),
		}); err != nil {
			return err
		}
		_, err := tx.Commit(true)
		return err
	})
	if err != nil {
		t.Fatalf("overwrite in child: %v", err)
	}

	err = RunReadOnly(fs, "test_check_root_unaffected", 0, func(tx *Transaction) error {
		k, ok, err := tx.Lookup(btreeid.Dirents, 5, 1)
		if err != nil {
			return err
		}
		if !ok {
			t.Fatal("root line: not found")
		}
		d, ok := bkey.DecodeDirent(k.Payload)
		if !ok || d.ChildInode != 100 {
			t.Errorf("root line: child = %+v, want ChildInode=100", d)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("check root: %v", err)
	}

	err = RunReadOnly(fs, "test_check_child_overwritten", childID, func(tx *Transaction) error {
		k, ok, err := tx.Lookup(btreeid.Dirents, 5, 1)
		if err != nil {
			return err
		}
		if !ok {
			t.Fatal("child line: not found")
		}
		d, ok := bkey.DecodeDirent(k.Payload)
		if !ok || d.ChildInode != 200 {
			t.Errorf("child line: child = %+v, want ChildInode=200", d)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("check child: %v", err)
	}

	// Deleting the child's own overwrite reverts the slot to the value
	// inherited from the parent line, since the overwrite was the only
	// record stored at the child's own snapshot.
	err = Run(fs, "test_delete_overwrite", childID, func(tx *Transaction) error {
		if err := tx.Delete(btreeid.Dirents, bkey.Position{Inode: 5, Offset: 1, Snapshot: childID}); err != nil {
			return err
		}
		_, err := tx.Commit(true)
		return err
	})
	if err != nil {
		t.Fatalf("delete overwrite: %v", err)
	}

	err = RunReadOnly(fs, "test_check_child_reverted", childID, func(tx *Transaction) error {
		k, ok, err := tx.Lookup(btreeid.Dirents, 5, 1)
		if err != nil {
			return err
		}
		if !ok {
			t.Fatal("child line after revert: not found")
		}
		d, ok := bkey.DecodeDirent(k.Payload)
		if !ok || d.ChildInode != 100 {
			t.Errorf("child line after revert: child = %+v, want the inherited ChildInode=100", d)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("check reverted: %v", err)
	}
}

func TestWriteExtentReadExtentRoundTrip(t *testing.T) {
	fs := openTestFS(t)

	payload := bytes.Repeat([]byte("corefs-extent-payload "), 200)
	pos := bkey.Position{Inode: 9, Offset: uint64(len(payload))}

	var ext bkey.Extent
	err := Run(fs, "test_write_extent", 0, func(tx *Transaction) error {
		e, err := tx.WriteExtent(pos, payload)
		if err != nil {
			return err
		}
		ext = e
		key := bkey.Key{
			Pos:     pos,
			Header:  bkey.Header{Type: bkey.TypeExtent, Size: uint32(len(payload))},
			Payload: ext.Encode(),
		}
		if err := tx.Update(btreeid.Extents, key); err != nil {
			return err
		}
		_, err = tx.Commit(true)
		return err
	})
	if err != nil {
		t.Fatalf("write extent: %v", err)
	}

	err = RunReadOnly(fs, "test_read_extent", 0, func(tx *Transaction) error {
		k, ok, err := tx.Lookup(btreeid.Extents, pos.Inode, pos.Offset)
		if err != nil {
			return err
		}
		if !ok {
			t.Fatal("extent key: not found")
		}
		decoded, ok := bkey.DecodeExtent(k.Payload)
		if !ok {
			t.Fatal("decode extent: failed")
		}
		got, err := tx.ReadExtent(pos, decoded)
		if err != nil {
			return err
		}
		if !bytes.Equal(got, payload) {
			t.Errorf("read extent: got %d bytes, want %d bytes (content mismatch)", len(got), len(payload))
		}
		return nil
	})
	if err != nil {
		t.Fatalf("read extent: %v", err)
	}
}

func TestRenameIsAtomicWithinOneCommit(t *testing.T) {
	fs := openTestFS(t)

	const parent = 11
	hashA, hashB := uint64(1001), uint64(2002)

	err := Run(fs, "test_seed_dirent_a", 0, func(tx *Transaction) error {
		if err := tx.Update(btreeid.Dirents, bkey.Key{
			Pos:     bkey.Position{Inode: parent, Offset: hashA},
			Header:  bkey.Header{Type: bkey.TypeDirent},
			Payload: bkey.Dirent{ChildInode: 42, Name: "a"}.Encode(),
		}); err != nil {
			return err
		}
		_, err := tx.Commit(true)
		return err
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	// Stage the unlink of "a" and the link of "b" on one transaction so a
	// reader can never observe the file under zero names or two.
	err = Run(fs, "test_rename", 0, func(tx *Transaction) error {
		if err := tx.Delete(btreeid.Dirents, bkey.Position{Inode: parent, Offset: hashA}); err != nil {
			return err
		}
		if err := tx.Update(btreeid.Dirents, bkey.Key{
			Pos:     bkey.Position{Inode: parent, Offset: hashB},
			Header:  bkey.Header{Type: bkey.TypeDirent},
			Payload: bkey.Dirent{ChildInode: 42, Name: "b"}.Encode(),
		}); err != nil {
			return err
		}
		_, err := tx.Commit(true)
		return err
	})
	if err != nil {
		t.Fatalf("rename: %v", err)
	}

	err = RunReadOnly(fs, "test_check_rename", 0, func(tx *Transaction) error {
		if _, ok, err := tx.Lookup(btreeid.Dirents, parent, hashA); err != nil {
			return err
		} else if ok {
			t.Error(`"a" still resolves after the rename`)
		}
		k, ok, err := tx.Lookup(btreeid.Dirents, parent, hashB)
		if err != nil {
			return err
		}
		if !ok {
			t.Fatal(`"b" not found after the rename`)
		}
		d, ok := bkey.DecodeDirent(k.Payload)
		if !ok || d.ChildInode != 42 {
			t.Errorf(`"b" = %+v, want ChildInode=42`, d)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("check: %v", err)
	}
}

func TestConcurrentCommitsAllLandWithoutDuplicates(t *testing.T) {
	fs := openTestFS(t)

	const (
		writers       = 2
		keysPerWriter = 100
	)

	var wg sync.WaitGroup
	errs := make([]error, writers)
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < keysPerWriter; i++ {
				off := uint64(w*keysPerWriter + i)
				err := Run(fs, "test_contend", 0, func(tx *Transaction) error {
					if err := tx.Update(btreeid.Dirents, bkey.Key{
						Pos:     bkey.Position{Inode: 77, Offset: off},
						Header:  bkey.Header{Type: bkey.TypeDirent},
						Payload: bkey.Dirent{ChildInode: off, Name: "c"}.Encode(),
					}); err != nil {
						return err
					}
					_, err := tx.Commit(true)
					return err
				})
				if err != nil {
					errs[w] = err
					return
				}
			}
		}(w)
	}
	wg.Wait()
	for w, err := range errs {
		if err != nil {
			t.Fatalf("writer %d: %v", w, err)
		}
	}

	// Every commit eventually succeeded; the tree must now hold exactly
	// one record per staged key, in order, with no duplicates.
	err := RunReadOnly(fs, "test_check_contend", 0, func(tx *Transaction) error {
		it, err := tx.IterInit(btreeid.Dirents)
		if err != nil {
			return err
		}
		defer it.Close()

		var want uint64
		for ok := it.Seek(77, 0); ok && it.Key().Pos.Inode == 77; ok = it.Next() {
			if got := it.Key().Pos.Offset; got != want {
				t.Fatalf("offset %d at slot %d: duplicate or gap", got, want)
			}
			want++
		}
		if err := it.Err(); err != nil {
			return err
		}
		if want != writers*keysPerWriter {
			t.Errorf("found %d keys, want %d", want, writers*keysPerWriter)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("check: %v", err)
	}
}

func TestCommittedKeysSurviveRemount(t *testing.T) {
	dir := t.TempDir()
	fs, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	err = Run(fs, "test_persist_inode", 0, func(tx *Transaction) error {
		if err := tx.Update(btreeid.Inodes, bkey.Key{
			Pos:     bkey.Position{Inode: 300},
			Header:  bkey.Header{Type: bkey.TypeInodeV3},
			Payload: bkey.InodeV3{Mode: 0o755, Size: 123}.Encode(),
		}); err != nil {
			return err
		}
		_, err := tx.Commit(true)
		return err
	})
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if err := fs.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := Open(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	err = RunReadOnly(reopened, "test_check_persisted", 0, func(tx *Transaction) error {
		k, ok, err := tx.Lookup(btreeid.Inodes, 300, 0)
		if err != nil {
			return err
		}
		if !ok {
			t.Fatal("inode lost across remount")
		}
		inode, ok := bkey.DecodeInodeV3(k.Payload)
		if !ok || inode.Size != 123 {
			t.Errorf("inode = %+v, want Size=123", inode)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("check: %v", err)
	}
}
