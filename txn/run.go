// Copyright 2025 dacapoday
// SPDX-License-Identifier: Apache-2.0

package txn

import (
	"github.com/coldtree/corefs"
)

// fairnessThreshold is the number of consecutive restarts at the same call
// site (as named by label) after which Run logs a warning — a transaction
// that restarts this many times in a row against the same site is very
// likely starving against a long-held write lock rather than losing a fair
// race, and is worth surfacing to an operator even though Run keeps
// retrying regardless.
const fairnessThreshold = 8

// Run is the single retry loop every transactional operation goes through:
// it opens a Transaction, calls fn, and on a transaction_restart error
// (corefs.IsRestart) discards all of fn's pending work and retries from
// transaction_begin — the locking protocol never blocks on a contended
// node, it restarts the whole operation. fn must be idempotent up to
// the point it calls Commit — Run guarantees it never sees a partially
// committed Transaction on retry, only a freshly reset one.
//
// label identifies the call site for the restart-fairness counters kept on
// fs; pass a short constant string such as "create_file" or "write_extent".
func Run(fs *Filesystem, label string, targetSnapshot uint32, fn func(*Transaction) error) error {
	tx := Begin(fs, targetSnapshot)
	defer tx.Put()

	site := restartSite{kind: label}
	for {
		err := fn(tx)
		if err == nil {
			fs.restartMu.Lock()
			delete(fs.restarts, site)
			fs.restartMu.Unlock()
			return nil
		}

		sub, isRestart := corefs.IsRestart(err)
		if !isRestart {
			return err
		}
		fs.Metrics.RecordRestart(sub.SubKind.String())

		fs.restartMu.Lock()
		fs.restarts[site]++
		count := fs.restarts[site]
		fs.restartMu.Unlock()

		if count > 0 && count%fairnessThreshold == 0 {
			fs.Log.Warn().
				Str("site", label).
				Str("sub_kind", sub.SubKind.String()).
				Int("consecutive_restarts", count).
				Msg("transaction restarting repeatedly")
		}

		tx.begin()
	}
}

// RunReadOnly is Run under a name that documents intent at the call site:
// fn is expected to issue no Update calls. There is no separate code path
// to exercise — the Read Committed view Begin gives every Transaction
// already serves a read-only caller correctly — so this is a thin alias
// kept for callers that want that distinction visible in their own code.
func RunReadOnly(fs *Filesystem, label string, targetSnapshot uint32, fn func(*Transaction) error) error {
	return Run(fs, label, targetSnapshot, fn)
}
