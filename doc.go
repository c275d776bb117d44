// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

/*
	Package disksort implements external sorting and grouping of record
	streams that are too large to fit in memory.

	A Sorter accumulates records in an in-memory heap. When the number
	of buffered records reaches a threshold, the heap is drained in
	sorted order to a run file in the session's working directory. The
	threshold is not fixed: the Sorter samples the serialized sizes of
	the records it receives and recomputes the threshold so that the
	estimated memory footprint of the heap tracks a byte budget.

	Once all records have been appended, the caller retrieves them with
	NextGroup. The Sorter flushes its remaining records to a last run,
	and lazily merges all runs, yielding maximal runs of records that
	share a grouping key (the first field of each record). Groups are
	returned either in memory or, for very large groups, as ephemeral
	on-disk lists (package disklist). Run files are removed as soon as
	they have been read to completion.

	A typical session:

		s, err := disksort.New(disksort.Options{WorkingDir: dir})
		if err != nil {
			return err
		}
		for _, r := range records {
			if err := s.Append(ctx, r); err != nil {
				return err
			}
		}
		for {
			g, err := s.NextGroup(ctx, false)
			if err == disksort.EOF {
				break
			}
			if err != nil {
				return err
			}
			// process g
		}

	Sessions are not safe for concurrent use. Concurrent sessions may
	share a working directory: every file name contains a random UUID.
	Sessions that are abandoned before they are drained should be
	disposed of with Sorter.Discard; otherwise their run files remain.
*/
package disksort
