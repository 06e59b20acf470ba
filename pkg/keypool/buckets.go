package keypool

import "sort"

// bucket groups records whose dynamic weights quantize to the same integer
// priority. Buckets are visited in descending priority order; the cursor
// rotates within a bucket so repeated selections fan out across all members
// before any one member repeats.
type bucket struct {
	priority int
	members  []*Record
	cursor   int
}

// rebuildBuckets recomputes the bucket list from record order. It only runs
// when a record's quantized priority has changed since the last build, so
// steady-state selection is O(1) amortized. Lock held.
func (p *Pool) rebuildBuckets() {
	if !p.bucketsDirty {
		return
	}

	byPriority := make(map[int]*bucket)
	var order []int
	for _, rec := range p.records {
		pr := rec.priority()
		b, ok := byPriority[pr]
		if !ok {
			b = &bucket{priority: pr}
			byPriority[pr] = b
			order = append(order, pr)
		}
		b.members = append(b.members, rec)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(order)))

	p.buckets = p.buckets[:0]
	for _, pr := range order {
		b := byPriority[pr]
		// Start the cursor just past the most recently used member so a
		// rebuild does not restart the fan-out at the head of the bucket.
		b.cursor = cursorAfterMostUsed(b.members)
		p.buckets = append(p.buckets, b)
	}
	p.bucketsDirty = false
}

func cursorAfterMostUsed(members []*Record) int {
	best := -1
	var bestAcc uint64
	for i, m := range members {
		if m.accumulator > 0 && (best == -1 || m.accumulator > bestAcc) {
			best = i
			bestAcc = m.accumulator
		}
	}
	if best == -1 {
		return 0
	}
	return (best + 1) % len(members)
}

// pick selects a record from candidates using smooth weighted rotation with
// anti-repeat. A bucket whose only candidate is the last-selected credential
// is skipped in favor of lower-priority buckets; the repeat is allowed only
// when that record is the sole candidate overall. Lock held.
func (p *Pool) pick(candidates []*Record) *Record {
	if len(candidates) == 0 {
		return nil
	}
	if len(candidates) == 1 {
		return candidates[0]
	}

	p.rebuildBuckets()

	inSet := make(map[*Record]bool, len(candidates))
	for _, rec := range candidates {
		inSet[rec] = true
	}

	var fallback *bucket
	for _, b := range p.buckets {
		n := 0
		onlyLast := true
		for _, m := range b.members {
			if !inSet[m] {
				continue
			}
			n++
			if m.Credential != p.lastSelected {
				onlyLast = false
			}
		}
		if n == 0 {
			continue
		}
		if onlyLast {
			// Defer this bucket: its only candidate would be an immediate
			// repeat. Use it only if nothing else is available.
			if fallback == nil {
				fallback = b
			}
			continue
		}

		for i := 0; i < len(b.members); i++ {
			idx := (b.cursor + i) % len(b.members)
			m := b.members[idx]
			if !inSet[m] || m.Credential == p.lastSelected {
				continue
			}
			b.cursor = (idx + 1) % len(b.members)
			return m
		}
	}

	if fallback != nil {
		for i := 0; i < len(fallback.members); i++ {
			idx := (fallback.cursor + i) % len(fallback.members)
			m := fallback.members[idx]
			if !inSet[m] {
				continue
			}
			fallback.cursor = (idx + 1) % len(fallback.members)
			return m
		}
	}
	return nil
}
