// Package interval implements the CompatibleInstances algebra of spec.md
// §4.3: a sorted, non-overlapping-at-equal-busy-flag sequence of Instances,
// with pure (non-mutating) union/subtract/free-busy operations.
package interval

import (
	"sort"
	"time"

	"nittei/core/domain"
)

// CompatibleInstances is a sequence of domain.Instance kept sorted by start
// time with adjacent/overlapping instances of the same Busy flag merged.
// Instances of different Busy flags are allowed to overlap — a free block
// and a busy block covering the same moments are both meaningful until a
// caller asks for FreeBusy, which resolves the conflict in favor of Busy.
type CompatibleInstances struct {
	instances []domain.Instance
}

// New builds a CompatibleInstances from an arbitrary, possibly unsorted and
// overlapping slice of instances.
func New(instances []domain.Instance) CompatibleInstances {
	c := CompatibleInstances{}
	c.instances = normalize(instances)
	return c
}

// Instances returns the current sorted, merged sequence. The returned slice
// is a copy; mutating it does not affect c.
func (c CompatibleInstances) Instances() []domain.Instance {
	out := make([]domain.Instance, len(c.instances))
	copy(out, c.instances)
	return out
}

// Add merges extra into c, returning a new CompatibleInstances. c is not
// mutated.
func (c CompatibleInstances) Add(extra ...domain.Instance) CompatibleInstances {
	merged := make([]domain.Instance, 0, len(c.instances)+len(extra))
	merged = append(merged, c.instances...)
	merged = append(merged, extra...)
	return New(merged)
}

// Extend is Add, but named for the common case of merging in a whole other
// CompatibleInstances (e.g. one per user, before a multi-user booking
// policy combines them).
func (c CompatibleInstances) Extend(other CompatibleInstances) CompatibleInstances {
	return c.Add(other.instances...)
}

// RemoveBefore drops every instance that ends at or before cutoff,
// truncating any instance that straddles cutoff to start at cutoff.
func (c CompatibleInstances) RemoveBefore(cutoff time.Time) CompatibleInstances {
	out := make([]domain.Instance, 0, len(c.instances))
	for _, i := range c.instances {
		if !i.End.After(cutoff) {
			continue
		}
		if i.Start.Before(cutoff) {
			i.Start = cutoff
		}
		out = append(out, i)
	}
	return CompatibleInstances{instances: out}
}

// RemoveAfter drops every instance that starts at or after cutoff,
// truncating any instance that straddles cutoff to end at cutoff.
func (c CompatibleInstances) RemoveAfter(cutoff time.Time) CompatibleInstances {
	out := make([]domain.Instance, 0, len(c.instances))
	for _, i := range c.instances {
		if !i.Start.Before(cutoff) {
			continue
		}
		if i.End.After(cutoff) {
			i.End = cutoff
		}
		out = append(out, i)
	}
	return CompatibleInstances{instances: out}
}

// Subtract removes every moment covered by any busy instance in other from
// every free instance in c, regardless of other's own free/busy flags on
// the subtracted side (other is treated purely as a set of blocked
// timespans). Busy instances in c pass through unchanged: subtracting never
// frees time that was already busy.
func (c CompatibleInstances) Subtract(other CompatibleInstances) CompatibleInstances {
	blocks := other.busySpans()
	out := make([]domain.Instance, 0, len(c.instances))
	for _, inst := range c.instances {
		if inst.Busy {
			out = append(out, inst)
			continue
		}
		out = append(out, subtractBlocks(inst, blocks)...)
	}
	return New(out)
}

// FreeBusy collapses c to its resolved view: wherever a free and a busy
// instance overlap, busy wins. The result contains only the merged busy
// spans and whatever free time remains once they are carved out.
func (c CompatibleInstances) FreeBusy() CompatibleInstances {
	busy := New(c.busyOnly())
	free := New(c.freeOnly()).Subtract(busy)
	return New(append(busy.instances, free.instances...))
}

// BusyOnly resolves c the same way FreeBusy does (overlapping free/busy
// instances collapsed in favor of busy), then returns only the merged busy
// instances — the "busy" view spec.md §4.5 step 5 returns, discarding
// whatever free time remains.
func (c CompatibleInstances) BusyOnly() []domain.Instance {
	return c.FreeBusy().busyOnly()
}

func (c CompatibleInstances) busyOnly() []domain.Instance {
	out := make([]domain.Instance, 0, len(c.instances))
	for _, i := range c.instances {
		if i.Busy {
			out = append(out, i)
		}
	}
	return out
}

func (c CompatibleInstances) freeOnly() []domain.Instance {
	out := make([]domain.Instance, 0, len(c.instances))
	for _, i := range c.instances {
		if !i.Busy {
			out = append(out, i)
		}
	}
	return out
}

func (c CompatibleInstances) busySpans() []domain.TimeSpan {
	out := make([]domain.TimeSpan, 0, len(c.instances))
	for _, i := range c.instances {
		if i.Busy {
			out = append(out, i.TimeSpan)
		}
	}
	return out
}

func subtractBlocks(inst domain.Instance, blocks []domain.TimeSpan) []domain.Instance {
	remaining := []domain.TimeSpan{inst.TimeSpan}
	for _, b := range blocks {
		var next []domain.TimeSpan
		for _, r := range remaining {
			next = append(next, subtractOne(r, b)...)
		}
		remaining = next
	}
	out := make([]domain.Instance, 0, len(remaining))
	for _, r := range remaining {
		if r.Start.Before(r.End) {
			out = append(out, domain.Instance{TimeSpan: r, Busy: inst.Busy})
		}
	}
	return out
}

func subtractOne(r, b domain.TimeSpan) []domain.TimeSpan {
	if !r.Overlaps(b) {
		return []domain.TimeSpan{r}
	}
	var out []domain.TimeSpan
	if r.Start.Before(b.Start) {
		out = append(out, domain.TimeSpan{Start: r.Start, End: b.Start})
	}
	if b.End.Before(r.End) {
		out = append(out, domain.TimeSpan{Start: b.End, End: r.End})
	}
	return out
}

// normalize sorts instances and merges adjacent/overlapping runs that share
// a Busy flag, per spec.md §4.3's "non-overlapping-at-equal-busy-flag"
// invariant.
func normalize(instances []domain.Instance) []domain.Instance {
	if len(instances) == 0 {
		return nil
	}
	sorted := make([]domain.Instance, len(instances))
	copy(sorted, instances)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Busy != sorted[j].Busy {
			return sorted[i].Busy && !sorted[j].Busy
		}
		return sorted[i].Before(sorted[j])
	})

	var merged []domain.Instance
	i := 0
	for i < len(sorted) {
		group := sorted[i].Busy
		cur := sorted[i]
		j := i + 1
		for j < len(sorted) && sorted[j].Busy == group && !sorted[j].Start.After(cur.End) {
			if sorted[j].End.After(cur.End) {
				cur.End = sorted[j].End
			}
			j++
		}
		merged = append(merged, cur)
		i = j
	}

	sort.Slice(merged, func(i, j int) bool { return merged[i].Before(merged[j]) })
	return merged
}
