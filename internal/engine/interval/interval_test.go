package interval

import (
	"testing"
	"time"

	"nittei/core/domain"
)

func at(h int) time.Time {
	return time.Date(2026, 1, 5, h, 0, 0, 0, time.UTC)
}

func inst(startH, endH int, busy bool) domain.Instance {
	return domain.Instance{TimeSpan: domain.TimeSpan{Start: at(startH), End: at(endH)}, Busy: busy}
}

func TestNewMergesOverlappingSameBusyFlag(t *testing.T) {
	c := New([]domain.Instance{
		inst(9, 11, true),
		inst(10, 12, true),
		inst(14, 15, false),
	})
	got := c.Instances()
	if len(got) != 2 {
		t.Fatalf("expected 2 merged instances, got %d: %+v", len(got), got)
	}
	if !got[0].Start.Equal(at(9)) || !got[0].End.Equal(at(12)) {
		t.Errorf("expected merged busy span 9-12, got %v-%v", got[0].Start, got[0].End)
	}
}

func TestSubtractCarvesFreeTimeAroundBusy(t *testing.T) {
	free := New([]domain.Instance{inst(9, 17, false)})
	busy := New([]domain.Instance{inst(12, 13, true)})
	result := free.Subtract(busy).Instances()

	if len(result) != 2 {
		t.Fatalf("expected 2 remaining free spans, got %d: %+v", len(result), result)
	}
	if !result[0].Start.Equal(at(9)) || !result[0].End.Equal(at(12)) {
		t.Errorf("first span wrong: %+v", result[0])
	}
	if !result[1].Start.Equal(at(13)) || !result[1].End.Equal(at(17)) {
		t.Errorf("second span wrong: %+v", result[1])
	}
}

func TestSubtractNeverFreesBusyTime(t *testing.T) {
	busy := New([]domain.Instance{inst(9, 10, true)})
	other := New([]domain.Instance{inst(9, 10, true)})
	result := busy.Subtract(other).Instances()
	if len(result) != 1 || !result[0].Busy {
		t.Fatalf("busy instance should pass through subtraction untouched, got %+v", result)
	}
}

func TestFreeBusyBusyWinsOnOverlap(t *testing.T) {
	c := New([]domain.Instance{
		inst(9, 17, false),
		inst(12, 13, true),
	})
	result := c.FreeBusy().Instances()

	var busyCount, freeCount int
	for _, r := range result {
		if r.Busy {
			busyCount++
			if !r.Start.Equal(at(12)) || !r.End.Equal(at(13)) {
				t.Errorf("busy span wrong: %+v", r)
			}
		} else {
			freeCount++
		}
	}
	if busyCount != 1 || freeCount != 2 {
		t.Fatalf("expected 1 busy + 2 free spans, got busy=%d free=%d: %+v", busyCount, freeCount, result)
	}
}

func TestRemoveBeforeTruncatesStraddlingInstance(t *testing.T) {
	c := New([]domain.Instance{inst(9, 17, false)})
	result := c.RemoveBefore(at(12)).Instances()
	if len(result) != 1 || !result[0].Start.Equal(at(12)) {
		t.Fatalf("expected truncated start at 12, got %+v", result)
	}
}

func TestRemoveAfterTruncatesStraddlingInstance(t *testing.T) {
	c := New([]domain.Instance{inst(9, 17, false)})
	result := c.RemoveAfter(at(12)).Instances()
	if len(result) != 1 || !result[0].End.Equal(at(12)) {
		t.Fatalf("expected truncated end at 12, got %+v", result)
	}
}

func TestExtendMergesTwoSequences(t *testing.T) {
	a := New([]domain.Instance{inst(9, 10, true)})
	b := New([]domain.Instance{inst(10, 11, true)})
	result := a.Extend(b).Instances()
	if len(result) != 1 {
		t.Fatalf("expected adjacent busy spans to merge, got %+v", result)
	}
}
