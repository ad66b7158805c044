package campaign

import "testing"

func TestBudgetOr(t *testing.T) {
	if got := UnknownBudget().Or(7); got != 7 {
		t.Errorf("unknown budget: expected default 7, got %f", got)
	}
	if got := KnownBudget(0).Or(7); got != 0 {
		t.Errorf("known zero budget: expected 0, got %f", got)
	}
}

func TestDurationAndDaysLeft(t *testing.T) {
	c := Campaign{StartDay: 3, EndDay: 5}
	if c.Duration() != 3 {
		t.Fatalf("expected inclusive duration 3, got %d", c.Duration())
	}

	cases := []struct {
		day  int
		want int
	}{
		{3, 3},
		{5, 1},
		{6, 0},
		{10, 0},
	}
	for _, tc := range cases {
		if got := c.DaysLeft(tc.day); got != tc.want {
			t.Errorf("DaysLeft(%d): expected %d, got %d", tc.day, tc.want, got)
		}
	}
}

func TestStatusRemaining(t *testing.T) {
	s := Status{
		Campaign: Campaign{Reach: 100, Budget: KnownBudget(50)},
		Progress: Progress{Reach: 120, Cost: 20},
	}
	if s.RemainingReach() != 0 {
		t.Errorf("over-delivered campaign should have no reach left, got %d", s.RemainingReach())
	}
	if s.RemainingBudget() != 30 {
		t.Errorf("expected remaining budget 30, got %f", s.RemainingBudget())
	}

	s.Budget = UnknownBudget()
	if s.RemainingBudget() != 0 {
		t.Errorf("unknown budget should report zero remaining, got %f", s.RemainingBudget())
	}
}

func TestObserveKeepsOrder(t *testing.T) {
	env := StaticEnvironment{
		Day: 2,
		Statuses: []Status{
			{Campaign: Campaign{UID: 9, Reach: 10}, Progress: Progress{Reach: 4, Cost: 1.5}},
			{Campaign: Campaign{UID: 3, Reach: 10}, Progress: Progress{Reach: 1, Cost: 0.2}},
		},
	}
	got := Observe(env)
	if len(got) != 2 {
		t.Fatalf("expected 2 statuses, got %d", len(got))
	}
	if got[0].UID != 9 || got[1].UID != 3 {
		t.Errorf("expected order [9 3], got [%d %d]", got[0].UID, got[1].UID)
	}
	if got[0].Progress.Reach != 4 || got[1].Progress.Cost != 0.2 {
		t.Errorf("progress not copied: %+v", got)
	}
}

func TestSegmentSize(t *testing.T) {
	if got := SegmentSize("Female_Old_LowIncome"); got != 2401 {
		t.Errorf("expected 2401, got %d", got)
	}
	if got := SegmentSize("Female_Old"); got != 2401+407 {
		t.Errorf("expected %d, got %d", 2401+407, got)
	}
	if got := SegmentSize("HighIncome"); got != 517+808+256+407 {
		t.Errorf("expected %d, got %d", 517+808+256+407, got)
	}
	if got := SegmentSize("Robot"); got != 0 {
		t.Errorf("unknown segment should be 0, got %d", got)
	}
	if len(Segments()) != 8 {
		t.Errorf("expected 8 atomic segments, got %d", len(Segments()))
	}
}
