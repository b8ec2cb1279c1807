package game

// taskMetric reads the value a task of t's type compares with its goal.
// fortune is passed in so one evaluation pass computes it once.
func taskMetric(s *GameState, t Task, fortune float64) float64 {
	switch t.Type {
	case TaskBalance:
		return s.Balance
	case TaskAutoIncome:
		return s.AutoIncomePerSecond
	case TaskTotalFortune:
		return fortune
	case TaskBusinessLevel:
		if b := s.business(t.TargetID); b != nil {
			return float64(b.Level)
		}
	case TaskOwnRealEstate:
		if r := s.estate(t.TargetID); r != nil {
			return float64(r.Owned)
		}
	case TaskUpgradeLevel:
		if u := s.Upgrades.Get(t.TargetID); u != nil {
			return float64(u.Level)
		}
	case TaskStockShares:
		if st := s.stock(t.TargetID); st != nil {
			return float64(st.Shares)
		}
	case TaskOwnCar:
		if c := s.car(t.TargetID); c != nil {
			return float64(c.Owned)
		}
	}
	return 0
}

// evaluateTasks flips IsCompleted on every open task whose metric reached its
// goal. Completed tasks are never re-checked, so completion is sticky even if
// the metric later drops.
func evaluateTasks(s *GameState) {
	var fortune float64
	fortuneReady := false
	for i := range s.Tasks {
		t := &s.Tasks[i]
		if t.IsCompleted {
			continue
		}
		if t.Type == TaskTotalFortune && !fortuneReady {
			fortune = TotalFortune(s)
			fortuneReady = true
		}
		if taskMetric(s, *t, fortune) >= t.Goal {
			t.IsCompleted = true
		}
	}
}

// EvaluateTasks returns a copy of s with task completion brought up to date.
func EvaluateTasks(s *GameState) *GameState {
	next := s.Clone()
	evaluateTasks(next)
	return next
}
