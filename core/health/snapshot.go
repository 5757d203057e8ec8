package health

// UpsertCategory returns a copy of s where the category with c's id is replaced in place,
// or c is appended when no such category exists. s is left untouched.
func UpsertCategory(s WeeklySnapshot, c CategorySnapshot) WeeklySnapshot {
	out := s.Clone()
	c = c.clone()
	c.FocusPercent = Clamp(c.FocusPercent)
	for i := range out.Categories {
		if out.Categories[i].ID == c.ID {
			out.Categories[i] = c
			return out
		}
	}
	out.Categories = append(out.Categories, c)
	return out
}

// RemoveCategory returns a copy of s without the category id. Absent ids are a no-op.
func RemoveCategory(s WeeklySnapshot, id string) WeeklySnapshot {
	out := s.Clone()
	if out.Categories == nil {
		return out
	}
	cats := out.Categories[:0]
	for _, c := range out.Categories {
		if c.ID != id {
			cats = append(cats, c)
		}
	}
	out.Categories = cats
	return out
}

// AddAlert returns a copy of s with alert appended unless it is already present.
func AddAlert(s WeeklySnapshot, alert string) WeeklySnapshot {
	out := s.Clone()
	for _, a := range out.Alerts {
		if a == alert {
			return out
		}
	}
	out.Alerts = append(out.Alerts, alert)
	return out
}
