package gate

// CheckDailyLimit reports whether another submission is allowed given how
// many the student already made today.
func CheckDailyLimit(countToday, limit int) bool {
	if limit <= 0 {
		return true
	}
	return countToday < limit
}
