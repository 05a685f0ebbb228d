package character

import "math"

// XPThreshold returns the total experience needed to reach a level
func XPThreshold(level int) int {
	if level < 1 {
		level = 1
	}
	return int(math.Floor(100 * math.Pow(1.5, float64(level-1))))
}

// LevelResult describes the outcome of granting experience
type LevelResult struct {
	Level     int
	XP        int
	LeveledUp bool
	Gains     Stats
}

// GrantXP adds experience and raises the level by at most one step
func (c *Class) GrantXP(level, xp, gained int) LevelResult {
	if level < 1 {
		level = 1
	}
	res := LevelResult{Level: level, XP: xp + gained}
	if res.XP >= XPThreshold(level+1) {
		res.Level = level + 1
		res.LeveledUp = true
		res.Gains = c.LevelUp
	}
	return res
}
