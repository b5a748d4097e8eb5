package domain

import (
	"encoding/json"
	"math"
	"strconv"
)

// Well-known game data keys reported by the minigames.
const (
	KeySuccessfulDeploys     = "SuccessfulDeploys"
	KeyCatInterventions      = "CatInterventions"
	KeyAverageAccuracy       = "AverageAccuracy"
	KeyUniqueCommandsUsed    = "UniqueCommandsUsed"
	KeyAverageResponseTimeMs = "AverageResponseTimeMs"
)

// GameData is the free-form metrics map a minigame attaches to its session.
type GameData map[string]any

// Float returns the numeric value at key, or 0 when absent, not numeric or
// not finite.
func (d GameData) Float(key string) float64 {
	f := d.rawFloat(key)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

func (d GameData) rawFloat(key string) float64 {
	switch v := d[key].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int32:
		return float64(v)
	case int64:
		return float64(v)
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return 0
		}
		return f
	case string:
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0
		}
		return f
	default:
		return 0
	}
}

// Int returns the value at key truncated to an integer.
func (d GameData) Int(key string) int64 {
	switch v := d[key].(type) {
	case int:
		return int64(v)
	case int32:
		return int64(v)
	case int64:
		return v
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return n
		}
	}
	return clampToInt64(d.Float(key))
}

// clampToInt64 truncates f, clamping values beyond the int64 range.
func clampToInt64(f float64) int64 {
	switch {
	case f >= math.MaxInt64:
		return math.MaxInt64
	case f <= math.MinInt64:
		return math.MinInt64
	default:
		return int64(f)
	}
}

// Clone returns a shallow copy; nil stays nil.
func (d GameData) Clone() GameData {
	if d == nil {
		return nil
	}
	out := make(GameData, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}
