package cache

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Operation TTLs.
const (
	AnalyticsTTL = 10 * time.Minute
	CompareTTL   = 5 * time.Minute
	RankingTTL   = 5 * time.Minute
	ProfileTTL   = 15 * time.Minute
)

const (
	OverviewKey   = "analytics:overview"
	IndustriesKey = "analytics:industries"
	RisksKey      = "analytics:risks"
)

// CompareKey is independent of the order ids are given in.
func CompareKey(ids []string) string {
	sorted := append([]string(nil), ids...)
	sort.Strings(sorted)
	return "analytics:compare:" + strings.Join(sorted, "_")
}

func TrendsKey(metric, interval, from, to string) string {
	return fmt.Sprintf("analytics:trends:%s:%s:%s:%s", metric, interval, from, to)
}

func ProfileKey(profileID string) string {
	return "profile:full:" + profileID
}

func RankedKey(ranking string, limit int) string {
	return fmt.Sprintf("profiles:ranked:%s:%d", ranking, limit)
}
