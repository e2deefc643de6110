package domain

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// Resample reduces timestamped observations to one value per calendar day.
// Absent observations are ignored; a day whose observations are all absent
// produces no point, and so does a day whose aggregate overflows to a
// non-finite value. Points are returned in ascending date order.
func Resample(name string, obs []Observation, agg Aggregation) (DailySeries, error) {
	if agg != AggregateSum && agg != AggregateMean {
		return DailySeries{}, fmt.Errorf("%w: unknown aggregation %q", ErrInvalidArgument, agg)
	}

	type bucket struct {
		sum   float64
		count int
	}
	buckets := make(map[time.Time]*bucket)
	for _, o := range obs {
		if o.Absent {
			continue
		}
		day := CalendarDate(o.Time)
		b, ok := buckets[day]
		if !ok {
			b = &bucket{}
			buckets[day] = b
		}
		b.sum += o.Value
		b.count++
	}

	days := make([]time.Time, 0, len(buckets))
	for d := range buckets {
		days = append(days, d)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })

	series := DailySeries{Name: name, Aggregation: agg, Points: make([]DailyPoint, 0, len(days))}
	for _, d := range days {
		b := buckets[d]
		v := b.sum
		if agg == AggregateMean {
			v /= float64(b.count)
		}
		if math.IsInf(v, 0) || math.IsNaN(v) {
			continue
		}
		series.Points = append(series.Points, DailyPoint{Date: d, Value: v, Count: b.count})
	}
	return series, nil
}
