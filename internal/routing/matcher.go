// Package routing implements the inbound call router: schedule matching,
// the per-call routing decision state machine, and the fallback handling
// for team-dial outcomes.
package routing

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/liam123-dot/clearskyai-prod-sub001/internal/database"
	"github.com/liam123-dot/clearskyai-prod-sub001/internal/database/models"
)

// Matcher decides whether a day/time-window transfer rule applies to a phone
// line at a given instant.
type Matcher struct {
	schedules       database.RoutingScheduleRepository
	logger          *slog.Logger
	defaultTimezone string
	// nowFunc allows overriding the current time for testing.
	nowFunc func() time.Time
}

// NewMatcher creates a schedule matcher. defaultTimezone is used when a phone
// line has no timezone of its own.
func NewMatcher(schedules database.RoutingScheduleRepository, defaultTimezone string, logger *slog.Logger) *Matcher {
	return &Matcher{
		schedules:       schedules,
		logger:          logger.With("component", "schedule_matcher"),
		defaultTimezone: defaultTimezone,
		nowFunc:         time.Now,
	}
}

// FindMatchingSchedule returns the first enabled schedule on the line whose
// day set and time window contain the current instant, or nil when none
// matches. Schedules are evaluated in creation order; the first match wins.
//
// A store error is logged and treated the same as "no schedules": routing
// infrastructure failure must never drop an inbound call, so the caller
// degrades to direct-to-agent.
func (m *Matcher) FindMatchingSchedule(ctx context.Context, line *models.PhoneLine) *models.RoutingSchedule {
	scheds, err := m.schedules.ListEnabledByLine(ctx, line.ID)
	if err != nil {
		m.logger.Error("schedule lookup failed, failing open to no match",
			"line_id", line.ID,
			"error", err,
		)
		return nil
	}
	if len(scheds) == 0 {
		return nil
	}

	now := m.nowFunc().In(m.location(line))
	weekday := int(now.Weekday()) // 0=Sunday..6=Saturday
	hhmm := now.Format("15:04")

	for i := range scheds {
		if scheduleMatches(&scheds[i], weekday, hhmm) {
			m.logger.Debug("schedule matched",
				"line_id", line.ID,
				"schedule_id", scheds[i].ID,
				"weekday", weekday,
				"local_time", hhmm,
			)
			return &scheds[i]
		}
	}
	return nil
}

// ValidateOverlap reports whether the candidate schedule overlaps an existing
// enabled schedule on the same phone line. excludeID skips one schedule from
// the comparison for update-in-place checks; pass 0 for creates.
//
// Unlike matching, this runs on the admin path, so store errors propagate.
func (m *Matcher) ValidateOverlap(ctx context.Context, candidate *models.RoutingSchedule, excludeID int64) (bool, error) {
	existing, err := m.schedules.ListEnabledByLine(ctx, candidate.PhoneLineID)
	if err != nil {
		return false, err
	}
	for i := range existing {
		if existing[i].ID == excludeID {
			continue
		}
		if SchedulesOverlap(candidate, &existing[i]) {
			return true, nil
		}
	}
	return false, nil
}

// SchedulesOverlap reports whether two schedules overlap: their day sets
// intersect and their half-open time windows overlap under
// start_a < end_b && end_a > start_b. Fixed-width zero-padded "HH:MM" makes
// lexicographic comparison equivalent to time comparison.
func SchedulesOverlap(a, b *models.RoutingSchedule) bool {
	if !daysIntersect(parseDays(a.Days), parseDays(b.Days)) {
		return false
	}
	return a.StartTime < b.EndTime && a.EndTime > b.StartTime
}

// scheduleMatches reports whether a schedule's day set contains weekday and
// its half-open [start, end) window contains hhmm. A window whose end is not
// after its start matches nothing.
func scheduleMatches(s *models.RoutingSchedule, weekday int, hhmm string) bool {
	days := parseDays(s.Days)
	found := false
	for _, d := range days {
		if d == weekday {
			found = true
			break
		}
	}
	if !found {
		return false
	}
	return s.StartTime <= hhmm && hhmm < s.EndTime
}

// parseDays decodes the JSON weekday array. Malformed day sets yield nil,
// which matches no weekday.
func parseDays(raw string) []int {
	var days []int
	if err := json.Unmarshal([]byte(raw), &days); err != nil {
		return nil
	}
	return days
}

func daysIntersect(a, b []int) bool {
	for _, x := range a {
		for _, y := range b {
			if x == y {
				return true
			}
		}
	}
	return false
}

// location resolves the line's timezone, falling back to the configured
// default and finally UTC. Timezone resolution failure must not drop a call.
func (m *Matcher) location(line *models.PhoneLine) *time.Location {
	tz := line.Timezone
	if tz == "" {
		tz = m.defaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		m.logger.Warn("invalid timezone, falling back to UTC",
			"line_id", line.ID,
			"timezone", tz,
		)
		return time.UTC
	}
	return loc
}
