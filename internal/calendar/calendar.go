package calendar

import (
	"time"

	ical "github.com/arran4/golang-ical"

	appLog "evboard/internal/log"
	"evboard/internal/model"
	"evboard/internal/pipeline"
)

const (
	productID = "-//evboard//Evenemang//SV"
	calName   = "Evenemang"
	uidDomain = "@evboard"

	// Length given to timed events without a usable end.
	defaultLength = time.Hour
)

// Export builds a VCALENDAR with one VEVENT per dated event. Events
// without a usable date are skipped.
func Export(events []model.Event, loc *time.Location) string {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(productID)
	cal.SetXWRCalName(calName)

	n := 0
	for _, ev := range events {
		if addEvent(cal, ev, loc) {
			n++
		}
	}
	appLog.Debug("ics export built", "events", n, "skipped", len(events)-n)
	return cal.Serialize()
}

func addEvent(cal *ical.Calendar, ev model.Event, loc *time.Location) bool {
	start, ok := pipeline.StartInstant(ev, loc)
	if !ok {
		return false
	}

	ve := cal.AddEvent(ev.ID + uidDomain)
	stamp := ev.CreatedAt
	if stamp.IsZero() {
		stamp = start
	}
	ve.SetDtStampTime(stamp)
	ve.SetCreatedTime(stamp)
	ve.SetSummary(ev.Title)

	if ev.HasTime() {
		end, _ := pipeline.EndInstant(ev, loc)
		switch {
		case end.Before(start):
			// Ends after midnight.
			end = end.AddDate(0, 0, 1)
		case !end.After(start):
			end = start.Add(defaultLength)
		}
		ve.SetStartAt(start)
		ve.SetEndAt(end)
	} else {
		ve.SetAllDayStartAt(start)
		ve.SetAllDayEndAt(start.AddDate(0, 0, 1))
	}

	if place := pipeline.PlaceLabel(ev.Place); place.Label != "" {
		ve.SetLocation(place.Label)
		ve.SetURL(place.Href)
	}
	if ev.Info != "" {
		ve.SetDescription(ev.Info)
	}
	if ev.HasCategory() {
		ve.AddProperty(ical.ComponentPropertyCategories, pipeline.NormalizeCategory(model.Value(ev.Category)))
	}
	ve.SetOrganizer("mailto:noreply"+uidDomain+".invalid", ical.WithCN(ev.AuthorName()))
	return true
}
