package board

import (
	"evboard/internal/feed"
	"evboard/internal/model"
	"evboard/internal/pipeline"
	"evboard/internal/render"
)

const (
	emptyFiltered = "Inga händelser matchar dina filter."
	attendHint    = "Logga in för att anmäla dig"
	ownerHint     = "Du är arrangör"
	feedTimeFmt   = "2006-01-02 15:04"
)

// Project turns a state into the view the templates render. It reads s
// and c only; the returned view shares nothing with s.
func Project(s State, c pipeline.Clock) render.View {
	v := render.View{
		Now:      c.Now,
		Mode:     string(s.Mode),
		LoggedIn: s.ViewerID != "",
		IsAdmin:  s.IsAdmin,
		Status:   render.Status{Kind: string(s.Status.Kind), Message: s.Status.Message},
		Filters:  projectFilters(s.Filters),
		Feed:     projectFeed(s.Feed, c),
	}
	if s.Mode == ModeFeed {
		return v
	}

	visible := pipeline.Apply(s.Events, s.Filters, c)
	v.Cards = make([]render.Card, 0, len(visible))
	for _, ev := range visible {
		v.Cards = append(v.Cards, card(s, ev, c))
		v.Markers = append(v.Markers, render.NewMarker(ev.ID, ev.Title, ev.ID == s.Selected))
	}
	v.CountLabel = pipeline.CountLabel(len(visible))
	switch {
	case s.LoadErr != "":
		v.EmptyMessage = s.LoadErr
	case len(visible) == 0:
		v.EmptyMessage = emptyFiltered
	}

	if ev, ok := s.Event(s.Selected); ok {
		d := card(s, ev, c)
		v.Details = &d
	}

	for _, ev := range s.Events {
		if s.Saved.Has(ev.ID) {
			v.SavedCards = append(v.SavedCards, card(s, ev, c))
		}
	}

	if s.IsAdmin && s.ViewerID != "" {
		v.Admin = projectAdmin(s, c)
	}
	return v
}

func card(s State, ev model.Event, c pipeline.Clock) render.Card {
	author := ev.AuthorName()
	place := pipeline.PlaceLabel(ev.Place)
	out := render.Card{
		ID:            ev.ID,
		Title:         ev.Title,
		Author:        author,
		Initials:      pipeline.Initials(author),
		Badge:         string(ev.AuthorProfile.Badge()),
		TimeAgo:       pipeline.TimeAgo(ev.CreatedAt, c.Now),
		Price:         pipeline.PriceLabel(ev.Price),
		PlaceLabel:    place.Label,
		PlaceHref:     place.Href,
		Time:          pipeline.FormatClock(model.Value(ev.Time)),
		End:           pipeline.EndLabel(ev),
		Info:          ev.Info,
		Images:        append([]string(nil), ev.ImageURLs...),
		AttendeeLabel: pipeline.AttendeeLabel(ev.AttendeeCount),
		Attending:     ev.IsAttendingSelf,
		OwnerLocked:   ev.IsOwnerLocked,
		Saved:         s.Saved.Has(ev.ID),
		CanDelete:     s.CanDelete(ev),
		Selected:      ev.ID == s.Selected,
	}
	if ev.AuthorProfile != nil {
		out.AvatarURL = ev.AuthorProfile.AvatarURL
	}
	if ev.HasCategory() {
		out.Category = pipeline.NormalizeCategory(model.Value(ev.Category))
	}
	if ev.HasDate() {
		out.Date = pipeline.FormatDate(model.Value(ev.Date))
	}
	switch {
	case s.ViewerID == "":
		out.AttendDisabled = true
		out.AttendHint = attendHint
	case ev.IsOwnerLocked:
		out.AttendDisabled = true
		out.AttendHint = ownerHint
	}
	return out
}

func projectFilters(f model.FilterState) render.Filters {
	f = f.Normalized()
	out := render.Filters{
		Query:     f.Query,
		Place:     f.Place,
		Date:      f.Date,
		IsDefault: f.IsDefault(),
	}
	out.Categories = append(out.Categories, render.Option{Value: model.CategoryAll, Label: "Alla kategorier", Selected: f.Category == model.CategoryAll})
	for _, cat := range model.Categories {
		out.Categories = append(out.Categories, render.Option{Value: cat, Label: cat, Selected: f.Category == cat})
	}
	for _, r := range model.DateRanges {
		out.Ranges = append(out.Ranges, render.Option{Value: string(r), Label: r.Label(), Selected: f.DateRange == r})
	}
	for _, m := range model.SortModes {
		out.Sorts = append(out.Sorts, render.Option{Value: string(m), Label: m.Label(), Selected: f.Sort == m})
	}
	return out
}

func projectFeed(fs FeedState, c pipeline.Clock) render.FeedView {
	items := fs.Items
	if fs.Query != "" {
		items = fs.Results
	}
	out := render.FeedView{
		Query:   fs.Query,
		Loading: fs.Loading,
		Message: fs.Err,
	}
	for _, it := range items {
		out.Items = append(out.Items, feedItem(it, c))
	}
	if len(out.Items) == 0 && out.Message == "" && !fs.Loading {
		out.Message = msgFeedEmpty
	}
	return out
}

func feedItem(it feed.Item, c pipeline.Clock) render.FeedItem {
	out := render.FeedItem{
		ID:       it.ID,
		Title:    it.Title,
		Summary:  it.Summary,
		Type:     it.Type,
		Location: it.Location,
		Link:     it.Link,
	}
	if it.Time != nil {
		loc := c.Loc
		if loc == nil {
			loc = c.Now.Location()
		}
		out.When = it.Time.In(loc).Format(feedTimeFmt)
	}
	return out
}

func projectAdmin(s State, c pipeline.Clock) *render.AdminView {
	out := &render.AdminView{}
	titles := make(map[string]string, len(s.Events))
	for _, ev := range s.Events {
		titles[ev.ID] = ev.Title
		out.Events = append(out.Events, card(s, ev, c))
	}
	if s.Moderation == nil {
		return out
	}
	for _, p := range s.Moderation.Profiles {
		out.Profiles = append(out.Profiles, render.ProfileRow{ID: p.ID, Name: p.DisplayName(), Badge: string(p.Badge())})
	}
	for _, r := range s.Moderation.Reports {
		title := titles[r.EventID]
		if title == "" {
			title = r.EventID
		}
		out.Reports = append(out.Reports, render.ReportRow{
			ID:         r.ID,
			EventID:    r.EventID,
			EventTitle: title,
			Reason:     r.Reason,
			When:       pipeline.TimeAgo(r.CreatedAt, c.Now),
		})
	}
	return out
}

// AttendeeRows projects attendance rows for the attendee fragment.
func AttendeeRows(rows []model.AttendeeRow) []render.AttendeeRow {
	out := make([]render.AttendeeRow, 0, len(rows))
	for _, r := range rows {
		name := r.Profile.DisplayName()
		row := render.AttendeeRow{Name: name, Initials: pipeline.Initials(name)}
		if r.Profile != nil {
			row.AvatarURL = r.Profile.AvatarURL
		}
		out = append(out, row)
	}
	return out
}
