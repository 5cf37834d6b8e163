package bot

import "time"

// Telegram never exposes when an account was registered, but user ids are
// assigned sequentially, so an id maps to a rough registration window. The
// table below holds observed (id, date) breakpoints; ages in between are
// linearly interpolated. Anti-spam bots use the same trick.
type idEpoch struct {
	id   int64
	date time.Time
}

var idEpochs = []idEpoch{
	{2768409, date(2013, 8)},
	{11538514, date(2013, 10)},
	{101260938, date(2015, 6)},
	{234480941, date(2016, 6)},
	{400169472, date(2017, 8)},
	{616816630, date(2018, 6)},
	{925078064, date(2019, 8)},
	{1178041610, date(2020, 6)},
	{1500000000, date(2021, 2)},
	{2000000000, date(2021, 8)},
	{3000000000, date(2022, 6)},
	{4000000000, date(2023, 1)},
	{5000000000, date(2023, 9)},
	{6000000000, date(2024, 3)},
	{7000000000, date(2024, 12)},
	{8000000000, date(2025, 6)},
}

func date(year int, month time.Month) time.Time {
	return time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
}

// estimateCreatedAt maps a Telegram user id to an approximate account
// creation time. Ids beyond the table are treated as brand new.
func estimateCreatedAt(userID int64) time.Time {
	if userID <= idEpochs[0].id {
		return idEpochs[0].date
	}
	last := idEpochs[len(idEpochs)-1]
	if userID >= last.id {
		return time.Now()
	}
	for i := 1; i < len(idEpochs); i++ {
		hi := idEpochs[i]
		if userID > hi.id {
			continue
		}
		lo := idEpochs[i-1]
		span := hi.date.Sub(lo.date)
		frac := float64(userID-lo.id) / float64(hi.id-lo.id)
		return lo.date.Add(time.Duration(frac * float64(span)))
	}
	return last.date
}
