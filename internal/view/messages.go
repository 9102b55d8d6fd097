package view

import (
	"fmt"
	"time"

	"golang.org/x/text/language"

	"availcal/internal/model"
)

// Messages are the label overrides handed to the widget.
type Messages struct {
	Today           string `json:"today"`
	Previous        string `json:"previous"`
	Next            string `json:"next"`
	Month           string `json:"month"`
	Week            string `json:"week"`
	WorkWeek        string `json:"work_week"`
	Day             string `json:"day"`
	Agenda          string `json:"agenda"`
	Date            string `json:"date"`
	Time            string `json:"time"`
	Event           string `json:"event"`
	AllDay          string `json:"allDay"`
	NoEventsInRange string `json:"noEventsInRange"`
	ShowMore        string `json:"showMore"` // fmt verb %d is the hidden count
}

var (
	supported = []language.Tag{language.English, language.Korean}
	matcher   = language.NewMatcher(supported)

	catalog = map[language.Tag]Messages{
		language.English: {
			Today:           "Today",
			Previous:        "Back",
			Next:            "Next",
			Month:           "Month",
			Week:            "Week",
			WorkWeek:        "3 Days",
			Day:             "Day",
			Agenda:          "Agenda",
			Date:            "Date",
			Time:            "Time",
			Event:           "Event",
			AllDay:          "All day",
			NoEventsInRange: "Nothing scheduled in this range.",
			ShowMore:        "+%d more",
		},
		language.Korean: {
			Today:           "오늘",
			Previous:        "이전",
			Next:            "다음",
			Month:           "월",
			Week:            "주",
			WorkWeek:        "3일",
			Day:             "일",
			Agenda:          "일정",
			Date:            "날짜",
			Time:            "시간",
			Event:           "일정",
			AllDay:          "종일",
			NoEventsInRange: "이 기간에는 일정이 없습니다.",
			ShowMore:        "+%d개 더보기",
		},
	}

	koWeekdays = [...]string{"일", "월", "화", "수", "목", "금", "토"}
)

// Culture canonicalises a BCP 47 tag. Invalid input yields en-US.
func Culture(locale string) language.Tag {
	tag, err := language.Parse(locale)
	if err != nil {
		return language.AmericanEnglish
	}
	return tag
}

// MatchMessages picks the closest supported catalog for tag.
func MatchMessages(tag language.Tag) (language.Tag, Messages) {
	_, idx, _ := matcher.Match(tag)
	base := supported[idx]
	return base, catalog[base]
}

// RangeLabel is the toolbar title for the visible range.
func RangeLabel(base language.Tag, v model.View, start, end time.Time) string {
	last := end.AddDate(0, 0, -1)
	if base == language.Korean {
		switch v {
		case model.ViewMonth:
			mid := start.AddDate(0, 0, 15)
			return fmt.Sprintf("%d년 %d월", mid.Year(), mid.Month())
		case model.ViewDay:
			return fmt.Sprintf("%d년 %d월 %d일 (%s)", start.Year(), start.Month(), start.Day(), koWeekdays[start.Weekday()])
		default:
			return fmt.Sprintf("%d년 %d월 %d일 – %d월 %d일", start.Year(), start.Month(), start.Day(), last.Month(), last.Day())
		}
	}

	switch v {
	case model.ViewMonth:
		return start.AddDate(0, 0, 15).Format("January 2006")
	case model.ViewDay:
		return start.Format("Monday, Jan 2, 2006")
	default:
		if start.Year() != last.Year() {
			return start.Format("Jan 2, 2006") + " – " + last.Format("Jan 2, 2006")
		}
		return start.Format("Jan 2") + " – " + last.Format("Jan 2, 2006")
	}
}
