package mtm

import "fmt"

const description = "#YogiBhajan #Meditation #Sadhana #DailyPractice #1000DaysChallenge " +
	"#MastersTouchMeditation #KundaliniYoga #MeditationJourney " +
	"#SpiritualDiscipline #MeditationChallenge #DailyMeditation " +
	"#LongMeditation #MeditationSadhana #YogaPractice #MeditationLife"

// Title returns the canonical stream title for a YYYY-MM-DD date.
func (p Program) Title(day string) (string, error) {
	t, err := ParseDay(day)
	if err != nil {
		return "", err
	}
	index, err := p.IndexOf(t)
	if err != nil {
		return "", err
	}
	return TitleFor(index, IsSunday(t)), nil
}

// TitleFor builds the title for a known day index.
func TitleFor(index int, sunday bool) string {
	if sunday {
		return fmt.Sprintf("Master’s Touch Meditation (Full version, Sunday) — Day %d of %d", index, TotalDays)
	}
	return fmt.Sprintf("Master’s Touch Meditation (½ version) — Day %d of %d", index, TotalDays)
}

// Description returns the fixed hashtag description.
func Description() string {
	return description
}

// DayCaption is the subtitle rendered on thumbnails.
func DayCaption(index int) string {
	return fmt.Sprintf("Day %d of %d", index, TotalDays)
}

// FacebookMessage returns the bilingual post text for a day index.
func FacebookMessage(index int) string {
	return fmt.Sprintf("Master's touch meditation, day %d.\nMeditación del toque del Maestro, día %d.", index, index)
}

// WatchURL returns the public watch URL for a video or broadcast.
func WatchURL(videoID string) string {
	return "https://www.youtube.com/watch?v=" + videoID
}
