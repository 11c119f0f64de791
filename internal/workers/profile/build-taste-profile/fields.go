// internal/workers/profile/build-taste-profile/fields.go
package buildtasteprofile

import (
	"regexp"
	"strconv"
	"strings"

	"recommender-workers/internal/models"
)

// Uploaded histories come from many export formats (IMDb, Letterboxd,
// custom CSV dumps), so each canonical field is detected against a list of
// known column aliases, highest priority first.
var (
	titlePatterns = []string{
		"originalTitle",
		"title",
		"original_title",
		"primaryTitle",
		"movie_name",
		"name",
		"film_title",
		"internationalTitle",
	}
	ratingPatterns      = []string{"rating", "rating_score", "vote_average", "averageRating", "user_rating", "score", "rate"}
	yearPatterns        = []string{"year", "release_year", "startYear", "production_year", "release_date", "releaseYear"}
	durationPatterns    = []string{"duration", "runtime", "runtimeMinutes", "film_length", "length"}
	genresPatterns      = []string{"genres", "genre_list", "category_tags", "genre"}
	countriesPatterns   = []string{"countries", "country_list", "production_countries", "origin_countries", "country"}
	descriptionPatterns = []string{"description", "plot_summary", "overview", "synopsis", "plot", "summary"}
	watchedAtPatterns   = []string{"watched_at", "viewed_date", "watch_timestamp", "date", "watch_date", "viewDate"}
)

var (
	yearRe       = regexp.MustCompile(`(\d{4})`)
	langSuffixRe = regexp.MustCompile(`(?i)\s*\([a-z]{2}\)\s*$`)
)

// convertRow maps one raw history row onto RatedMovie. The second return is
// false when a required field is missing or unparseable; such rows are
// skipped, not fatal.
func convertRow(row map[string]interface{}) (*models.RatedMovie, bool) {
	title, ok := detectString(row, titlePatterns)
	if !ok {
		return nil, false
	}
	title = normalizeTitle(title)

	rating, ok := detectFloat(row, ratingPatterns)
	if !ok {
		return nil, false
	}

	year, ok := detectInt(row, yearPatterns, true)
	if !ok {
		return nil, false
	}

	duration, ok := detectInt(row, durationPatterns, false)
	if !ok {
		return nil, false
	}

	genres, ok := detectList(row, genresPatterns)
	if !ok {
		return nil, false
	}

	countries, ok := detectList(row, countriesPatterns)
	if !ok {
		countries = []string{}
	}

	description, ok := detectString(row, descriptionPatterns)
	if !ok {
		return nil, false
	}

	watchedAt, _ := detectString(row, watchedAtPatterns)

	return &models.RatedMovie{
		Title:       title,
		Description: description,
		Genres:      genres,
		Countries:   countries,
		Year:        year,
		Duration:    duration,
		Rating:      rating,
		WatchedAt:   watchedAt,
	}, true
}

// normalizeTitle strips trailing language artifacts like " (en)".
func normalizeTitle(title string) string {
	return strings.TrimSpace(langSuffixRe.ReplaceAllString(title, ""))
}

func detectString(row map[string]interface{}, patterns []string) (string, bool) {
	for _, key := range patterns {
		value, present := row[key]
		if !present {
			continue
		}
		s, isStr := value.(string)
		if !isStr {
			return "", false
		}
		s = strings.TrimSpace(s)
		if s == "" {
			return "", false
		}
		return s, true
	}
	return "", false
}

func detectFloat(row map[string]interface{}, patterns []string) (float64, bool) {
	for _, key := range patterns {
		value, present := row[key]
		if !present {
			continue
		}
		switch v := value.(type) {
		case float64:
			return v, true
		case int:
			return float64(v), true
		case string:
			f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
			if err != nil {
				return 0, false
			}
			return f, true
		default:
			return 0, false
		}
	}
	return 0, false
}

func detectInt(row map[string]interface{}, patterns []string, isYear bool) (int, bool) {
	for _, key := range patterns {
		value, present := row[key]
		if !present {
			continue
		}
		switch v := value.(type) {
		case float64:
			// JSON numbers decode as float64.
			return int(v), true
		case int:
			return v, true
		case string:
			if isYear {
				// Release dates like "2010-07-16" carry the year inside.
				if m := yearRe.FindString(v); m != "" {
					n, _ := strconv.Atoi(m)
					return n, true
				}
				return 0, false
			}
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				return 0, false
			}
			return n, true
		default:
			return 0, false
		}
	}
	return 0, false
}

func detectList(row map[string]interface{}, patterns []string) ([]string, bool) {
	for _, key := range patterns {
		value, present := row[key]
		if !present {
			continue
		}
		switch v := value.(type) {
		case []interface{}:
			items := make([]string, 0, len(v))
			for _, item := range v {
				s := strings.TrimSpace(toString(item))
				if s != "" {
					items = append(items, s)
				}
			}
			return items, true
		case []string:
			return v, true
		case string:
			var items []string
			for _, part := range strings.Split(v, ",") {
				if part = strings.TrimSpace(part); part != "" {
					items = append(items, part)
				}
			}
			return items, true
		default:
			return nil, false
		}
	}
	return nil, false
}

func toString(v interface{}) string {
	switch s := v.(type) {
	case string:
		return s
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	default:
		return ""
	}
}
