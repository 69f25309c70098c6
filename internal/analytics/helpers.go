package analytics

import "sort"

// VideoLengths returns each video's duration in minutes, rounded to two
// decimals, keyed by video id.
func VideoLengths(attrs map[string]VideoAttributes) map[string]float64 {
	lengths := make(map[string]float64, len(attrs))
	for id, a := range attrs {
		lengths[id] = round2(a.MaxStopPosition / SecondsPerMinute)
	}
	return lengths
}

// AvgTimeSpent computes, per video, the average watched seconds across its
// viewers. Each observed segment contributes a fixed segment duration times
// its watch count to the viewer's total.
func AvgTimeSpent(events []WatchEvent, segmentSeconds int) map[string]float64 {
	type userVideo struct {
		userID  string
		videoID string
	}

	totals := make(map[userVideo]float64)
	for _, e := range events {
		if e.UserID == "" || !e.IsValid() {
			continue
		}
		key := userVideo{userID: e.UserID, videoID: e.VideoID}
		totals[key] += float64(e.Count * segmentSeconds)
	}

	sums := make(map[string]float64)
	viewers := make(map[string]int)
	for key, secs := range totals {
		sums[key.videoID] += secs
		viewers[key.videoID]++
	}

	avg := make(map[string]float64, len(sums))
	for videoID, sum := range sums {
		avg[videoID] = sum / float64(viewers[videoID])
	}
	return avg
}

// SummaryTable builds the per-video rollup displayed next to the heatmap:
// average watch rate, viewer count, length in minutes, and the normalized
// dwell-time ratio (average watched seconds over video length). Rows come
// out sorted by course order.
func SummaryTable(rows []SegmentStat, events []WatchEvent, segmentSeconds int) []SummaryRow {
	if len(rows) == 0 {
		return nil
	}

	avgSeconds := AvgTimeSpent(events, segmentSeconds)

	byVideo := make(map[string]SummaryRow)
	for _, r := range rows {
		if _, ok := byVideo[r.VideoID]; ok {
			continue
		}
		s := SummaryRow{
			VideoID:       r.VideoID,
			VideoName:     r.VideoName,
			CourseOrder:   r.CourseOrder,
			LengthMinutes: round2(r.MaxStopPosition / SecondsPerMinute),
			UniqueViews:   r.UniqueViews,
			AvgWatchRate:  r.AvgWatchRate,
		}
		if r.MaxStopPosition > 0 {
			s.DwellRatio = round2(avgSeconds[r.VideoID] / r.MaxStopPosition)
		}
		byVideo[r.VideoID] = s
	}

	summary := make([]SummaryRow, 0, len(byVideo))
	for _, s := range byVideo {
		summary = append(summary, s)
	}
	sort.Slice(summary, func(i, j int) bool {
		if summary[i].CourseOrder != summary[j].CourseOrder {
			return summary[i].CourseOrder < summary[j].CourseOrder
		}
		return summary[i].VideoID < summary[j].VideoID
	})
	return summary
}

// ChapterMarkers computes the y-axis divider positions drawn between the
// last video of one chapter and the first of the next, on the dense course
// ordering used by the heatmap. The boolean result is false when fewer than
// two chapters are present and no markers apply.
func ChapterMarkers(chapters []ChapterVideo) ([]float64, bool) {
	if len(chapters) == 0 {
		return nil, false
	}

	orders := make([]float64, len(chapters))
	for i, c := range chapters {
		orders[i] = float64(c.CourseOrder)
	}
	ranks := DenseRank(orders)

	maxRank := 0
	lastRank := make(map[int]int) // chapter index -> highest rank in chapter
	chapterIdx := make([]int, 0, len(chapters))
	for i, c := range chapters {
		if ranks[i] > maxRank {
			maxRank = ranks[i]
		}
		if _, seen := lastRank[c.ChapterIndex]; !seen {
			chapterIdx = append(chapterIdx, c.ChapterIndex)
		}
		if ranks[i] > lastRank[c.ChapterIndex] {
			lastRank[c.ChapterIndex] = ranks[i]
		}
	}

	if len(chapterIdx) < 2 {
		return nil, false
	}
	sort.Ints(chapterIdx)

	// The y axis is drawn top-down, so a boundary after a chapter's last
	// video sits at maxRank - lastRank + 0.5.
	markers := make([]float64, 0, len(chapterIdx)-1)
	for _, ch := range chapterIdx[:len(chapterIdx)-1] {
		markers = append(markers, float64(maxRank-lastRank[ch])+0.5)
	}
	return markers, true
}
