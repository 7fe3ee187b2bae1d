package resolver

import (
	"math"
	"strings"
	"unicode"

	"github.com/desertthunder/plsync/internal/models"
	"golang.org/x/text/unicode/norm"
)

// noiseWords commonly decorate video titles without identifying the recording.
var noiseWords = map[string]bool{
	"official": true, "video": true, "audio": true, "lyrics": true, "lyric": true,
	"hd": true, "hq": true, "music": true, "mv": true, "visualizer": true, "topic": true,
}

// normalize folds accents, case and punctuation so that "Beyoncé - Halo (Official)" and "beyonce halo official" compare equal.
func normalize(s string) string {
	var b strings.Builder
	for _, r := range norm.NFD.String(s) {
		switch {
		case unicode.Is(unicode.Mn, r):
			continue
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(unicode.ToLower(r))
		default:
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

func words(s string) []string {
	out := []string{}
	for _, w := range strings.Fields(normalize(s)) {
		if !noiseWords[w] {
			out = append(out, w)
		}
	}
	return out
}

// similarity scores how much of ref is covered by cand, in [0,1].
//
// The base is the share of reference words present in the candidate, with a bonus when the
// reference appears as a contiguous phrase and a small penalty for many extra words.
func similarity(ref, cand string) float64 {
	refWords, candWords := words(ref), words(cand)
	if len(refWords) == 0 || len(candWords) == 0 {
		return 0
	}

	refText, candText := strings.Join(refWords, " "), strings.Join(candWords, " ")
	if refText == candText {
		return 1
	}

	candSet := make(map[string]bool, len(candWords))
	for _, w := range candWords {
		candSet[w] = true
	}
	matched := 0
	for _, w := range refWords {
		if candSet[w] {
			matched++
		}
	}

	score := float64(matched) / float64(len(refWords))
	if matched > 1 && strings.Contains(candText, refText) {
		score += 0.1
	}
	if extra := len(candWords) - matched; extra > 3 {
		score -= float64(extra-3) * 0.03
	}
	return clamp(score)
}

// durationCloseness returns 1 for identical durations falling linearly to 0 at a 100% difference,
// and whether the difference exceeds tolerance. Unknown durations are neutral.
func durationCloseness(ref, cand int, tolerance float64) (float64, bool) {
	if ref <= 0 || cand <= 0 {
		return 0.5, false
	}
	ratio := math.Abs(float64(cand-ref)) / float64(ref)
	return clamp(1 - ratio), ratio > tolerance
}

const (
	titleWeight    = 0.55
	artistWeight   = 0.30
	durationWeight = 0.15
	outOfTolerance = 0.20
)

// Score ranks a candidate against a remote track reference.
//
// Candidates whose duration differs from the reference by more than tolerance (a fraction) are
// penalized but still scored, since reference durations are estimates.
func Score(ref models.RemoteTrack, c models.Candidate, tolerance float64) float64 {
	title, artist := ref.Title, ref.Artist
	titleSim := math.Max(similarity(title, c.Title), similarity(artist+" "+title, c.Artist+" "+c.Title))
	artistSim := similarity(artist, c.Artist)
	if artist == "" {
		artistSim = 0.5
	} else if s := similarity(artist, c.Title); s > artistSim {
		// uploads often carry the artist in the title only
		artistSim = s
	}

	closeness, outside := durationCloseness(ref.Duration, c.Duration, tolerance)
	score := titleWeight*titleSim + artistWeight*artistSim + durationWeight*closeness
	if outside {
		score -= outOfTolerance
	}
	return clamp(score)
}

func clamp(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
