package draw

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"luckydraw/internal/models"
	"luckydraw/internal/shuffle"
)

// DefaultPrize is used when the prize label is left empty.
const DefaultPrize = "未命名品項"

var (
	// ErrInvalidCount is returned when the winner count is not a positive integer.
	ErrInvalidCount = errors.New("請輸入正確的得獎人數")
	// ErrInsufficientParticipants is returned when repeats are disallowed and
	// more winners are requested than there are participants.
	ErrInsufficientParticipants = errors.New("得獎人數不得超過參與者總數，或請勾選允許重複中獎")
	// ErrEmptyParticipantList is returned when no participant remains after parsing.
	ErrEmptyParticipantList = errors.New("請至少輸入 1 位參與者")
)

// IsUserInputError reports whether err is one of the validation failures
// that should be shown to the user as-is.
func IsUserInputError(err error) bool {
	return errors.Is(err, ErrInvalidCount) ||
		errors.Is(err, ErrInsufficientParticipants) ||
		errors.Is(err, ErrEmptyParticipantList)
}

// ParseParticipants splits text on newlines, trims every line and drops the
// empty ones. Order is preserved.
func ParseParticipants(text string) []models.Participant {
	lines := strings.Split(text, "\n")
	participants := make([]models.Participant, 0, len(lines))
	for _, line := range lines {
		name := strings.TrimSpace(line)
		if name == "" {
			continue
		}
		participants = append(participants, name)
	}
	return participants
}

// JoinParticipants writes a participant list back as pool text.
func JoinParticipants(participants []models.Participant) string {
	return strings.Join(participants, "\n")
}

// ParseCount parses the leading base-10 integer of s, so "3 人" reads as 3.
// Anything that does not start with digits, or is below 1, is ErrInvalidCount.
// A count too large for an int saturates at math.MaxInt.
func ParseCount(s string) (int, error) {
	s = strings.TrimSpace(s)
	end := 0
	if end < len(s) && (s[end] == '+' || s[end] == '-') {
		end++
	}
	digitsStart := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == digitsStart {
		return 0, ErrInvalidCount
	}

	n, err := strconv.Atoi(s[:end])
	switch {
	case errors.Is(err, strconv.ErrRange) && s[0] != '-':
		n = math.MaxInt
	case err != nil:
		return 0, fmt.Errorf("%w: %v", ErrInvalidCount, err)
	}
	if n < 1 {
		return 0, ErrInvalidCount
	}
	return n, nil
}

// Validate checks the raw form inputs before a draw. The checks run in the
// same order the page always used: count, then pool size, then empty list.
func Validate(participantsText, count string, allowRepeat bool) ([]models.Participant, int, error) {
	participants := ParseParticipants(participantsText)

	winnerCount, err := ParseCount(count)
	if err != nil {
		return nil, 0, err
	}
	if !allowRepeat && winnerCount > len(participants) {
		return nil, 0, ErrInsufficientParticipants
	}
	if len(participants) < 1 {
		return nil, 0, ErrEmptyParticipantList
	}

	return participants, winnerCount, nil
}

// ResolveSeed returns the user's seed, or a millisecond timestamp when the
// input is blank. generated is true when the seed was made up here.
func ResolveSeed(input string, now time.Time) (seed string, generated bool) {
	if s := strings.TrimSpace(input); s != "" {
		return s, false
	}
	return strconv.FormatInt(now.UnixMilli(), 10), true
}

// ResolvePrize returns the trimmed prize label or DefaultPrize.
func ResolvePrize(input string) string {
	if p := strings.TrimSpace(input); p != "" {
		return p
	}
	return DefaultPrize
}

// Run returns the winners of cfg: the first WinnerCount entries of the seeded
// permutation of its participants.
func Run(cfg models.DrawConfig) []models.Participant {
	return shuffle.Winners(cfg.Participants, cfg.Seed, cfg.WinnerCount)
}

// ReducePool removes every occurrence of each winner's name from pool.
// A name drawn once takes all of its duplicates out of the pool with it.
func ReducePool(pool, winners []models.Participant) []models.Participant {
	drawn := make(map[models.Participant]struct{}, len(winners))
	for _, w := range winners {
		drawn[w] = struct{}{}
	}

	remaining := make([]models.Participant, 0, len(pool))
	for _, p := range pool {
		if _, ok := drawn[p]; ok {
			continue
		}
		remaining = append(remaining, p)
	}
	return remaining
}

// FormatDate renders t as "YYYY-MM-DD HH:MM:SS" in t's location.
func FormatDate(t time.Time) string {
	return t.Format("2006-01-02 15:04:05")
}

// RepeatHelp is the hint shown next to the repeat checkbox.
func RepeatHelp(allowRepeat bool) string {
	if allowRepeat {
		return "允許同一參與者重複中獎，不會移除名單。"
	}
	return "不允許同一參與者重複中獎，中獎者將從名單移除。"
}

// NewRecord builds the history entry for a finished draw.
func NewRecord(cfg models.DrawConfig, winners []models.Participant, at time.Time) models.DrawRecord {
	return models.DrawRecord{
		Prize:       cfg.PrizeLabel,
		Seed:        cfg.Seed,
		Date:        FormatDate(at),
		Winners:     append([]models.Participant(nil), winners...),
		AllowRepeat: cfg.AllowRepeat,
	}
}
