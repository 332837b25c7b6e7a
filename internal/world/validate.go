package world

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/Iron-Ham/giftswap/internal/errors"
)

// Name length limits, counted in runes after trimming.
const (
	MinParticipantName = 2
	MaxParticipantName = 50
	MaxGiftName        = 100
)

// CleanParticipantName trims name and checks its length.
func CleanParticipantName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", errors.NewValidationError("participant name must not be blank").WithField("name")
	}
	if n := utf8.RuneCountInString(name); n < MinParticipantName || n > MaxParticipantName {
		return "", errors.NewValidationError(
			fmt.Sprintf("participant name must be between %d and %d characters", MinParticipantName, MaxParticipantName),
		).WithField("name").WithValue(name)
	}
	return name, nil
}

// CleanGiftName trims name and checks its length.
func CleanGiftName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", errors.NewValidationError("gift name must not be blank").WithField("name")
	}
	if utf8.RuneCountInString(name) > MaxGiftName {
		return "", errors.NewValidationError(
			fmt.Sprintf("gift name must be at most %d characters", MaxGiftName),
		).WithField("name")
	}
	return name, nil
}

// CheckParticipantID reports a ValidationError for ids outside 1..MaxParticipants.
func CheckParticipantID(field string, id int) error {
	if id < 1 || id > MaxParticipants {
		return errors.NewValidationError(
			fmt.Sprintf("participant id must be between 1 and %d", MaxParticipants),
		).WithField(field).WithValue(id)
	}
	return nil
}

// CheckGiftID reports a ValidationError for a blank gift id.
func CheckGiftID(id string) error {
	if strings.TrimSpace(id) == "" {
		return errors.NewValidationError("gift id must not be blank").WithField("gift_id")
	}
	return nil
}
