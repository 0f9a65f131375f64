package booking

import "time"

// AgeAt returns whole years between birth and now, one less if the
// birthday has not yet occurred this year.
func AgeAt(birth, now time.Time) int {
	years := now.Year() - birth.Year()
	if now.Month() < birth.Month() ||
		(now.Month() == birth.Month() && now.Day() < birth.Day()) {
		years--
	}
	return years
}
