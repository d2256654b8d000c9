package redis

import "fmt"

const ns = "venuepass:v1"

func KeyVenueHierarchy(venueID int64) string {
	return fmt.Sprintf("%s:venue:%d:hierarchy", ns, venueID)
}

func KeyVenueAvailability(venueID int64) string {
	return fmt.Sprintf("%s:venue:%d:availability", ns, venueID)
}

func KeyEventSummary(eventID int64) string {
	return fmt.Sprintf("%s:event:%d:summary", ns, eventID)
}

func KeyPersonSummary(eventID int64, person string) string {
	return fmt.Sprintf("%s:event:%d:person:%s", ns, eventID, person)
}

// RateLimitPrefix namespaces one limiter scope; the limiter appends the
// client id.
func RateLimitPrefix(scope string) string {
	return fmt.Sprintf("%s:rl:%s", ns, scope)
}

func ChannelVenuesChanged() string {
	return ns + ":venues:changed"
}
