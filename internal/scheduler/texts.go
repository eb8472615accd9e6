package scheduler

import (
	"fmt"
	"strings"

	"terminbot/internal/booking"
)

// User-facing texts the checker sends on its own (everything the dialog
// sends lives in the transport package). The expired and unsubscribed
// goodbyes are deliberately distinct.

const (
	textExpired      = "Subscription was removed since it was created more than a week ago"
	textUnsubscribed = "You were unsubscribed successfully"
	textReplaced     = "⚠️ You had a subscription already. In order to activate the new check, the old one has been removed."
)

func textUnsupportedType(departmentName, appointmentType string) string {
	return fmt.Sprintf("Seems like appointment title <%s> is not accepted by %s any more.\n"+
		"The office may have renamed it; please report this so the catalog can be updated. "+
		"Your subscription stays active in case the name comes back.",
		appointmentType, departmentName)
}

func textResult(r booking.AvailabilityResult) string {
	return fmt.Sprintf("The nearest appointments at %s are on %s:\n%s",
		r.LocationCaption, r.EarliestDate, strings.Join(r.TimeSlots, "\n"))
}

func textBookingReminder(frameURL string) string {
	var b strings.Builder
	if frameURL != "" {
		fmt.Fprintf(&b, "Please book your appointment here: %s\n", frameURL)
	}
	b.WriteString("Send /stop to cancel this subscription.")
	return b.String()
}
