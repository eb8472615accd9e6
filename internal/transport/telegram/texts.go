package telegram

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"terminbot/internal/booking"
	"terminbot/internal/subscription"
)

const (
	textSelectDepartment = "Here are available departments. Please select one:"
	textFetchingTypes    = "Fetching available appointment types..."
	textSelectType       = "There are several appointment types available. Most used types are on top. Please select one"
	textEverythingBooked = "Unfortunately, everything is booked. Please come back in several days :("
	textOfferSubscription = "If you want, you can subscribe for available appointments of this type. " +
		"You will then receive regular updates about available appointments for a week"
	textBookingUnreachable = "Could not reach the booking service. Please try again in a couple of minutes."
	textGenericFailure     = "Something went wrong on my side. Please try again later."
	textNoSubscription     = "You have no active subscription."
)

func textFetchingAppointments(termin string) string {
	return fmt.Sprintf("Great, wait a second while I'm fetching available appointments for %s...", termin)
}

func textAppointments(r booking.AvailabilityResult) string {
	return fmt.Sprintf("The nearest appointments at %s are on %s:\n%s",
		r.LocationCaption, r.EarliestDate, strings.Join(r.TimeSlots, "\n"))
}

func textBookingLink(frameURL string) string {
	return fmt.Sprintf("Please book your appointment here: %s", frameURL)
}

func textTypeRejected(departmentName, termin string) string {
	return fmt.Sprintf("Seems like appointment title <%s> is not accepted by %s any more.\n"+
		"Please report it so the catalog can be updated.", termin, departmentName)
}

func textAskInterval(min time.Duration) string {
	return fmt.Sprintf("Please type the check interval in minutes. It should be greater or equal than %d minutes.",
		int(min/time.Minute))
}

func textIntervalTooShort(min time.Duration) string {
	return fmt.Sprintf("Interval should be a number greater or equal than %d minutes.",
		int(min/time.Minute))
}

func textSubscribed(minutes int) string {
	return fmt.Sprintf("Ok, I've started a subscription with a checking interval of %d minutes.\n"+
		"I will notify you if something is available.\n"+
		"Please note the subscription is removed automatically after one week "+
		"if not cancelled manually before.", minutes)
}

func textStatus(departmentName string, sub subscription.Subscription) string {
	return fmt.Sprintf("Current subscription details:\n\n"+
		" - Department: %s\n - Type: %s\n - Interval: %dm\n - Until: %s",
		departmentName, sub.AppointmentType,
		int(sub.Interval/time.Minute),
		sub.ExpiresAt().Format("02-01-2006 15:04"))
}

func textStats(subs []subscription.Subscription) string {
	if len(subs) == 0 {
		return "ℹ️ No active subscriptions yet."
	}

	var totalMinutes int
	counts := map[string]int{}
	for _, s := range subs {
		totalMinutes += int(s.Interval / time.Minute)
		counts[s.AppointmentType]++
	}

	types := make([]string, 0, len(counts))
	for t := range counts {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool {
		if counts[types[i]] != counts[types[j]] {
			return counts[types[i]] > counts[types[j]]
		}
		return types[i] < types[j]
	})

	return fmt.Sprintf("ℹ️ Some piece of statistics:\n\n"+
		"%d active subscription(s)\n"+
		"%d min average interval\n"+
		"%s is the most popular termin",
		len(subs), totalMinutes/len(subs), types[0])
}
