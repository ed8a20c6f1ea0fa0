package conversation

import (
	"fmt"
	"strings"

	"github.com/karibuhq/karibu-ai-platform/internal/catalog"
)

// messageID keys the bilingual catalog. Flow logic stays language-agnostic:
// it picks an id, the catalog picks the words.
type messageID string

const (
	msgBookingUnavailable messageID = "booking_unavailable"
	msgServiceListHeader  messageID = "service_list_header"
	msgServiceListFooter  messageID = "service_list_footer"
	msgInvalidService     messageID = "invalid_service"
	msgServiceNoDates     messageID = "service_no_dates"
	msgAskName            messageID = "ask_name"
	msgAskNameRetry       messageID = "ask_name_retry"
	msgInvalidName        messageID = "invalid_name"
	msgAskDateTime        messageID = "ask_date_time"
	msgRetryDateTime      messageID = "retry_date_time"
	msgTimeOnly           messageID = "time_only"
	msgDateOnly           messageID = "date_only"
	msgSlotUnavailable    messageID = "slot_unavailable"
	msgBookingConfirmed   messageID = "booking_confirmed"
	msgEditChoice         messageID = "edit_choice"
	msgEditChoiceRetry    messageID = "edit_choice_retry"
	msgEditAskName        messageID = "edit_ask_name"
	msgNameUpdated        messageID = "name_updated"
	msgEditConfirmed      messageID = "edit_confirmed"
	msgBookingGone        messageID = "booking_gone"
	msgChangeNotPending   messageID = "change_not_pending"
	msgChangeNoBooking    messageID = "change_no_booking"
	msgRedirect           messageID = "redirect"
	msgBypassAck          messageID = "bypass_ack"
	msgAIUnavailable      messageID = "ai_unavailable"
	msgAIFallback         messageID = "ai_fallback"
)

var catalogMessages = map[messageID]map[Language]string{
	msgBookingUnavailable: {
		LangEnglish: "Sorry, online booking is not available right now. Please contact us directly and we will help you.",
		LangSwahili: "Samahani, kuweka nafasi mtandaoni hakupatikani kwa sasa. Tafadhali wasiliana nasi moja kwa moja tukusaidie.",
	},
	msgServiceListHeader: {
		LangEnglish: "Here are our services:\n\n",
		LangSwahili: "Hizi ndizo huduma zetu:\n\n",
	},
	msgServiceListFooter: {
		LangEnglish: "\nReply with the number of the service you would like to book.",
		LangSwahili: "\nJibu kwa namba ya huduma unayotaka kuweka nafasi.",
	},
	msgInvalidService: {
		LangEnglish: "Please reply with a number between 1 and %d to choose a service.",
		LangSwahili: "Tafadhali jibu kwa namba kati ya 1 na %d kuchagua huduma.",
	},
	msgServiceNoDates: {
		LangEnglish: "Sorry, %s has no available dates at the moment. Please choose another service.",
		LangSwahili: "Samahani, %s haina tarehe zilizopo kwa sasa. Tafadhali chagua huduma nyingine.",
	},
	msgAskName: {
		LangEnglish: "Great choice! %s (%s, %s). What name should we put the booking under?",
		LangSwahili: "Chaguo zuri! %s (%s, %s). Tuweke nafasi kwa jina gani?",
	},
	msgAskNameRetry: {
		LangEnglish: "Before we book, what name should we put the booking under?",
		LangSwahili: "Kabla hatujaweka nafasi, tuweke kwa jina gani?",
	},
	msgInvalidName: {
		LangEnglish: "Please send a name between 2 and 49 characters.",
		LangSwahili: "Tafadhali tuma jina lenye herufi kati ya 2 na 49.",
	},
	msgAskDateTime: {
		LangEnglish: "Thanks %s! When would you like to come? Available dates:\n%s\nPlease send a date and time, for example \"%s at %s\".",
		LangSwahili: "Asante %s! Ungependa kuja lini? Tarehe zilizopo:\n%s\nTafadhali tuma tarehe na saa, kwa mfano \"%s at %s\".",
	},
	msgRetryDateTime: {
		LangEnglish: "I could not find a date or time in that message. Available dates:\n%s%s\nPlease send both, for example \"%s at %s\".",
		LangSwahili: "Sikupata tarehe wala saa katika ujumbe huo. Tarehe zilizopo:\n%s%s\nTafadhali tuma vyote viwili, kwa mfano \"%s at %s\".",
	},
	msgTimeOnly: {
		LangEnglish: "Got the time (%s), but I could not match a date. Available dates:\n%s\nPlease send the date and time together.",
		LangSwahili: "Nimepata saa (%s), lakini sikupata tarehe. Tarehe zilizopo:\n%s\nTafadhali tuma tarehe na saa pamoja.",
	},
	msgDateOnly: {
		LangEnglish: "Got the date (%s), but I could not match a time. Available times:\n%s\nPlease send the date and time together.",
		LangSwahili: "Nimepata tarehe (%s), lakini sikupata saa. Saa zilizopo:\n%s\nTafadhali tuma tarehe na saa pamoja.",
	},
	msgSlotUnavailable: {
		LangEnglish: "Sorry, %s is not an available time for %s. Please pick one of:\n%s",
		LangSwahili: "Samahani, %s si saa inayopatikana kwa %s. Tafadhali chagua mojawapo ya:\n%s",
	},
	msgBookingConfirmed: {
		LangEnglish: "Your booking is confirmed! 🎉\n\nBooking ref: %s\nName: %s\nService: %s\nDate: %s\nTime: %s\nPrice: %s\n\nTo change your booking later, just message us \"change my booking\".",
		LangSwahili: "Nafasi yako imewekwa! 🎉\n\nKumbukumbu: %s\nJina: %s\nHuduma: %s\nTarehe: %s\nSaa: %s\nBei: %s\n\nUkitaka kubadilisha nafasi yako baadaye, tutumie ujumbe \"badilisha nafasi yangu\".",
	},
	msgEditChoice: {
		LangEnglish: "Your current booking:\nName: %s\nDate: %s\nTime: %s\n\nWhat would you like to change?\n1. Name\n2. Date/time\n3. Both",
		LangSwahili: "Nafasi yako ya sasa:\nJina: %s\nTarehe: %s\nSaa: %s\n\nUngependa kubadilisha nini?\n1. Jina\n2. Tarehe/saa\n3. Vyote viwili",
	},
	msgEditChoiceRetry: {
		LangEnglish: "Please reply with 1 (name), 2 (date/time) or 3 (both).",
		LangSwahili: "Tafadhali jibu kwa 1 (jina), 2 (tarehe/saa) au 3 (vyote viwili).",
	},
	msgEditAskName: {
		LangEnglish: "What name should we change the booking to?",
		LangSwahili: "Tubadilishe nafasi kwa jina gani?",
	},
	msgNameUpdated: {
		LangEnglish: "Done! Your booking is now under %s.",
		LangSwahili: "Imekamilika! Nafasi yako sasa iko kwa jina la %s.",
	},
	msgEditConfirmed: {
		LangEnglish: "Your booking has been updated!\n\nBooking ref: %s\nName: %s\nService: %s\nDate: %s\nTime: %s",
		LangSwahili: "Nafasi yako imebadilishwa!\n\nKumbukumbu: %s\nJina: %s\nHuduma: %s\nTarehe: %s\nSaa: %s",
	},
	msgBookingGone: {
		LangEnglish: "Sorry, we could not find that booking anymore. Please start a new booking or contact us directly.",
		LangSwahili: "Samahani, hatukuipata nafasi hiyo tena. Tafadhali anza nafasi mpya au wasiliana nasi moja kwa moja.",
	},
	msgChangeNotPending: {
		LangEnglish: "Your booking is currently %s, so it can no longer be changed here. Please contact us directly if you need help.",
		LangSwahili: "Nafasi yako kwa sasa iko katika hali ya %s, hivyo haiwezi kubadilishwa hapa tena. Tafadhali wasiliana nasi moja kwa moja ukihitaji msaada.",
	},
	msgChangeNoBooking: {
		LangEnglish: "I could not find a recent booking for this number. If you have a booking reference, please send it — or reply \"book\" to start a new booking.",
		LangSwahili: "Sikupata nafasi ya hivi karibuni kwa namba hii. Kama una kumbukumbu ya nafasi, tafadhali itume — au jibu \"book\" kuanza nafasi mpya.",
	},
	msgRedirect: {
		LangEnglish: "For help with that, please contact %s directly on %s.",
		LangSwahili: "Kwa msaada kuhusu hilo, tafadhali wasiliana na %s moja kwa moja kwa %s.",
	},
	msgBypassAck: {
		LangEnglish: "Thanks for your message! We have received it and will get back to you shortly.",
		LangSwahili: "Asante kwa ujumbe wako! Tumeupokea na tutakujibu hivi karibuni.",
	},
	msgAIUnavailable: {
		LangEnglish: "Sorry, our automated assistant is unavailable right now. We will get back to you as soon as possible.",
		LangSwahili: "Samahani, msaidizi wetu wa kiotomatiki hapatikani kwa sasa. Tutakujibu haraka iwezekanavyo.",
	},
	msgAIFallback: {
		LangEnglish: "Thanks for your message! We will get back to you shortly.",
		LangSwahili: "Asante kwa ujumbe wako! Tutakujibu hivi karibuni.",
	},
}

// renderMessage formats a catalog entry in the requested language, falling
// back to English when the id has no translation.
func renderMessage(id messageID, lang Language, args ...any) string {
	variants, ok := catalogMessages[id]
	if !ok {
		return ""
	}
	tmpl, ok := variants[lang]
	if !ok || tmpl == "" {
		tmpl = variants[LangEnglish]
	}
	if len(args) == 0 {
		return tmpl
	}
	return fmt.Sprintf(tmpl, args...)
}

// maxSampleDates bounds how many dates appear beside each listed service.
const maxSampleDates = 3

// formatServiceList renders the numbered service menu shown at flow entry.
func formatServiceList(services []catalog.Service, lang Language) string {
	var b strings.Builder
	b.WriteString(renderMessage(msgServiceListHeader, lang))
	for i, svc := range services {
		fmt.Fprintf(&b, "%d. %s — %s (%s)\n", i+1, svc.Name, svc.Price, svc.Duration)
		if svc.Description != "" {
			fmt.Fprintf(&b, "   %s\n", svc.Description)
		}
		if len(svc.AvailableDates) > 0 {
			sample := svc.AvailableDates
			if len(sample) > maxSampleDates {
				sample = sample[:maxSampleDates]
			}
			fmt.Fprintf(&b, "   Dates: %s\n", strings.Join(sample, ", "))
		}
	}
	b.WriteString(renderMessage(msgServiceListFooter, lang))
	return b.String()
}

func formatDateList(dates []string) string {
	var b strings.Builder
	for _, d := range dates {
		fmt.Fprintf(&b, "• %s\n", d)
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatSlotList(slots []string, max int) string {
	if max > 0 && len(slots) > max {
		slots = slots[:max]
	}
	var b strings.Builder
	for _, s := range slots {
		fmt.Fprintf(&b, "• %s\n", s)
	}
	return strings.TrimRight(b.String(), "\n")
}
