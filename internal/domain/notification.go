package domain

import (
	"fmt"
	"strings"
	"time"
)

type actionPlan struct {
	Immediate  []string
	Preventive []string
	Recovery   []string
	Contacts   []string
}

var defaultContacts = []string{
	"Civil Defense: 199",
	"Fire Department: 193",
	"Emergency Medical Service: 192",
}

var actionPlans = map[RiskLevel]actionPlan{
	RiskCritical: {
		Immediate: []string{
			"Evacuate homes on and below the slope now",
			"Cut power and gas to the affected buildings",
			"Block road and foot access to the area",
		},
		Preventive: []string{
			"Move people to the designated shelter points",
			"Keep emergency crews on standby near the site",
		},
		Recovery: []string{
			"Wait for a technical inspection before anyone returns",
			"Record cracks, subsidence and water seepage for the report",
		},
		Contacts: defaultContacts,
	},
	RiskHigh: {
		Immediate: []string{
			"Warn residents near the slope and prepare for evacuation",
			"Clear drainage channels and gutters",
			"Stop any excavation or heavy traffic on the slope",
		},
		Preventive: []string{
			"Check for new cracks in walls, floors and the ground",
			"Cover exposed soil with tarps where possible",
		},
		Recovery: []string{
			"Schedule an inspection once moisture drops below the critical level",
		},
		Contacts: defaultContacts,
	},
	RiskMedium: {
		Immediate: []string{"Increase monitoring frequency"},
		Preventive: []string{
			"Inspect drainage and retaining structures",
			"Avoid adding load or water to the slope",
		},
		Recovery: []string{"Keep records of readings for trend analysis"},
		Contacts: defaultContacts[:1],
	},
	RiskLow: {
		Immediate:  []string{"No immediate action required"},
		Preventive: []string{"Keep routine maintenance of drainage"},
		Contacts:   defaultContacts[:1],
	},
}

// RenderNotification formats an alert as a chat message. Emphasis uses
// single-asterisk markers understood by Telegram Markdown.
func RenderNotification(alert Alert, sensor Sensor, t Telemetry, forecast *ForecastSnapshot) string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s *%s ALERT: %s*\n\n", levelIcon(alert.Criticality), alert.Criticality, alert.Type)
	fmt.Fprintf(&b, "*Location:* %s\n", sensor.Label())
	if lat, lon, ok := sensor.Coordinates(); ok {
		fmt.Fprintf(&b, "*Coordinates:* %.5f, %.5f\n", lat, lon)
	}
	b.WriteString("\n")
	b.WriteString(alert.Message)
	b.WriteString("\n\n")

	b.WriteString("*Soil situation*\n")
	fmt.Fprintf(&b, "Moisture: %.1f%%\n", t.SoilMoisture)
	fmt.Fprintf(&b, "Slope: %.1f°\n", t.SlopeDegrees)
	fmt.Fprintf(&b, "Soil temperature: %.1f°C\n", t.SoilTemperature)
	if t.RainAlert {
		b.WriteString("Rain detector: ACTIVE\n")
	}
	if alert.Context != nil {
		fmt.Fprintf(&b, "Soil type: %s (critical saturation %.0f%%)\n",
			alert.Context.SoilType, alert.Context.CriticalSaturation)
		fmt.Fprintf(&b, "Risk index: %.1f\n", alert.Context.RiskIndex)
	}

	if forecast != nil {
		b.WriteString("\n*Forecast*\n")
		fmt.Fprintf(&b, "Now: %s, %.1f°C, humidity %.0f%%, wind %.1f m/s\n",
			forecast.Description, forecast.Temperature, forecast.Humidity, forecast.WindSpeed)
		fmt.Fprintf(&b, "Rain next 3h: %.1f mm\n", forecast.RainNext3hMM)
		fmt.Fprintf(&b, "Rain next 24h: %.1f mm", forecast.RainNext24hMM)
		if forecast.HeavyRain {
			b.WriteString(" *HEAVY RAIN*")
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "\n*Risk level:* %s\n", alert.Criticality)

	if plan, ok := actionPlans[alert.Criticality]; ok {
		writeSection(&b, "Immediate actions", plan.Immediate)
		writeSection(&b, "Prevention", plan.Preventive)
		writeSection(&b, "Recovery", plan.Recovery)
		writeSection(&b, "Contacts", plan.Contacts)
	}

	fmt.Fprintf(&b, "\n_%s_", alert.CreatedAt.UTC().Format(time.RFC1123))
	return b.String()
}

func writeSection(b *strings.Builder, title string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(b, "\n*%s*\n", title)
	for _, item := range items {
		fmt.Fprintf(b, "- %s\n", item)
	}
}

func levelIcon(level RiskLevel) string {
	switch level {
	case RiskCritical:
		return "🔴"
	case RiskHigh:
		return "🟠"
	case RiskMedium:
		return "🟡"
	default:
		return "🟢"
	}
}
