package composer

type TemplateKind string

const (
	TemplateKindArrival TemplateKind = "arrival"
	TemplateKindDelay   TemplateKind = "delay"
	TemplateKindGeneric TemplateKind = "generic"
)

// templates are keyed (kind, language). Channel formatting is applied at
// render time, never baked into the template text.
var templates = map[TemplateKind]map[string]string{
	TemplateKindArrival: {
		"en": "Bus {vehicle_id} is arriving at {stop_name} in {eta_minutes} min",
		"kn": "ಬಸ್ {vehicle_id} {stop_name} ನಿಲ್ದಾಣಕ್ಕೆ {eta_minutes} ನಿಮಿಷದಲ್ಲಿ ಬರಲಿದೆ",
		"hi": "बस {vehicle_id} {stop_name} पर {eta_minutes} मिनट में पहुंच रही है",
	},
	TemplateKindDelay: {
		"en": "Bus {vehicle_id} to {stop_name} is running {delay_minutes} min late",
		"kn": "ಬಸ್ {vehicle_id} {stop_name} ಗೆ {delay_minutes} ನಿಮಿಷ ತಡವಾಗಿದೆ",
		"hi": "बस {vehicle_id} {stop_name} के लिए {delay_minutes} मिनट देरी से चल रही है",
	},
	TemplateKindGeneric: {
		"en": "Notification: {summary}",
		"kn": "ಸೂಚನೆ: {summary}",
		"hi": "सूचना: {summary}",
	},
}
