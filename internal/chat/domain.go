package chat

import "fmt"

// Domain scopes how the backend interprets a chat request.
type Domain int

const (
	General Domain = iota
	Diet
	Workout
	Medications
	Precautions
)

// Domains lists every domain in display order.
var Domains = []Domain{General, Diet, Workout, Medications, Precautions}

type domainInfo struct {
	tag, title, hint string
}

var domainTable = [...]domainInfo{
	General:     {"general", "General Health", "Describe your symptoms (e.g., 'headache and fever for 2 days')"},
	Diet:        {"diet", "Diet & Nutrition", "Ask about diets (e.g., 'diet for diabetes' or 'healthy eating tips')"},
	Workout:     {"workout", "Workouts & Exercise", "Ask about exercises (e.g., 'safe workouts for arthritis')"},
	Medications: {"medications", "Medications", "Ask about medicines (e.g., 'medicines for hypertension')"},
	Precautions: {"precautions", "Precautions", "Ask about precautions (e.g., 'how to prevent flu')"},
}

func (d Domain) valid() bool { return d >= General && d <= Precautions }

// String returns the wire tag sent to the backend.
func (d Domain) String() string {
	if !d.valid() {
		return fmt.Sprintf("Domain(%d)", int(d))
	}
	return domainTable[d].tag
}

// Title is the human-readable name.
func (d Domain) Title() string {
	if !d.valid() {
		return d.String()
	}
	return domainTable[d].title
}

// Hint is the input placeholder shown for the domain.
func (d Domain) Hint() string {
	if !d.valid() {
		return "Ask your health question..."
	}
	return domainTable[d].hint + "..."
}

// ParseDomain accepts only the five wire tags.
func ParseDomain(s string) (Domain, error) {
	for _, d := range Domains {
		if domainTable[d].tag == s {
			return d, nil
		}
	}
	return General, fmt.Errorf("unknown domain %q", s)
}

func (d Domain) MarshalText() ([]byte, error) {
	if !d.valid() {
		return nil, fmt.Errorf("invalid domain %d", int(d))
	}
	return []byte(d.String()), nil
}

func (d *Domain) UnmarshalText(b []byte) error {
	parsed, err := ParseDomain(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
