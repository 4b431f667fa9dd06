package portal

// Field names the logical form fields the submission flow touches.
const (
	FieldEmail       = "email"
	FieldPassword    = "password"
	FieldLoginButton = "login_button"
	FieldDate        = "date"
	FieldActivities  = "activities"
	FieldHours       = "hours"
	FieldLearnings   = "learnings"
	FieldBlockers    = "blockers"
	FieldLinks       = "links"
	FieldSkills      = "skills"
	FieldSubmit      = "submit_button"
)

// Strategies maps each logical field to an ordered list of CSS selectors,
// most specific first. The session tries them in order and fails the field
// only when none match, so the portal can shuffle its markup without
// breaking every submission.
type Strategies map[string][]string

// DefaultStrategies covers the portal's current markup plus the variants
// seen in earlier revisions of it.
func DefaultStrategies() Strategies {
	return Strategies{
		FieldEmail: {
			"input[autocomplete='email']",
			"input[type='email']",
			"input#email",
			"input[name='email']",
			"input[placeholder*='email' i]",
		},
		FieldPassword: {
			"input[autocomplete='current-password']",
			"input[type='password']",
			"input#password",
			"input[name='password']",
		},
		FieldLoginButton: {
			"form button[type='submit']",
			"button[type='submit']",
			"input[type='submit']",
			"button.login-btn",
		},
		FieldDate: {
			"input[type='date']",
			"input[name='date']",
			".react-datepicker__input-container input",
			"[data-testid='date-picker'] input",
		},
		FieldActivities: {
			"textarea[name='activities']",
			"textarea[name='description']",
			"textarea[name='entry_text']",
			"div[data-field='description'] textarea",
			"form textarea",
		},
		FieldHours: {
			"input[name='hours']",
			"input[type='number']",
			"input[placeholder*='hours' i]",
		},
		FieldLearnings: {
			"textarea[name='learnings']",
			"div[data-field='learnings'] textarea",
		},
		FieldBlockers: {
			"textarea[name='blockers']",
			"div[data-field='blockers'] textarea",
		},
		FieldLinks: {
			"input[name='links']",
			"input[placeholder*='link' i]",
		},
		FieldSkills: {
			"input[id^='react-select-']",
			".react-select__input input",
			"input[aria-autocomplete='list']",
			"input[name='skills']",
		},
		FieldSubmit: {
			"button[type='submit']",
			"button.btn-primary",
			"button.submit-btn",
		},
	}
}
